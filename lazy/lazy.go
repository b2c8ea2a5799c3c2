// Copyright 2025 lazymat Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lazy implements matrices represented by a computation recipe
// instead of a dense array. A lazy tensor carries a logical shape whose two
// trailing dimensions form a matrix, optionally preceded by a batch prefix,
// and is evaluated on demand. Linear solves run through bounded conjugate
// gradients and log-determinants through stochastic Lanczos quadrature, so
// large structured matrices never have to be materialized.
package lazy

import (
	"github.com/lazymat-io/lazymat/base"
	"github.com/lazymat-io/lazymat/tensor"
)

// LazyTensor is the rectangular contract shared by every lazy matrix.
type LazyTensor interface {
	// Shape returns the full logical shape, batch prefix included.
	Shape() []int
	// Size returns the length of one dimension. Negative dim counts from
	// the end.
	Size(dim int) int
	// BatchShape returns the leading batch dimensions, possibly empty.
	BatchShape() []int
	// MatrixShape returns the two trailing dimensions.
	MatrixShape() []int
	// Matmul multiplies by a dense right-hand side. A 1-D (or
	// batch-prefixed 1-D) operand is treated as a vector. The result takes
	// part in the autodiff graph of the representation.
	Matmul(rhs *tensor.Tensor) *tensor.Tensor
	// Evaluate materializes the full dense tensor.
	Evaluate() *tensor.Tensor
	// Representation returns the ordered differentiable leaves
	// parameterizing this matrix.
	Representation() []*tensor.Tensor
	// Clone returns an independent instance whose representation leaves are
	// value-equal copies. Backward passes on the clone do not touch the
	// original's gradients.
	Clone() LazyTensor
	// Index applies a getitem-style index program. Missing trailing entries
	// default to All. The result may have fewer than two dimensions when
	// integer indices drop them.
	Index(specs ...Index) LazyTensor
}

// SquareLazyTensor extends LazyTensor with the operations that only make
// sense when the two trailing dimensions are equal.
type SquareLazyTensor interface {
	LazyTensor
	// AddDiag adds non-negative values to the diagonal. The operand may be
	// a scalar, a one-element vector, a full per-row vector, or carry a
	// broadcastable batch prefix.
	AddDiag(diag *tensor.Tensor) SquareLazyTensor
	// Diag extracts the diagonal; the result shape is Shape()[:-1].
	Diag() *tensor.Tensor
	// InvMatmul approximates the inverse applied to rhs with conjugate
	// gradients bounded by settings.MaxCGIterations.
	InvMatmul(rhs *tensor.Tensor, settings *Settings) *tensor.Tensor
	// InvQuadLogDet returns the inverse quadratic form rhs' M^-1 rhs
	// (summed over columns when reduce is true, per column otherwise) and a
	// stochastic estimate of log det M using settings.NumTraceSamples
	// probe vectors drawn from rng.
	InvQuadLogDet(rhs *tensor.Tensor, reduce bool, settings *Settings, rng base.RandomGenerator) (invQuad, logDet *tensor.Tensor)
	// Samples draws n zero-mean multivariate normal samples with this
	// matrix as covariance, shaped [n, batch..., d].
	Samples(n int, rng base.RandomGenerator) (*tensor.Tensor, error)
}

func sizeOf(shape []int, dim int) int {
	if dim < 0 {
		dim += len(shape)
	}
	return shape[dim]
}

func batchShapeOf(shape []int) []int {
	if len(shape) < 2 {
		return nil
	}
	batch := make([]int, len(shape)-2)
	copy(batch, shape[:len(shape)-2])
	return batch
}

func matrixShapeOf(shape []int) []int {
	if len(shape) < 2 {
		panic("lazy: tensor has no matrix dimensions")
	}
	return []int{shape[len(shape)-2], shape[len(shape)-1]}
}

func numBatchElements(batch []int) int {
	n := 1
	for _, s := range batch {
		n *= s
	}
	return n
}

// batchSlice narrows a possibly batched lazy tensor down to the 2-D slice at
// a flattened batch offset.
func batchSlice(lt LazyTensor, offset int) LazyTensor {
	batch := lt.BatchShape()
	if len(batch) == 0 {
		return lt
	}
	specs := make([]Index, len(batch))
	for i := len(batch) - 1; i >= 0; i-- {
		specs[i] = Fix(offset % batch[i])
		offset /= batch[i]
	}
	return lt.Index(specs...)
}
