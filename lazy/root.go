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

package lazy

import (
	"fmt"

	"github.com/lazymat-io/lazymat/base"
	"github.com/lazymat-io/lazymat/tensor"
)

// Root represents R R' for a rank factor R of shape [batch..., d, k]. The
// product is positive semi-definite by construction and never materialized
// for matrix-vector products: Matmul costs two skinny products instead of a
// dense one.
type Root struct {
	root *tensor.Tensor
}

// NewRoot creates the lazy product R R' from the rank factor R.
func NewRoot(root *tensor.Tensor) *Root {
	if root.Dims() < 2 {
		panic(fmt.Sprintf("lazy: root factor of shape %v has no matrix dimensions", root.Shape()))
	}
	return &Root{root: root}
}

func (r *Root) Shape() []int {
	shape := r.root.Shape()
	shape[len(shape)-1] = shape[len(shape)-2]
	return shape
}

func (r *Root) Size(dim int) int {
	return sizeOf(r.Shape(), dim)
}

func (r *Root) BatchShape() []int {
	return batchShapeOf(r.Shape())
}

func (r *Root) MatrixShape() []int {
	return matrixShapeOf(r.Shape())
}

func (r *Root) Matmul(rhs *tensor.Tensor) *tensor.Tensor {
	return tensor.MatMul(r.root, tensor.MatMul(tensor.Transpose(r.root), rhs))
}

func (r *Root) Evaluate() *tensor.Tensor {
	return tensor.MatMulT(r.root, r.root, false, true)
}

func (r *Root) Representation() []*tensor.Tensor {
	return []*tensor.Tensor{r.root}
}

func (r *Root) Clone() LazyTensor {
	return &Root{root: r.root.Clone()}
}

func (r *Root) Index(specs ...Index) LazyTensor {
	return newView(r, specs)
}

func (r *Root) AddDiag(diag *tensor.Tensor) SquareLazyTensor {
	return newAddedDiag(r, diag)
}

func (r *Root) Diag() *tensor.Tensor {
	// diag(R R') is the squared row norms of R
	return tensor.SumDim(tensor.Mul(r.root, r.root), -1)
}

func (r *Root) InvMatmul(rhs *tensor.Tensor, settings *Settings) *tensor.Tensor {
	return cgSolve(r, rhs, settings)
}

func (r *Root) InvQuadLogDet(rhs *tensor.Tensor, reduce bool, settings *Settings, rng base.RandomGenerator) (*tensor.Tensor, *tensor.Tensor) {
	return invQuadLogDet(r, rhs, reduce, settings, rng)
}

// Samples draws zero-mean samples R eps with eps drawn i.i.d. standard
// normal, so the second moment is exactly R R'.
func (r *Root) Samples(n int, rng base.RandomGenerator) (*tensor.Tensor, error) {
	rootShape := r.root.Shape()
	k := rootShape[len(rootShape)-1]
	epsShape := append([]int{n}, r.BatchShape()...)
	epsShape = append(epsShape, k)
	eps := tensor.RandN(rng, epsShape...)
	samples := make([]*tensor.Tensor, n)
	for i := 0; i < n; i++ {
		samples[i] = tensor.MatMul(r.root, tensor.Select(eps, 0, i)).NoGrad()
	}
	return tensor.Stack(samples...).NoGrad(), nil
}
