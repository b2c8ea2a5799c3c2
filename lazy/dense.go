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

// Dense wraps an explicit tensor behind the lazy contract. It is the
// reference implementation: every operation falls back to dense arithmetic on
// the wrapped leaf.
type Dense struct {
	leaf *tensor.Tensor
}

// NewDense creates a lazy tensor backed by an explicit dense leaf. The leaf
// must have at least two dimensions.
func NewDense(leaf *tensor.Tensor) *Dense {
	if leaf.Dims() < 2 {
		panic(fmt.Sprintf("lazy: dense leaf of shape %v has no matrix dimensions", leaf.Shape()))
	}
	return &Dense{leaf: leaf}
}

func (d *Dense) Shape() []int {
	return d.leaf.Shape()
}

func (d *Dense) Size(dim int) int {
	return sizeOf(d.leaf.Shape(), dim)
}

func (d *Dense) BatchShape() []int {
	return batchShapeOf(d.leaf.Shape())
}

func (d *Dense) MatrixShape() []int {
	return matrixShapeOf(d.leaf.Shape())
}

func (d *Dense) Matmul(rhs *tensor.Tensor) *tensor.Tensor {
	return tensor.MatMul(d.leaf, rhs)
}

func (d *Dense) Evaluate() *tensor.Tensor {
	return d.leaf
}

func (d *Dense) Representation() []*tensor.Tensor {
	return []*tensor.Tensor{d.leaf}
}

func (d *Dense) Clone() LazyTensor {
	return &Dense{leaf: d.leaf.Clone()}
}

func (d *Dense) Index(specs ...Index) LazyTensor {
	return newView(d, specs)
}

func (d *Dense) requireSquare() {
	shape := d.MatrixShape()
	if shape[0] != shape[1] {
		panic(fmt.Sprintf("lazy: square operation on matrix shape %v", shape))
	}
}

func (d *Dense) AddDiag(diag *tensor.Tensor) SquareLazyTensor {
	d.requireSquare()
	return newAddedDiag(d, diag)
}

func (d *Dense) Diag() *tensor.Tensor {
	d.requireSquare()
	return tensor.DiagPart(d.leaf)
}

func (d *Dense) InvMatmul(rhs *tensor.Tensor, settings *Settings) *tensor.Tensor {
	d.requireSquare()
	return cgSolve(d, rhs, settings)
}

func (d *Dense) InvQuadLogDet(rhs *tensor.Tensor, reduce bool, settings *Settings, rng base.RandomGenerator) (*tensor.Tensor, *tensor.Tensor) {
	d.requireSquare()
	return invQuadLogDet(d, rhs, reduce, settings, rng)
}

func (d *Dense) Samples(n int, rng base.RandomGenerator) (*tensor.Tensor, error) {
	d.requireSquare()
	return choleskySamples(d, n, rng)
}
