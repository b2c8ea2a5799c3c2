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

// addedDiag decorates a square lazy tensor with a diagonal shift. The
// operand may be a scalar, a one-element vector, a per-row vector, or carry a
// broadcastable batch prefix; it is expanded against the base's shape on
// demand.
type addedDiag struct {
	base SquareLazyTensor
	diag *tensor.Tensor
}

func newAddedDiag(base SquareLazyTensor, diag *tensor.Tensor) *addedDiag {
	n := base.Size(-1)
	if diag.Dims() > 0 {
		last := diag.Size(-1)
		if last != n && last != 1 {
			panic(fmt.Sprintf("lazy: diagonal operand of shape %v against matrix size %d", diag.Shape(), n))
		}
	}
	return &addedDiag{base: base, diag: diag}
}

// expandedDiag broadcasts the operand to the full [batch..., n] diagonal.
func (a *addedDiag) expandedDiag() *tensor.Tensor {
	shape := a.base.Shape()
	return tensor.Expand(a.diag, shape[:len(shape)-1]...)
}

func (a *addedDiag) Shape() []int {
	return a.base.Shape()
}

func (a *addedDiag) Size(dim int) int {
	return a.base.Size(dim)
}

func (a *addedDiag) BatchShape() []int {
	return a.base.BatchShape()
}

func (a *addedDiag) MatrixShape() []int {
	return a.base.MatrixShape()
}

func (a *addedDiag) Matmul(rhs *tensor.Tensor) *tensor.Tensor {
	product := a.base.Matmul(rhs)
	diag := a.expandedDiag()
	if rhs.Dims() == len(a.base.Shape())-1 {
		// vector right-hand side
		return tensor.Add(product, tensor.Mul(rhs, diag))
	}
	diagCol := tensor.Reshape(diag, append(diag.Shape(), 1)...)
	return tensor.Add(product, tensor.Mul(rhs, tensor.Expand(diagCol, rhs.Shape()...)))
}

func (a *addedDiag) Evaluate() *tensor.Tensor {
	return tensor.Add(a.base.Evaluate(), tensor.DiagEmbed(a.expandedDiag()))
}

func (a *addedDiag) Representation() []*tensor.Tensor {
	return append(a.base.Representation(), a.diag)
}

func (a *addedDiag) Clone() LazyTensor {
	return &addedDiag{
		base: a.base.Clone().(SquareLazyTensor),
		diag: a.diag.Clone(),
	}
}

func (a *addedDiag) Index(specs ...Index) LazyTensor {
	return newView(a, specs)
}

func (a *addedDiag) AddDiag(diag *tensor.Tensor) SquareLazyTensor {
	return newAddedDiag(a, diag)
}

func (a *addedDiag) Diag() *tensor.Tensor {
	return tensor.Add(a.base.Diag(), a.expandedDiag())
}

func (a *addedDiag) InvMatmul(rhs *tensor.Tensor, settings *Settings) *tensor.Tensor {
	return cgSolve(a, rhs, settings)
}

func (a *addedDiag) InvQuadLogDet(rhs *tensor.Tensor, reduce bool, settings *Settings, rng base.RandomGenerator) (*tensor.Tensor, *tensor.Tensor) {
	return invQuadLogDet(a, rhs, reduce, settings, rng)
}

func (a *addedDiag) Samples(n int, rng base.RandomGenerator) (*tensor.Tensor, error) {
	return choleskySamples(a, n, rng)
}
