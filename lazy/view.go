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
	"github.com/lazymat-io/lazymat/tensor"
)

// view defers an index program on top of another lazy tensor. Evaluation
// applies the program to the base's evaluation, so gradients still reach the
// base's representation leaves.
type view struct {
	base  LazyTensor
	specs []Index
}

func newView(base LazyTensor, specs []Index) *view {
	// validate eagerly so a malformed program fails at construction
	indexShape(base.Shape(), specs)
	return &view{
		base:  base,
		specs: append([]Index{}, specs...),
	}
}

func (v *view) Shape() []int {
	return indexShape(v.base.Shape(), v.specs)
}

func (v *view) Size(dim int) int {
	return sizeOf(v.Shape(), dim)
}

func (v *view) BatchShape() []int {
	return batchShapeOf(v.Shape())
}

func (v *view) MatrixShape() []int {
	return matrixShapeOf(v.Shape())
}

func (v *view) Matmul(rhs *tensor.Tensor) *tensor.Tensor {
	return tensor.MatMul(v.Evaluate(), rhs)
}

func (v *view) Evaluate() *tensor.Tensor {
	return applyIndex(v.base.Evaluate(), v.specs)
}

func (v *view) Representation() []*tensor.Tensor {
	return v.base.Representation()
}

func (v *view) Clone() LazyTensor {
	return newView(v.base.Clone(), v.specs)
}

func (v *view) Index(specs ...Index) LazyTensor {
	return newView(v, specs)
}
