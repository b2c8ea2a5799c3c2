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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lazymat-io/lazymat/base"
	"github.com/lazymat-io/lazymat/tensor"
)

var testRNG = base.NewRandomGenerator(42)

// spdTensor returns A A' + n I for a random A, well conditioned for the
// iterative solvers.
func spdTensor(n int) *tensor.Tensor {
	a := tensor.RandN(testRNG, n, n)
	shift := tensor.DiagEmbed(tensor.Full(float64(n), n))
	return tensor.Add(tensor.MatMulT(a, a, false, true), shift).NoGrad()
}

func TestDenseShapes(t *testing.T) {
	lt := NewDense(tensor.RandN(testRNG, 2, 3, 4))
	assert.Equal(t, []int{2, 3, 4}, lt.Shape())
	assert.Equal(t, []int{2}, lt.BatchShape())
	assert.Equal(t, []int{3, 4}, lt.MatrixShape())
	assert.Equal(t, 4, lt.Size(-1))
	assert.Equal(t, 3, lt.Size(-2))
}

func TestDenseMatmul(t *testing.T) {
	leaf := tensor.NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	lt := NewDense(leaf)

	res := lt.Matmul(tensor.NewTensor([]float64{1, 0, 1}, 3))
	assert.Equal(t, []float64{4, 10}, res.Data())

	rhs := tensor.NewTensor([]float64{1, 0, 0, 1, 1, 1}, 3, 2)
	res = lt.Matmul(rhs)
	assert.Equal(t, []int{2, 2}, res.Shape())
	assert.Equal(t, []float64{4, 5, 10, 11}, res.Data())
}

func TestDenseCloneIndependence(t *testing.T) {
	leaf := tensor.RandN(testRNG, 3, 3)
	lt := NewDense(leaf)
	clone := lt.Clone()

	res := clone.Matmul(tensor.RandN(testRNG, 3))
	res.BackwardWith(tensor.Ones(3))
	assert.Nil(t, leaf.Grad())
	assert.NotNil(t, clone.Representation()[0].Grad())
}

func TestDenseRequiresSquare(t *testing.T) {
	assert.Panics(t, func() {
		NewDense(tensor.RandN(testRNG, 2, 3)).Diag()
	})
}

func TestRootEvaluate(t *testing.T) {
	root := tensor.NewTensor([]float64{1, 0, 1, 1, 0, 2}, 3, 2)
	lt := NewRoot(root)
	assert.Equal(t, []int{3, 3}, lt.Shape())

	// R R' for the factor above
	res := lt.Evaluate()
	assert.Equal(t, []float64{1, 1, 0, 1, 2, 2, 0, 2, 4}, res.Data())
	assert.Equal(t, []float64{1, 2, 4}, lt.Diag().Data())
}

func TestRootMatmulAvoidsMaterialization(t *testing.T) {
	root := tensor.RandN(testRNG, 4, 2)
	lt := NewRoot(root)
	vec := tensor.RandN(testRNG, 4)

	res := lt.Matmul(vec)
	actual := tensor.MatMul(lt.Evaluate(), vec)
	for i := range actual.Data() {
		assert.InDelta(t, actual.Data()[i], res.Data()[i], 1e-12)
	}
}

func TestAddDiag(t *testing.T) {
	leaf := tensor.NewTensor([]float64{1, 2, 3, 4}, 2, 2)
	lt := NewDense(leaf)

	res := lt.AddDiag(tensor.NewScalar(10)).Evaluate()
	assert.Equal(t, []float64{11, 2, 3, 14}, res.Data())

	res = lt.AddDiag(tensor.NewTensor([]float64{10, 20}, 2)).Evaluate()
	assert.Equal(t, []float64{11, 2, 3, 24}, res.Data())

	shifted := lt.AddDiag(tensor.NewTensor([]float64{10, 20}, 2))
	assert.Equal(t, []float64{11, 24}, shifted.Diag().Data())

	// the operand joins the representation
	assert.Len(t, shifted.Representation(), 2)

	assert.Panics(t, func() {
		lt.AddDiag(tensor.NewTensor([]float64{1, 2, 3}, 3))
	})
}

func TestAddDiagMatmul(t *testing.T) {
	leaf := spdTensor(3)
	shifted := NewDense(leaf).AddDiag(tensor.NewTensor([]float64{1, 2, 3}, 3))

	rhs := tensor.RandN(testRNG, 3, 2)
	res := shifted.Matmul(rhs)
	actual := tensor.MatMul(shifted.Evaluate(), rhs)
	for i := range actual.Data() {
		assert.InDelta(t, actual.Data()[i], res.Data()[i], 1e-12)
	}
}

func TestBatchSlice(t *testing.T) {
	leaf := tensor.RandN(testRNG, 2, 3, 3, 4)
	lt := NewDense(leaf)

	slice := batchSlice(lt, 4)
	assert.Equal(t, []int{3, 4}, slice.Shape())
	// offset 4 in a (2,3) batch is element (1,1)
	want := ApplyIndex(leaf, Fix(1), Fix(1))
	assert.Equal(t, want.Data(), slice.Evaluate().Data())
}
