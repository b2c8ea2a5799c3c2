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

package tensor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lazymat-io/lazymat/base"
)

const (
	eps  = 1e-6
	rtol = 1e-4
	atol = 1e-6
)

var testRNG = base.NewRandomGenerator(42)

func numericalDiff(f func(*Tensor) *Tensor, x *Tensor) *Tensor {
	x0, x1 := x.Clone(), x.Clone()
	dx := make([]float64, len(x.data))
	for i, v := range x.data {
		x0.data[i] = v - eps
		x1.data[i] = v + eps
		y0 := f(x0)
		y1 := f(x1)
		for j := range y0.data {
			dx[i] += (y1.data[j] - y0.data[j]) / (2 * eps)
		}
		x0.data[i] = v
		x1.data[i] = v
	}
	return NewTensor(dx, x.shape...)
}

func allClose(t *testing.T, a, b *Tensor) {
	if !assert.Equal(t, a.shape, b.shape) {
		return
	}
	for i := range a.data {
		if math.Abs(a.data[i]-b.data[i]) > atol+rtol*math.Abs(b.data[i]) {
			t.Fatalf("a.data[%d] = %f, b.data[%d] = %f\n", i, a.data[i], i, b.data[i])
			return
		}
	}
}

func TestAdd(t *testing.T) {
	// (2,3) + (2,3) -> (2,3)
	x := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	y := NewTensor([]float64{2, 3, 4, 5, 6, 7}, 2, 3)
	z := Add(x, y)
	assert.Equal(t, []float64{3, 5, 7, 9, 11, 13}, z.data)

	// Test gradient
	x = RandN(testRNG, 2, 3)
	y = RandN(testRNG, 2, 3)
	z = Add(x, y)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return Add(x, y) }, x)
	allClose(t, x.grad, dx)
	dy := numericalDiff(func(y *Tensor) *Tensor { return Add(x, y) }, y)
	allClose(t, y.grad, dy)

	// (2,3) + (3) -> (2,3)
	x = NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	y = NewTensor([]float64{2, 3, 4}, 3)
	z = Add(x, y)
	assert.Equal(t, []float64{3, 5, 7, 6, 8, 10}, z.data)

	// Test gradient
	z.Backward()
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, x.grad.data)
	assert.Equal(t, []float64{2, 2, 2}, y.grad.data)
}

func TestSub(t *testing.T) {
	x := NewTensor([]float64{4, 5, 6, 7, 8, 9}, 2, 3)
	y := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	z := Sub(x, y)
	assert.Equal(t, []float64{3, 3, 3, 3, 3, 3}, z.data)

	x = RandN(testRNG, 2, 3)
	y = RandN(testRNG, 2, 3)
	z = Sub(x, y)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return Sub(x, y) }, x)
	allClose(t, x.grad, dx)
	dy := numericalDiff(func(y *Tensor) *Tensor { return Sub(x, y) }, y)
	allClose(t, y.grad, dy)
}

func TestMul(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	y := NewTensor([]float64{2, 3, 4, 5, 6, 7}, 2, 3)
	z := Mul(x, y)
	assert.Equal(t, []float64{2, 6, 12, 20, 30, 42}, z.data)

	x = RandN(testRNG, 2, 3)
	y = RandN(testRNG, 2, 3)
	z = Mul(x, y)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return Mul(x, y) }, x)
	allClose(t, x.grad, dx)
	dy := numericalDiff(func(y *Tensor) *Tensor { return Mul(x, y) }, y)
	allClose(t, y.grad, dy)

	// (2,3) * (3) -> (2,3)
	x = RandN(testRNG, 2, 3)
	y = RandN(testRNG, 3)
	z = Mul(x, y)
	z.Backward()
	dx = numericalDiff(func(x *Tensor) *Tensor { return Mul(x, y) }, x)
	allClose(t, x.grad, dx)
	dy = numericalDiff(func(y *Tensor) *Tensor { return Mul(x, y) }, y)
	allClose(t, y.grad, dy)
}

func TestDiv(t *testing.T) {
	x := NewTensor([]float64{2, 6, 12, 20, 30, 42}, 2, 3)
	y := NewTensor([]float64{2, 3, 4, 5, 6, 7}, 2, 3)
	z := Div(x, y)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, z.data)

	x = NewTensor(testRNG.UniformVector(6, 1, 2), 2, 3)
	y = NewTensor(testRNG.UniformVector(6, 1, 2), 2, 3)
	z = Div(x, y)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return Div(x, y) }, x)
	allClose(t, x.grad, dx)
	dy := numericalDiff(func(y *Tensor) *Tensor { return Div(x, y) }, y)
	allClose(t, y.grad, dy)
}

func TestNeg(t *testing.T) {
	x := NewTensor([]float64{1, -2, 3}, 3)
	z := Neg(x)
	assert.Equal(t, []float64{-1, 2, -3}, z.data)

	z.Backward()
	assert.Equal(t, []float64{-1, -1, -1}, x.grad.data)
}

func TestSum(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	z := Sum(x)
	assert.Equal(t, []float64{21}, z.data)

	z.Backward()
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, x.grad.data)
}

func TestSumDim(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	z := SumDim(x, 0)
	assert.Equal(t, []int{3}, z.shape)
	assert.Equal(t, []float64{5, 7, 9}, z.data)

	z = SumDim(x, -1)
	assert.Equal(t, []int{2}, z.shape)
	assert.Equal(t, []float64{6, 15}, z.data)

	x = RandN(testRNG, 2, 3, 4)
	z = SumDim(x, 1)
	assert.Equal(t, []int{2, 4}, z.shape)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return SumDim(x, 1) }, x)
	allClose(t, x.grad, dx)
}

func TestMatMul(t *testing.T) {
	// (2,3) x (3,2) -> (2,2)
	x := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	y := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 3, 2)
	z := MatMul(x, y)
	assert.Equal(t, []int{2, 2}, z.shape)
	assert.Equal(t, []float64{22, 28, 49, 64}, z.data)

	// Test gradient
	x = RandN(testRNG, 2, 3)
	y = RandN(testRNG, 3, 2)
	z = MatMul(x, y)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return MatMul(x, y) }, x)
	allClose(t, x.grad, dx)
	dy := numericalDiff(func(y *Tensor) *Tensor { return MatMul(x, y) }, y)
	allClose(t, y.grad, dy)

	// (2,3) x (3) -> (2)
	x = RandN(testRNG, 2, 3)
	v := RandN(testRNG, 3)
	z = MatMul(x, v)
	assert.Equal(t, []int{2}, z.shape)
	z.Backward()
	dx = numericalDiff(func(x *Tensor) *Tensor { return MatMul(x, v) }, x)
	allClose(t, x.grad, dx)
	dv := numericalDiff(func(v *Tensor) *Tensor { return MatMul(x, v) }, v)
	allClose(t, v.grad, dv)

	// (4,2,3) x (4,3,2) -> (4,2,2)
	x = RandN(testRNG, 4, 2, 3)
	y = RandN(testRNG, 4, 3, 2)
	z = MatMul(x, y)
	assert.Equal(t, []int{4, 2, 2}, z.shape)
	z.Backward()
	dx = numericalDiff(func(x *Tensor) *Tensor { return MatMul(x, y) }, x)
	allClose(t, x.grad, dx)
	dy = numericalDiff(func(y *Tensor) *Tensor { return MatMul(x, y) }, y)
	allClose(t, y.grad, dy)
}

func TestMatMulT(t *testing.T) {
	x := RandN(testRNG, 4, 3)
	z := MatMulT(x, x, false, true)
	assert.Equal(t, []int{4, 4}, z.shape)
	// z must equal x x'
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			sum := float64(0)
			for k := 0; k < 3; k++ {
				sum += x.data[i*3+k] * x.data[j*3+k]
			}
			assert.InDelta(t, sum, z.data[i*4+j], 1e-12)
		}
	}

	y := RandN(testRNG, 4, 2)
	z = MatMulT(x, y, true, false)
	assert.Equal(t, []int{3, 2}, z.shape)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return MatMulT(x, y, true, false) }, x)
	allClose(t, x.grad, dx)
	dy := numericalDiff(func(y *Tensor) *Tensor { return MatMulT(x, y, true, false) }, y)
	allClose(t, y.grad, dy)
}

func TestTranspose(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	z := Transpose(x)
	assert.Equal(t, []int{3, 2}, z.shape)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, z.data)

	x = RandN(testRNG, 2, 3, 4)
	z = Transpose(x)
	assert.Equal(t, []int{2, 4, 3}, z.shape)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return Transpose(x) }, x)
	allClose(t, x.grad, dx)
}

func TestReshape(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	z := Reshape(x, 3, 2)
	assert.Equal(t, []int{3, 2}, z.shape)
	assert.Equal(t, x.data, z.data)

	z.Backward()
	assert.Equal(t, []int{2, 3}, x.grad.shape)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1}, x.grad.data)
}

func TestSelect(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	z := Select(x, 0, 1)
	assert.Equal(t, []int{3}, z.shape)
	assert.Equal(t, []float64{4, 5, 6}, z.data)

	z = Select(x, -1, 2)
	assert.Equal(t, []int{2}, z.shape)
	assert.Equal(t, []float64{3, 6}, z.data)

	x = RandN(testRNG, 2, 3, 4)
	z = Select(x, 1, 2)
	assert.Equal(t, []int{2, 4}, z.shape)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return Select(x, 1, 2) }, x)
	allClose(t, x.grad, dx)
}

func TestNarrow(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	z := Narrow(x, 1, 1, 3)
	assert.Equal(t, []int{2, 2}, z.shape)
	assert.Equal(t, []float64{2, 3, 5, 6}, z.data)

	x = RandN(testRNG, 3, 4)
	z = Narrow(x, 0, 1, 3)
	assert.Equal(t, []int{2, 4}, z.shape)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return Narrow(x, 0, 1, 3) }, x)
	allClose(t, x.grad, dx)
}

func TestIndexSelect(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	z := IndexSelect(x, 1, []int{2, 0, 2})
	assert.Equal(t, []int{2, 3}, z.shape)
	assert.Equal(t, []float64{3, 1, 3, 6, 4, 6}, z.data)

	// repeated indices accumulate gradient
	x = RandN(testRNG, 3, 2)
	z = IndexSelect(x, 0, []int{1, 1, 2})
	assert.Equal(t, []int{3, 2}, z.shape)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return IndexSelect(x, 0, []int{1, 1, 2}) }, x)
	allClose(t, x.grad, dx)
}

func TestStack(t *testing.T) {
	x := NewTensor([]float64{1, 2}, 2)
	y := NewTensor([]float64{3, 4}, 2)
	z := Stack(x, y)
	assert.Equal(t, []int{2, 2}, z.shape)
	assert.Equal(t, []float64{1, 2, 3, 4}, z.data)

	z.Backward()
	assert.Equal(t, []float64{1, 1}, x.grad.data)
	assert.Equal(t, []float64{1, 1}, y.grad.data)
}

func TestDiagEmbed(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3}, 3)
	z := DiagEmbed(x)
	assert.Equal(t, []int{3, 3}, z.shape)
	assert.Equal(t, []float64{1, 0, 0, 0, 2, 0, 0, 0, 3}, z.data)

	x = RandN(testRNG, 2, 3)
	z = DiagEmbed(x)
	assert.Equal(t, []int{2, 3, 3}, z.shape)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return DiagEmbed(x) }, x)
	allClose(t, x.grad, dx)
}

func TestDiagPart(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3, 4}, 2, 2)
	z := DiagPart(x)
	assert.Equal(t, []int{2}, z.shape)
	assert.Equal(t, []float64{1, 4}, z.data)

	x = RandN(testRNG, 2, 3, 3)
	z = DiagPart(x)
	assert.Equal(t, []int{2, 3}, z.shape)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return DiagPart(x) }, x)
	allClose(t, x.grad, dx)
}

func TestInverse(t *testing.T) {
	x := NewTensor([]float64{3, 1, 1, 2}, 2, 2)
	z := Inverse(x)
	assert.Equal(t, []int{2, 2}, z.shape)
	allClose(t, z, NewTensor([]float64{0.4, -0.2, -0.2, 0.6}, 2, 2))

	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return Inverse(x) }, x)
	allClose(t, x.grad, dx)

	// batched
	x = NewTensor([]float64{3, 1, 1, 2, 4, 0, 0, 2}, 2, 2, 2)
	z = Inverse(x)
	assert.Equal(t, []int{2, 2, 2}, z.shape)
	allClose(t, Select(z, 0, 1), NewTensor([]float64{0.25, 0, 0, 0.5}, 2, 2))
}

func TestExpand(t *testing.T) {
	x := NewTensor([]float64{1, 2, 3}, 3)
	z := Expand(x, 2, 3)
	assert.Equal(t, []int{2, 3}, z.shape)
	assert.Equal(t, []float64{1, 2, 3, 1, 2, 3}, z.data)

	// size-1 dimensions broadcast
	x = NewTensor([]float64{1, 2}, 2, 1)
	z = Expand(x, 2, 3)
	assert.Equal(t, []float64{1, 1, 1, 2, 2, 2}, z.data)

	z.Backward()
	assert.Equal(t, []float64{3, 3}, x.grad.data)

	x = RandN(testRNG, 2, 1)
	z = Expand(x, 4, 2, 3)
	assert.Equal(t, []int{4, 2, 3}, z.shape)
	z.Backward()
	dx := numericalDiff(func(x *Tensor) *Tensor { return Expand(x, 4, 2, 3) }, x)
	allClose(t, x.grad, dx)
}

func TestApplySelfAdjoint(t *testing.T) {
	// multiplication by the symmetric matrix [[2,1],[1,3]]
	mapping := func(v *Tensor) *Tensor {
		return NewTensor([]float64{
			2*v.data[0] + v.data[1],
			v.data[0] + 3*v.data[1],
		}, 2)
	}
	x := NewTensor([]float64{1, 2}, 2)
	z := ApplySelfAdjoint(x, mapping)
	assert.Equal(t, []float64{4, 7}, z.data)

	// the upstream gradient goes through the same map
	z.BackwardWith(NewTensor([]float64{1, 0}, 2))
	assert.Equal(t, []float64{2, 1}, x.grad.data)
}
