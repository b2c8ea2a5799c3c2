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
	"fmt"
	"strings"

	"github.com/lazymat-io/lazymat/base"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense row-major float64 array with an optional autodiff graph.
// A tensor created by an exported operation remembers the operation, so that
// Backward can push gradients to the leaves it was computed from.
type Tensor struct {
	data  []float64
	shape []int
	grad  *Tensor
	op    op
}

func NewTensor(data []float64, shape ...int) *Tensor {
	if len(data) != numElements(shape) {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v", len(data), shape))
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

func NewScalar(data float64) *Tensor {
	return &Tensor{
		data:  []float64{data},
		shape: []int{},
	}
}

// RandN creates a tensor filled with standard normal draws from rng.
func RandN(rng base.RandomGenerator, shape ...int) *Tensor {
	return &Tensor{
		data:  rng.NormalVector(numElements(shape), 0, 1),
		shape: shape,
	}
}

// Ones creates a tensor filled with ones.
func Ones(shape ...int) *Tensor {
	data := make([]float64, numElements(shape))
	for i := range data {
		data[i] = 1
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape ...int) *Tensor {
	return &Tensor{
		data:  make([]float64, numElements(shape)),
		shape: shape,
	}
}

// Eye creates an n-by-n identity matrix.
func Eye(n int) *Tensor {
	t := Zeros(n, n)
	for i := 0; i < n; i++ {
		t.data[i*n+i] = 1
	}
	return t
}

// Full creates a tensor filled with value.
func Full(value float64, shape ...int) *Tensor {
	data := make([]float64, numElements(shape))
	for i := range data {
		data[i] = value
	}
	return &Tensor{
		data:  data,
		shape: shape,
	}
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	shape := make([]int, len(t.shape))
	copy(shape, t.shape)
	return shape
}

// Dims returns the number of dimensions.
func (t *Tensor) Dims() int {
	return len(t.shape)
}

// Size returns the length of dimension dim. Negative dim counts from the end,
// so Size(-1) is the trailing dimension.
func (t *Tensor) Size(dim int) int {
	if dim < 0 {
		dim += len(t.shape)
	}
	return t.shape[dim]
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the underlying storage.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Item returns the value of a scalar tensor.
func (t *Tensor) Item() float64 {
	if len(t.data) != 1 {
		panic(fmt.Sprintf("tensor: Item called on tensor of %d elements", len(t.data)))
	}
	return t.data[0]
}

// At returns the element at a multi-index.
func (t *Tensor) At(indices ...int) float64 {
	return t.data[t.offset(indices)]
}

// Set assigns the element at a multi-index.
func (t *Tensor) Set(value float64, indices ...int) {
	t.data[t.offset(indices)] = value
}

func (t *Tensor) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("tensor: %d indices for shape %v", len(indices), t.shape))
	}
	offset := 0
	for i, index := range indices {
		if index < 0 || index >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for dimension %d of shape %v", index, i, t.shape))
		}
		offset = offset*t.shape[i] + index
	}
	return offset
}

// NoGrad detaches the tensor from the operation that produced it.
func (t *Tensor) NoGrad() *Tensor {
	if t.op != nil {
		t.op = nil
	}
	return t
}

// Grad returns the accumulated gradient, or nil if no backward pass reached
// this tensor.
func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// ZeroGrad drops the accumulated gradient.
func (t *Tensor) ZeroGrad() {
	t.grad = nil
}

// Clone returns a detached deep copy.
func (t *Tensor) Clone() *Tensor {
	newData := make([]float64, len(t.data))
	copy(newData, t.data)
	return &Tensor{
		data:  newData,
		shape: t.Shape(),
	}
}

func (t *Tensor) String() string {
	// Print scalar value
	if len(t.shape) == 0 {
		return fmt.Sprint(t.data[0])
	}

	builder := strings.Builder{}
	builder.WriteString("[")
	if len(t.data) <= 10 {
		for i := 0; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	} else {
		for i := 0; i < 5; i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			builder.WriteString(", ")
		}
		builder.WriteString("..., ")
		for i := len(t.data) - 5; i < len(t.data); i++ {
			builder.WriteString(fmt.Sprint(t.data[i]))
			if i != len(t.data)-1 {
				builder.WriteString(", ")
			}
		}
	}
	builder.WriteString("]")
	return builder.String()
}

// Backward seeds the output gradient with ones and pushes gradients down to
// the leaves.
func (t *Tensor) Backward() {
	t.BackwardWith(Ones(t.shape...))
}

// BackwardWith pushes an upstream gradient down to the leaves. Gradients are
// accumulated, so a leaf used several times (for example the system matrix
// inside every iteration of a solve) collects the sum of all contributions.
// Nodes are processed only after every consumer delivered its contribution.
func (t *Tensor) BackwardWith(grad *Tensor) {
	if len(grad.data) != len(t.data) {
		panic(fmt.Sprintf("tensor: gradient shape %v does not match output shape %v", grad.shape, t.shape))
	}
	t.grad = grad.Clone()
	if t.op == nil {
		return
	}
	// Count, per operation, how many downstream input slots reference its
	// output. An operation may run backward only when the count drops to zero.
	pending := make(map[op]int)
	visited := make(map[op]bool)
	stack := []op{t.op}
	visited[t.op] = true
	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		inputs, _ := o.inputsAndOutput()
		for _, input := range inputs {
			if input.op != nil {
				pending[input.op]++
				if !visited[input.op] {
					visited[input.op] = true
					stack = append(stack, input.op)
				}
			}
		}
	}

	ready := []op{t.op}
	for len(ready) > 0 {
		o := ready[0]
		ready = ready[1:]
		inputs, output := o.inputsAndOutput()
		grads := o.backward(output.grad)
		for i := range grads {
			input := inputs[i]
			if grads[i] != nil {
				if input.grad == nil {
					input.grad = grads[i].Clone()
				} else {
					input.grad.add(grads[i])
				}
			}
			if input.op != nil {
				pending[input.op]--
				if pending[input.op] == 0 {
					ready = append(ready, input.op)
				}
			}
		}
	}
}

// Dense converts a 2-D tensor to a gonum matrix.
func (t *Tensor) Dense() *mat.Dense {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor: Dense called on shape %v", t.shape))
	}
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return mat.NewDense(t.shape[0], t.shape[1], data)
}

// FromDense converts a gonum matrix to a 2-D tensor.
func FromDense(m *mat.Dense) *Tensor {
	rows, cols := m.Dims()
	data := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i*cols+j] = m.At(i, j)
		}
	}
	return NewTensor(data, rows, cols)
}

// In-place arithmetic below mirrors element-wise operations with the second
// operand broadcast as a suffix of the first operand's shape.

func (t *Tensor) add(other *Tensor) *Tensor {
	wSize := numElements(other.shape)
	for i := range t.data {
		t.data[i] += other.data[i%wSize]
	}
	return t
}

func (t *Tensor) sub(other *Tensor) *Tensor {
	wSize := numElements(other.shape)
	for i := range t.data {
		t.data[i] -= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) mul(other *Tensor) *Tensor {
	wSize := numElements(other.shape)
	for i := range t.data {
		t.data[i] *= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) div(other *Tensor) *Tensor {
	wSize := numElements(other.shape)
	for i := range t.data {
		t.data[i] /= other.data[i%wSize]
	}
	return t
}

func (t *Tensor) neg() *Tensor {
	for i := range t.data {
		t.data[i] = -t.data[i]
	}
	return t
}

func (t *Tensor) sum() float64 {
	sum := float64(0)
	for i := range t.data {
		sum += t.data[i]
	}
	return sum
}

// matMul multiplies the trailing matrix dimensions of two tensors with equal
// batch prefixes. Vectors are not accepted here; MatMul reshapes them first.
func (t *Tensor) matMul(other *Tensor, transpose0, transpose1 bool) *Tensor {
	if len(t.shape) < 2 || len(other.shape) < 2 {
		panic(fmt.Sprintf("tensor: matMul on shapes %v and %v", t.shape, other.shape))
	}
	if len(t.shape) != len(other.shape) {
		panic(fmt.Sprintf("tensor: matMul batch rank mismatch: %v vs %v", t.shape, other.shape))
	}
	batch := t.shape[:len(t.shape)-2]
	for i, s := range other.shape[:len(other.shape)-2] {
		if batch[i] != s {
			panic(fmt.Sprintf("tensor: matMul batch shape mismatch: %v vs %v", t.shape, other.shape))
		}
	}
	m, k0 := t.shape[len(t.shape)-2], t.shape[len(t.shape)-1]
	if transpose0 {
		m, k0 = k0, m
	}
	k1, n := other.shape[len(other.shape)-2], other.shape[len(other.shape)-1]
	if transpose1 {
		k1, n = n, k1
	}
	if k0 != k1 {
		panic(fmt.Sprintf("tensor: matMul inner dimension mismatch: %v vs %v", t.shape, other.shape))
	}
	batchSize := numElements(batch)
	aStride := t.shape[len(t.shape)-2] * t.shape[len(t.shape)-1]
	bStride := other.shape[len(other.shape)-2] * other.shape[len(other.shape)-1]
	outShape := append(append([]int{}, batch...), m, n)
	out := Zeros(outShape...)
	for b := 0; b < batchSize; b++ {
		a := t.data[b*aStride : (b+1)*aStride]
		bd := other.data[b*bStride : (b+1)*bStride]
		y := out.data[b*m*n : (b+1)*m*n]
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				sum := float64(0)
				for l := 0; l < k0; l++ {
					var av, bv float64
					if transpose0 {
						av = a[l*m+i]
					} else {
						av = a[i*k0+l]
					}
					if transpose1 {
						bv = bd[j*k0+l]
					} else {
						bv = bd[l*n+j]
					}
					sum += av * bv
				}
				y[i*n+j] = sum
			}
		}
	}
	return out
}
