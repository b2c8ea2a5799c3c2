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

	"gonum.org/v1/gonum/mat"
)

type op interface {
	String() string
	forward(inputs ...*Tensor) *Tensor
	backward(dy *Tensor) []*Tensor
	inputsAndOutput() ([]*Tensor, *Tensor)
	setInputs(inputs ...*Tensor)
	setOutput(y *Tensor)
}

type opBase struct {
	inputs []*Tensor
	output *Tensor
}

func (b *opBase) inputsAndOutput() ([]*Tensor, *Tensor) {
	return b.inputs, b.output
}

func (b *opBase) setInputs(inputs ...*Tensor) {
	b.inputs = inputs
}

func (b *opBase) setOutput(y *Tensor) {
	b.output = y
}

func apply[T op](f T, inputs ...*Tensor) *Tensor {
	y := f.forward(inputs...)
	f.setInputs(inputs...)
	f.setOutput(y)
	y.op = f
	return y
}

func checkSuffixShape(x0, x1 *Tensor) {
	if len(x0.shape) < len(x1.shape) {
		panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
	}
	for i := 0; i < len(x1.shape); i++ {
		if x0.shape[len(x0.shape)-len(x1.shape)+i] != x1.shape[i] {
			panic("the shape of the second tensor must be a suffix sequence of the shape of the first tensor")
		}
	}
}

type add struct {
	opBase
}

func (a *add) String() string {
	return "Add"
}

func (a *add) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	y.add(inputs[1])
	return y
}

func (a *add) backward(dy *Tensor) []*Tensor {
	gx0 := dy.Clone()
	gx1 := Zeros(a.inputs[1].shape...)
	wSize := numElements(gx1.shape)
	for i := range dy.data {
		gx1.data[i%wSize] += dy.data[i]
	}
	return []*Tensor{gx0, gx1}
}

type sub struct {
	opBase
}

func (s *sub) String() string {
	return "Sub"
}

func (s *sub) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	y.sub(inputs[1])
	return y
}

func (s *sub) backward(dy *Tensor) []*Tensor {
	gx0 := dy.Clone()
	gx1 := Zeros(s.inputs[1].shape...)
	wSize := numElements(gx1.shape)
	for i := range dy.data {
		gx1.data[i%wSize] -= dy.data[i]
	}
	return []*Tensor{gx0, gx1}
}

type mul struct {
	opBase
}

func (m *mul) String() string {
	return "Mul"
}

func (m *mul) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	y.mul(inputs[1])
	return y
}

func (m *mul) backward(dy *Tensor) []*Tensor {
	gx0 := dy.Clone()
	gx0.mul(m.inputs[1])
	gx1 := Zeros(m.inputs[1].shape...)
	wSize := numElements(gx1.shape)
	for i := range dy.data {
		gx1.data[i%wSize] += dy.data[i] * m.inputs[0].data[i]
	}
	return []*Tensor{gx0, gx1}
}

type div struct {
	opBase
}

func (d *div) String() string {
	return "Div"
}

func (d *div) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	y.div(inputs[1])
	return y
}

func (d *div) backward(dy *Tensor) []*Tensor {
	wSize := numElements(d.inputs[1].shape)
	gx0 := Zeros(d.inputs[0].shape...)
	for i := range dy.data {
		gx0.data[i] = dy.data[i] / d.inputs[1].data[i%wSize]
	}
	gx1 := Zeros(d.inputs[1].shape...)
	for i := range dy.data {
		gx1.data[i%wSize] -= dy.data[i] * d.inputs[0].data[i] / d.inputs[1].data[i%wSize] / d.inputs[1].data[i%wSize]
	}
	return []*Tensor{gx0, gx1}
}

type neg struct {
	opBase
}

func (n *neg) String() string {
	return "Neg"
}

func (n *neg) forward(inputs ...*Tensor) *Tensor {
	y := inputs[0].Clone()
	y.neg()
	return y
}

func (n *neg) backward(dy *Tensor) []*Tensor {
	gx := dy.Clone()
	gx.neg()
	return []*Tensor{gx}
}

type sum struct {
	opBase
}

func (s *sum) String() string {
	return "Sum"
}

func (s *sum) forward(inputs ...*Tensor) *Tensor {
	return NewScalar(inputs[0].sum())
}

func (s *sum) backward(dy *Tensor) []*Tensor {
	return []*Tensor{Full(dy.data[0], s.inputs[0].shape...)}
}

type sumDim struct {
	opBase
	dim int
}

func (s *sumDim) String() string {
	return "SumDim"
}

func (s *sumDim) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	outer, size, inner := splitShape(x.shape, s.dim)
	outShape := append(append([]int{}, x.shape[:s.dim]...), x.shape[s.dim+1:]...)
	y := Zeros(outShape...)
	for o := 0; o < outer; o++ {
		for k := 0; k < size; k++ {
			for in := 0; in < inner; in++ {
				y.data[o*inner+in] += x.data[(o*size+k)*inner+in]
			}
		}
	}
	return y
}

func (s *sumDim) backward(dy *Tensor) []*Tensor {
	x := s.inputs[0]
	outer, size, inner := splitShape(x.shape, s.dim)
	gx := Zeros(x.shape...)
	for o := 0; o < outer; o++ {
		for k := 0; k < size; k++ {
			for in := 0; in < inner; in++ {
				gx.data[(o*size+k)*inner+in] = dy.data[o*inner+in]
			}
		}
	}
	return []*Tensor{gx}
}

// splitShape factors shape into the product of dimensions before dim, the
// size of dim itself, and the product of dimensions after dim.
func splitShape(shape []int, dim int) (outer, size, inner int) {
	outer, size, inner = 1, shape[dim], 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return
}

type matMul struct {
	opBase
	transpose0, transpose1 bool
}

func (m *matMul) String() string {
	return "MatMul"
}

func (m *matMul) forward(inputs ...*Tensor) *Tensor {
	return inputs[0].matMul(inputs[1], m.transpose0, m.transpose1)
}

func (m *matMul) backward(dy *Tensor) []*Tensor {
	a, b := m.inputs[0], m.inputs[1]
	switch {
	case !m.transpose0 && !m.transpose1:
		return []*Tensor{dy.matMul(b, false, true), a.matMul(dy, true, false)}
	case m.transpose0 && !m.transpose1:
		return []*Tensor{b.matMul(dy, false, true), a.matMul(dy, false, false)}
	case !m.transpose0 && m.transpose1:
		return []*Tensor{dy.matMul(b, false, false), dy.matMul(a, true, false)}
	default:
		return []*Tensor{b.matMul(dy, true, true), dy.matMul(a, true, true)}
	}
}

type transpose struct {
	opBase
}

func (t *transpose) String() string {
	return "Transpose"
}

func (t *transpose) forward(inputs ...*Tensor) *Tensor {
	return transposeLast(inputs[0])
}

func (t *transpose) backward(dy *Tensor) []*Tensor {
	return []*Tensor{transposeLast(dy)}
}

func transposeLast(x *Tensor) *Tensor {
	if len(x.shape) < 2 {
		panic(fmt.Sprintf("tensor: transpose on shape %v", x.shape))
	}
	m, n := x.shape[len(x.shape)-2], x.shape[len(x.shape)-1]
	outShape := append(append([]int{}, x.shape[:len(x.shape)-2]...), n, m)
	y := Zeros(outShape...)
	batch := numElements(x.shape[:len(x.shape)-2])
	for b := 0; b < batch; b++ {
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				y.data[b*m*n+j*m+i] = x.data[b*m*n+i*n+j]
			}
		}
	}
	return y
}

type reshape struct {
	opBase
	shape []int
}

func (r *reshape) String() string {
	return "Reshape"
}

func (r *reshape) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	if numElements(r.shape) != len(x.data) {
		panic(fmt.Sprintf("tensor: cannot reshape %v to %v", x.shape, r.shape))
	}
	y := x.Clone()
	y.shape = append([]int{}, r.shape...)
	return y
}

func (r *reshape) backward(dy *Tensor) []*Tensor {
	gx := dy.Clone()
	gx.shape = r.inputs[0].Shape()
	return []*Tensor{gx}
}

type selectIndex struct {
	opBase
	dim, index int
}

func (s *selectIndex) String() string {
	return "Select"
}

func (s *selectIndex) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	outer, size, inner := splitShape(x.shape, s.dim)
	if s.index < 0 || s.index >= size {
		panic(fmt.Sprintf("tensor: select index %d out of range for dimension %d of shape %v", s.index, s.dim, x.shape))
	}
	outShape := append(append([]int{}, x.shape[:s.dim]...), x.shape[s.dim+1:]...)
	y := Zeros(outShape...)
	for o := 0; o < outer; o++ {
		copy(y.data[o*inner:(o+1)*inner], x.data[(o*size+s.index)*inner:(o*size+s.index+1)*inner])
	}
	return y
}

func (s *selectIndex) backward(dy *Tensor) []*Tensor {
	x := s.inputs[0]
	outer, size, inner := splitShape(x.shape, s.dim)
	gx := Zeros(x.shape...)
	for o := 0; o < outer; o++ {
		copy(gx.data[(o*size+s.index)*inner:(o*size+s.index+1)*inner], dy.data[o*inner:(o+1)*inner])
	}
	return []*Tensor{gx}
}

type narrow struct {
	opBase
	dim, start, end int
}

func (n *narrow) String() string {
	return "Narrow"
}

func (n *narrow) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	outer, size, inner := splitShape(x.shape, n.dim)
	if n.start < 0 || n.end > size || n.start >= n.end {
		panic(fmt.Sprintf("tensor: narrow [%d:%d) out of range for dimension %d of shape %v", n.start, n.end, n.dim, x.shape))
	}
	width := n.end - n.start
	outShape := x.Shape()
	outShape[n.dim] = width
	y := Zeros(outShape...)
	for o := 0; o < outer; o++ {
		for k := 0; k < width; k++ {
			copy(
				y.data[(o*width+k)*inner:(o*width+k+1)*inner],
				x.data[(o*size+n.start+k)*inner:(o*size+n.start+k+1)*inner],
			)
		}
	}
	return y
}

func (n *narrow) backward(dy *Tensor) []*Tensor {
	x := n.inputs[0]
	outer, size, inner := splitShape(x.shape, n.dim)
	width := n.end - n.start
	gx := Zeros(x.shape...)
	for o := 0; o < outer; o++ {
		for k := 0; k < width; k++ {
			copy(
				gx.data[(o*size+n.start+k)*inner:(o*size+n.start+k+1)*inner],
				dy.data[(o*width+k)*inner:(o*width+k+1)*inner],
			)
		}
	}
	return []*Tensor{gx}
}

type indexSelect struct {
	opBase
	dim     int
	indices []int
}

func (s *indexSelect) String() string {
	return "IndexSelect"
}

func (s *indexSelect) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	outer, size, inner := splitShape(x.shape, s.dim)
	outShape := x.Shape()
	outShape[s.dim] = len(s.indices)
	y := Zeros(outShape...)
	for o := 0; o < outer; o++ {
		for k, index := range s.indices {
			if index < 0 || index >= size {
				panic(fmt.Sprintf("tensor: index %d out of range for dimension %d of shape %v", index, s.dim, x.shape))
			}
			copy(
				y.data[(o*len(s.indices)+k)*inner:(o*len(s.indices)+k+1)*inner],
				x.data[(o*size+index)*inner:(o*size+index+1)*inner],
			)
		}
	}
	return y
}

func (s *indexSelect) backward(dy *Tensor) []*Tensor {
	x := s.inputs[0]
	outer, size, inner := splitShape(x.shape, s.dim)
	gx := Zeros(x.shape...)
	for o := 0; o < outer; o++ {
		for k, index := range s.indices {
			for in := 0; in < inner; in++ {
				gx.data[(o*size+index)*inner+in] += dy.data[(o*len(s.indices)+k)*inner+in]
			}
		}
	}
	return []*Tensor{gx}
}

type stack struct {
	opBase
}

func (s *stack) String() string {
	return "Stack"
}

func (s *stack) forward(inputs ...*Tensor) *Tensor {
	shape := inputs[0].Shape()
	for _, input := range inputs[1:] {
		if !shapeEqual(input.shape, shape) {
			panic(fmt.Sprintf("tensor: stack of mismatched shapes %v and %v", shape, input.shape))
		}
	}
	outShape := append([]int{len(inputs)}, shape...)
	y := Zeros(outShape...)
	stride := numElements(shape)
	for i, input := range inputs {
		copy(y.data[i*stride:(i+1)*stride], input.data)
	}
	return y
}

func (s *stack) backward(dy *Tensor) []*Tensor {
	stride := numElements(s.inputs[0].shape)
	grads := make([]*Tensor, len(s.inputs))
	for i := range s.inputs {
		gx := Zeros(s.inputs[i].shape...)
		copy(gx.data, dy.data[i*stride:(i+1)*stride])
		grads[i] = gx
	}
	return grads
}

type diagEmbed struct {
	opBase
}

func (d *diagEmbed) String() string {
	return "DiagEmbed"
}

func (d *diagEmbed) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	if len(x.shape) < 1 {
		panic("tensor: diagEmbed on a scalar")
	}
	n := x.shape[len(x.shape)-1]
	outShape := append(x.Shape(), n)
	y := Zeros(outShape...)
	batch := numElements(x.shape[:len(x.shape)-1])
	for b := 0; b < batch; b++ {
		for i := 0; i < n; i++ {
			y.data[b*n*n+i*n+i] = x.data[b*n+i]
		}
	}
	return y
}

func (d *diagEmbed) backward(dy *Tensor) []*Tensor {
	x := d.inputs[0]
	n := x.shape[len(x.shape)-1]
	gx := Zeros(x.shape...)
	batch := numElements(x.shape[:len(x.shape)-1])
	for b := 0; b < batch; b++ {
		for i := 0; i < n; i++ {
			gx.data[b*n+i] = dy.data[b*n*n+i*n+i]
		}
	}
	return []*Tensor{gx}
}

type diagPart struct {
	opBase
}

func (d *diagPart) String() string {
	return "DiagPart"
}

func (d *diagPart) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	if len(x.shape) < 2 || x.shape[len(x.shape)-1] != x.shape[len(x.shape)-2] {
		panic(fmt.Sprintf("tensor: diagPart on shape %v", x.shape))
	}
	n := x.shape[len(x.shape)-1]
	outShape := x.Shape()
	outShape = outShape[:len(outShape)-1]
	y := Zeros(outShape...)
	batch := numElements(x.shape[:len(x.shape)-2])
	for b := 0; b < batch; b++ {
		for i := 0; i < n; i++ {
			y.data[b*n+i] = x.data[b*n*n+i*n+i]
		}
	}
	return y
}

func (d *diagPart) backward(dy *Tensor) []*Tensor {
	x := d.inputs[0]
	n := x.shape[len(x.shape)-1]
	gx := Zeros(x.shape...)
	batch := numElements(x.shape[:len(x.shape)-2])
	for b := 0; b < batch; b++ {
		for i := 0; i < n; i++ {
			gx.data[b*n*n+i*n+i] = dy.data[b*n+i]
		}
	}
	return []*Tensor{gx}
}

type inverse struct {
	opBase
}

func (v *inverse) String() string {
	return "Inverse"
}

func (v *inverse) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	if len(x.shape) < 2 || x.shape[len(x.shape)-1] != x.shape[len(x.shape)-2] {
		panic(fmt.Sprintf("tensor: inverse on shape %v", x.shape))
	}
	n := x.shape[len(x.shape)-1]
	batch := numElements(x.shape[:len(x.shape)-2])
	y := Zeros(x.shape...)
	for b := 0; b < batch; b++ {
		slice := mat.NewDense(n, n, x.data[b*n*n:(b+1)*n*n])
		var inv mat.Dense
		if err := inv.Inverse(slice); err != nil {
			panic(fmt.Sprintf("tensor: singular matrix: %v", err))
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				y.data[b*n*n+i*n+j] = inv.At(i, j)
			}
		}
	}
	return y
}

func (v *inverse) backward(dy *Tensor) []*Tensor {
	// d(A^-1) pulled back: dA = -Y' dy Y' for Y = A^-1
	y := v.output
	gx := y.matMul(dy, true, false).matMul(y, false, true)
	gx.neg()
	return []*Tensor{gx}
}

type expand struct {
	opBase
	shape []int
}

func (e *expand) String() string {
	return "Expand"
}

func (e *expand) forward(inputs ...*Tensor) *Tensor {
	x := inputs[0]
	if len(x.shape) > len(e.shape) {
		panic(fmt.Sprintf("tensor: cannot expand %v to %v", x.shape, e.shape))
	}
	offset := len(e.shape) - len(x.shape)
	for i, s := range x.shape {
		if s != e.shape[offset+i] && s != 1 {
			panic(fmt.Sprintf("tensor: cannot expand %v to %v", x.shape, e.shape))
		}
	}
	y := Zeros(e.shape...)
	for i := range y.data {
		y.data[i] = x.data[expandSource(i, e.shape, x.shape)]
	}
	return y
}

func (e *expand) backward(dy *Tensor) []*Tensor {
	x := e.inputs[0]
	gx := Zeros(x.shape...)
	for i := range dy.data {
		gx.data[expandSource(i, e.shape, x.shape)] += dy.data[i]
	}
	return []*Tensor{gx}
}

type selfAdjoint struct {
	opBase
	mapping func(*Tensor) *Tensor
}

func (s *selfAdjoint) String() string {
	return "SelfAdjoint"
}

func (s *selfAdjoint) forward(inputs ...*Tensor) *Tensor {
	return s.mapping(inputs[0])
}

func (s *selfAdjoint) backward(dy *Tensor) []*Tensor {
	return []*Tensor{s.mapping(dy)}
}

// expandSource maps a flat output offset back to the flat offset of the
// broadcast operand.
func expandSource(offset int, outShape, inShape []int) int {
	diff := len(outShape) - len(inShape)
	indices := make([]int, len(outShape))
	for i := len(outShape) - 1; i >= 0; i-- {
		indices[i] = offset % outShape[i]
		offset /= outShape[i]
	}
	source := 0
	for i, s := range inShape {
		index := indices[diff+i]
		if s == 1 {
			index = 0
		}
		source = source*s + index
	}
	return source
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Add returns the element-wise sum of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Add(x0, x1 *Tensor) *Tensor {
	if len(x0.shape) < len(x1.shape) {
		x0, x1 = x1, x0
	}
	checkSuffixShape(x0, x1)
	return apply(&add{}, x0, x1)
}

// Sub returns the element-wise difference of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Sub(x0, x1 *Tensor) *Tensor {
	checkSuffixShape(x0, x1)
	return apply(&sub{}, x0, x1)
}

// Mul returns the element-wise product of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Mul(x0, x1 *Tensor) *Tensor {
	if len(x0.shape) < len(x1.shape) {
		x0, x1 = x1, x0
	}
	checkSuffixShape(x0, x1)
	return apply(&mul{}, x0, x1)
}

// Div returns the element-wise division of two tensors. The shape of the second tensor must be a suffix sequence of the shape of the first tensor.
func Div(x0, x1 *Tensor) *Tensor {
	checkSuffixShape(x0, x1)
	return apply(&div{}, x0, x1)
}

// Neg returns the element-wise negation of a tensor.
func Neg(x *Tensor) *Tensor {
	return apply(&neg{}, x)
}

// Sum returns the sum of all elements in a tensor as a scalar.
func Sum(x *Tensor) *Tensor {
	return apply(&sum{}, x)
}

// SumDim sums over a single dimension. Negative dim counts from the end.
func SumDim(x *Tensor, dim int) *Tensor {
	if dim < 0 {
		dim += len(x.shape)
	}
	return apply(&sumDim{dim: dim}, x)
}

// MatMul multiplies the trailing matrix dimensions of two tensors. Both
// operands must carry identical batch prefixes. A 1-D second operand is
// treated as a column vector and the result is squeezed back to 1-D; the same
// applies to a batch-prefixed vector.
func MatMul(x, y *Tensor) *Tensor {
	if len(y.shape) == len(x.shape)-1 {
		// vector right-hand side
		colShape := append(y.Shape(), 1)
		out := apply(&matMul{}, x, Reshape(y, colShape...))
		outShape := out.Shape()
		return Reshape(out, outShape[:len(outShape)-1]...)
	}
	return apply(&matMul{}, x, y)
}

// MatMulT multiplies with optional transposition of either operand's trailing
// matrix dimensions, avoiding an explicit Transpose node.
func MatMulT(x, y *Tensor, transposeX, transposeY bool) *Tensor {
	return apply(&matMul{transpose0: transposeX, transpose1: transposeY}, x, y)
}

// Transpose swaps the two trailing dimensions.
func Transpose(x *Tensor) *Tensor {
	return apply(&transpose{}, x)
}

// Reshape returns a tensor with the same elements and a new shape.
func Reshape(x *Tensor, shape ...int) *Tensor {
	return apply(&reshape{shape: shape}, x)
}

// Select fixes dimension dim at index, dropping the dimension.
func Select(x *Tensor, dim, index int) *Tensor {
	if dim < 0 {
		dim += len(x.shape)
	}
	return apply(&selectIndex{dim: dim, index: index}, x)
}

// Narrow restricts dimension dim to the half-open range [start, end).
func Narrow(x *Tensor, dim, start, end int) *Tensor {
	if dim < 0 {
		dim += len(x.shape)
	}
	return apply(&narrow{dim: dim, start: start, end: end}, x)
}

// IndexSelect gathers the given indices along dimension dim. Indices may
// repeat.
func IndexSelect(x *Tensor, dim int, indices []int) *Tensor {
	if dim < 0 {
		dim += len(x.shape)
	}
	idx := append([]int{}, indices...)
	return apply(&indexSelect{dim: dim, indices: idx}, x)
}

// Stack concatenates tensors of identical shape along a new leading
// dimension.
func Stack(xs ...*Tensor) *Tensor {
	if len(xs) == 0 {
		panic("tensor: stack of no tensors")
	}
	return apply(&stack{}, xs...)
}

// DiagEmbed places the trailing dimension of x on the diagonal of a new
// square trailing matrix.
func DiagEmbed(x *Tensor) *Tensor {
	return apply(&diagEmbed{}, x)
}

// DiagPart extracts the diagonal of the trailing square matrix, dropping the
// last dimension.
func DiagPart(x *Tensor) *Tensor {
	return apply(&diagPart{}, x)
}

// Inverse inverts the trailing square matrix of every batch slice.
func Inverse(x *Tensor) *Tensor {
	return apply(&inverse{}, x)
}

// Expand broadcasts x to the given shape. Existing dimensions must match or
// be one; missing leading dimensions are repeated.
func Expand(x *Tensor, shape ...int) *Tensor {
	return apply(&expand{shape: append([]int{}, shape...)}, x)
}

// ApplySelfAdjoint applies f to x as a linear map whose coefficients autodiff
// holds constant: the upstream gradient is pushed through f itself, which is
// the adjoint exactly when f is self-adjoint. f must read values only and
// return a detached tensor shaped like its argument.
func ApplySelfAdjoint(x *Tensor, f func(*Tensor) *Tensor) *Tensor {
	return apply(&selfAdjoint{mapping: f}, x)
}
