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

	"github.com/lazymat-io/lazymat/tensor"
)

type indexKind int

const (
	indexAll indexKind = iota
	indexFix
	indexSpan
	indexPoints
)

// Index selects elements along one dimension of an index program. A program
// mixes full slices, fixed integers, half-open ranges, and integer arrays;
// all integer arrays of one program must share a common length and collapse
// into a single result dimension, placed where the first array appeared.
type Index struct {
	kind       indexKind
	at         int
	start, end int
	points     []int
}

// All keeps a dimension untouched.
func All() Index {
	return Index{kind: indexAll}
}

// Fix selects a single position, dropping the dimension.
func Fix(at int) Index {
	return Index{kind: indexFix, at: at}
}

// Span restricts a dimension to the half-open range [start, end).
func Span(start, end int) Index {
	return Index{kind: indexSpan, start: start, end: end}
}

// Points gathers an integer array of positions. Positions may repeat.
func Points(points ...int) Index {
	return Index{kind: indexPoints, points: points}
}

func (i Index) String() string {
	switch i.kind {
	case indexAll:
		return ":"
	case indexFix:
		return fmt.Sprint(i.at)
	case indexSpan:
		return fmt.Sprintf("%d:%d", i.start, i.end)
	default:
		return fmt.Sprint(i.points)
	}
}

// padSpecs extends a program with All entries up to rank dimensions.
func padSpecs(specs []Index, rank int) []Index {
	if len(specs) > rank {
		panic(fmt.Sprintf("lazy: index program of length %d for rank %d", len(specs), rank))
	}
	padded := make([]Index, rank)
	copy(padded, specs)
	for i := len(specs); i < rank; i++ {
		padded[i] = All()
	}
	return padded
}

// indexShape computes the shape produced by applying an index program.
func indexShape(shape []int, specs []Index) []int {
	specs = padSpecs(specs, len(shape))
	var out []int
	pointsLen := -1
	for dim, spec := range specs {
		switch spec.kind {
		case indexAll:
			out = append(out, shape[dim])
		case indexFix:
			// dropped
		case indexSpan:
			out = append(out, spec.end-spec.start)
		case indexPoints:
			if pointsLen == -1 {
				pointsLen = len(spec.points)
				out = append(out, pointsLen)
			} else if pointsLen != len(spec.points) {
				panic(fmt.Sprintf("lazy: point arrays of lengths %d and %d in one index program", pointsLen, len(spec.points)))
			}
		}
	}
	return out
}

// ApplyIndex runs an index program against a materialized tensor, with the
// same semantics as LazyTensor.Index followed by Evaluate.
func ApplyIndex(x *tensor.Tensor, specs ...Index) *tensor.Tensor {
	return applyIndex(x, specs)
}

// applyIndex runs an index program against a dense tensor. Fixed and ranged
// dimensions go through autodiff-aware Select and Narrow; point arrays are
// gathered afterwards into one collapsed dimension.
func applyIndex(x *tensor.Tensor, specs []Index) *tensor.Tensor {
	specs = padSpecs(specs, x.Dims())
	// First pass: Fix and Span. Fixing drops a dimension, so track the
	// offset of dimensions already removed.
	dropped := 0
	var pointSpecs []Index
	var pointDims []int
	for dim, spec := range specs {
		switch spec.kind {
		case indexFix:
			x = tensor.Select(x, dim-dropped, spec.at)
			dropped++
		case indexSpan:
			x = tensor.Narrow(x, dim-dropped, spec.start, spec.end)
		case indexPoints:
			pointSpecs = append(pointSpecs, spec)
			pointDims = append(pointDims, dim-dropped)
		}
	}
	if len(pointSpecs) == 0 {
		return x
	}
	if len(pointSpecs) == 1 {
		return tensor.IndexSelect(x, pointDims[0], pointSpecs[0].points)
	}
	// Several point arrays collapse into one dimension of their common
	// length, placed at the position of the first array.
	k := len(pointSpecs[0].points)
	for _, spec := range pointSpecs[1:] {
		if len(spec.points) != k {
			panic(fmt.Sprintf("lazy: point arrays of lengths %d and %d in one index program", k, len(spec.points)))
		}
	}
	isPoint := make(map[int]bool, len(pointDims))
	for _, dim := range pointDims {
		isPoint[dim] = true
	}
	shape := x.Shape()
	var outShape []int
	collapsedPos := -1
	for dim, size := range shape {
		if isPoint[dim] {
			if collapsedPos == -1 {
				collapsedPos = len(outShape)
				outShape = append(outShape, k)
			}
			continue
		}
		outShape = append(outShape, size)
	}
	// Map every non-collapsed output dimension back to its source
	// dimension; -1 marks the collapsed dimension.
	srcOf := make([]int, 0, len(outShape))
	for dim := range shape {
		if isPoint[dim] {
			if dim == pointDims[0] {
				srcOf = append(srcOf, -1)
			}
			continue
		}
		srcOf = append(srcOf, dim)
	}
	out := tensor.Zeros(outShape...)
	outIndex := make([]int, len(outShape))
	srcIndex := make([]int, len(shape))
	var fill func(outDim int)
	fill = func(outDim int) {
		if outDim == len(outShape) {
			out.Set(x.At(srcIndex...), outIndex...)
			return
		}
		if srcOf[outDim] == -1 {
			for q := 0; q < k; q++ {
				outIndex[outDim] = q
				for j, dim := range pointDims {
					srcIndex[dim] = pointSpecs[j].points[q]
				}
				fill(outDim + 1)
			}
			return
		}
		for v := 0; v < outShape[outDim]; v++ {
			outIndex[outDim] = v
			srcIndex[srcOf[outDim]] = v
			fill(outDim + 1)
		}
	}
	fill(0)
	return out
}
