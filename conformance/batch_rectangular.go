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

package conformance

import (
	"github.com/lazymat-io/lazymat/lazy"
	"github.com/lazymat-io/lazymat/tensor"
)

// BatchRectangularSuite is the conformance battery for lazy tensors with a
// batch prefix. Every batch dimension must have at least two elements and
// the matrix dimensions at least three, so the index programs below stay in
// range.
type BatchRectangularSuite struct {
	harness
}

func (s *BatchRectangularSuite) TestMatmulMatrix() {
	subject, reference, evaluated := s.createPair()

	rhsShape := append(append([]int{}, subject.BatchShape()...), subject.Size(-1), 5)
	rhs := tensor.RandN(Generator(), rhsShape...)
	res := subject.Matmul(rhs)
	actual := tensor.MatMul(evaluated, rhs.Clone())
	s.assertWithin(res, actual, matmulTolerance)

	grad := tensor.RandN(Generator(), res.Shape()...)
	res.BackwardWith(grad)
	actual.BackwardWith(grad)
	s.assertGradientsMatch(subject, reference, matmulTolerance)
}

// indexCombinations enumerates one choice per batch dimension.
func indexCombinations(batch []int, choices []lazy.Index) [][]lazy.Index {
	combos := [][]lazy.Index{{}}
	for range batch {
		var next [][]lazy.Index
		for _, combo := range combos {
			for _, choice := range choices {
				extended := append(append([]lazy.Index{}, combo...), choice)
				next = append(next, extended)
			}
		}
		combos = next
	}
	return combos
}

func (s *BatchRectangularSuite) runIndexPrograms(programs [][]lazy.Index) {
	subject, _, evaluated := s.createPair()
	for _, program := range programs {
		res := subject.Index(program...).Evaluate()
		actual := lazy.ApplyIndex(evaluated, program...)
		s.assertWithin(res, actual, getitemTolerance)
	}
}

func (s *BatchRectangularSuite) TestGetitem() {
	subject := s.Adapter.CreateLazyTensor()
	rows := subject.Size(-2)

	programs := [][]lazy.Index{
		{lazy.Fix(1)},
		{lazy.Span(0, 2)},
	}
	trailers := [][]lazy.Index{
		{lazy.Span(0, 1), lazy.Span(0, 2)},
		{lazy.Fix(1), lazy.Span(0, 2)},
		{lazy.Span(1, rows), lazy.Fix(2)},
		{lazy.All(), lazy.Span(0, 2)},
	}
	batchChoices := []lazy.Index{lazy.Fix(1), lazy.Span(0, 2)}
	for _, combo := range indexCombinations(subject.BatchShape(), batchChoices) {
		for _, trailer := range trailers {
			program := append(append([]lazy.Index{}, combo...), trailer...)
			programs = append(programs, program)
		}
	}
	s.runIndexPrograms(programs)
}

func (s *BatchRectangularSuite) TestGetitemTensorIndex() {
	subject := s.Adapter.CreateLazyTensor()

	// random point arrays with repeats, sized to pair with the batch arrays
	randomRows := Generator().IntVector(4, subject.Size(-2))
	randomCols := Generator().IntVector(4, subject.Size(-1))
	trailers := [][]lazy.Index{
		{lazy.Points(0, 1, 0, 2), lazy.Points(1, 2, 0, 1)},
		{lazy.Points(0, 1, 0, 2), lazy.All()},
		{lazy.All(), lazy.Points(0, 1, 2, 1)},
		{lazy.All(), lazy.All()},
		{lazy.Points(randomRows...), lazy.Points(randomCols...)},
	}
	batchChoices := []lazy.Index{lazy.Points(0, 1, 1, 0), lazy.All()}
	var programs [][]lazy.Index
	for _, combo := range indexCombinations(subject.BatchShape(), batchChoices) {
		for _, trailer := range trailers {
			program := append(append([]lazy.Index{}, combo...), trailer...)
			programs = append(programs, program)
		}
	}
	s.runIndexPrograms(programs)
}
