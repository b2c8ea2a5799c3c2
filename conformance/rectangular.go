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

// RectangularSuite is the conformance battery for unbatched lazy tensors of
// any matrix shape. Embed it in a test suite, set Adapter and Config, and
// hand it to suite.Run. Matrices need at least three rows and three columns
// so the index programs below stay in range.
type RectangularSuite struct {
	harness
}

func (s *RectangularSuite) TestMatmulVec() {
	subject, reference, evaluated := s.createPair()

	vec := tensor.RandN(Generator(), subject.Size(-1))
	res := subject.Matmul(vec)
	actual := tensor.MatMul(evaluated, vec.Clone())
	s.assertWithin(res, actual, matmulTolerance)

	grad := tensor.RandN(Generator(), res.Shape()...)
	res.BackwardWith(grad)
	actual.BackwardWith(grad)
	s.assertGradientsMatch(subject, reference, matmulTolerance)
}

func (s *RectangularSuite) TestMatmulMatrix() {
	subject, reference, evaluated := s.createPair()

	rhs := tensor.RandN(Generator(), subject.Size(-1), 5)
	res := subject.Matmul(rhs)
	actual := tensor.MatMul(evaluated, rhs.Clone())
	s.assertWithin(res, actual, matmulTolerance)

	grad := tensor.RandN(Generator(), res.Shape()...)
	res.BackwardWith(grad)
	actual.BackwardWith(grad)
	s.assertGradientsMatch(subject, reference, matmulTolerance)
}

func (s *RectangularSuite) TestGetitem() {
	subject, _, evaluated := s.createPair()

	programs := [][]lazy.Index{
		{lazy.Fix(1)},
		{lazy.Span(0, 2)},
		{lazy.All(), lazy.Span(0, 2)},
	}
	for _, program := range programs {
		res := subject.Index(program...).Evaluate()
		actual := lazy.ApplyIndex(evaluated, program...)
		s.assertWithin(res, actual, getitemTolerance)
	}
}

func (s *RectangularSuite) TestGetitemTensorIndex() {
	subject, _, evaluated := s.createPair()

	// paired duplicate-free point arrays, drawn fresh under the seed scope
	rows := Generator().Sample(0, subject.Size(-2), 3)
	cols := Generator().Sample(0, subject.Size(-1), 3)
	programs := [][]lazy.Index{
		{lazy.Points(0, 0, 1, 2), lazy.Points(0, 1, 0, 2)},
		{lazy.Points(0, 0, 1, 2), lazy.All()},
		{lazy.All(), lazy.Points(0, 0, 1, 2)},
		{lazy.Points(rows...), lazy.Points(cols...)},
	}
	for _, program := range programs {
		res := subject.Index(program...).Evaluate()
		actual := lazy.ApplyIndex(evaluated, program...)
		s.assertWithin(res, actual, getitemTolerance)
	}
}
