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

// BatchSuite is the full conformance battery for batched square lazy
// tensors. It includes every BatchRectangularSuite check.
type BatchSuite struct {
	BatchRectangularSuite
}

// diagOperandShapes enumerates every broadcastable shape of a diagonal
// operand: each batch dimension is either kept or squeezed to one, and the
// trailing dimension is either the matrix size or one.
func diagOperandShapes(batch []int, n int) [][]int {
	prefixes := [][]int{{}}
	for _, size := range batch {
		var next [][]int
		for _, prefix := range prefixes {
			for _, choice := range []int{1, size} {
				next = append(next, append(append([]int{}, prefix...), choice))
			}
		}
		prefixes = next
	}
	var shapes [][]int
	for _, prefix := range prefixes {
		for _, last := range []int{1, n} {
			shapes = append(shapes, append(append([]int{}, prefix...), last))
		}
	}
	return shapes
}

func (s *BatchSuite) TestAddDiag() {
	square, _, evaluated := s.createSquarePair()
	n := square.Size(-1)
	batch := square.BatchShape()
	fullShape := append(append([]int{}, batch...), n)

	operands := []*tensor.Tensor{
		tensor.NewScalar(1.5),
		tensor.Full(0.5, 1),
		tensor.NewTensor(Generator().SquaredNormalVector(n), n),
	}
	for _, shape := range diagOperandShapes(batch, n) {
		count := 1
		for _, size := range shape {
			count *= size
		}
		operands = append(operands, tensor.NewTensor(Generator().SquaredNormalVector(count), shape...))
	}
	for _, diag := range operands {
		res := square.AddDiag(diag).Evaluate()
		actual := tensor.Add(evaluated, tensor.DiagEmbed(tensor.Expand(diag, fullShape...)))
		s.assertAllClose(res, actual)
	}
}

func (s *BatchSuite) TestDiag() {
	square, _, evaluated := s.createSquarePair()

	res := square.Diag()
	shape := square.Shape()
	s.Require().Equal(shape[:len(shape)-1], res.Shape())
	s.assertWithin(res, tensor.DiagPart(evaluated), matmulTolerance)
}

func (s *BatchSuite) TestInvMatmulMatrix() {
	square, reference, evaluated := s.createSquarePair()
	settings := lazy.NewSettings()
	settings.MaxCGIterations = 200

	rhsShape := append(append([]int{}, square.BatchShape()...), square.Size(-1), 5)
	rhs := tensor.RandN(Generator(), rhsShape...)
	res := square.InvMatmul(rhs, settings)
	actual := tensor.MatMul(tensor.Inverse(evaluated), rhs.Clone())
	s.assertWithin(res, actual, matmulTolerance)

	grad := tensor.RandN(Generator(), res.Shape()...)
	res.BackwardWith(grad)
	actual.BackwardWith(grad)
	s.assertGradientsMatch(square, reference, matmulTolerance)
}

// batchInvQuadLogDetReference computes both terms exactly per batch element.
func batchInvQuadLogDetReference(evaluated, rhs *tensor.Tensor) *tensor.Tensor {
	inv := tensor.Inverse(evaluated)
	products := tensor.Mul(tensor.MatMul(inv, rhs), rhs)
	invQuad := tensor.SumDim(tensor.SumDim(products, -2), -1)
	return tensor.Add(invQuad, denseLogDet(evaluated))
}

func (s *BatchSuite) TestInvQuadLogDet() {
	square, _, evaluated := s.createSquarePair()
	settings := lazy.NewSettings()
	settings.NumTraceSamples = 128

	rhsShape := append(append([]int{}, square.BatchShape()...), square.Size(-1), 3)
	rhs := tensor.RandN(Generator(), rhsShape...)
	invQuad, logDet := square.InvQuadLogDet(rhs, true, settings, Generator())
	s.Require().Equal(square.BatchShape(), invQuad.Shape())
	res := tensor.Add(invQuad, logDet)

	actual := batchInvQuadLogDetReference(evaluated, rhs.Clone())
	for _, err := range RelErrors(res, actual, logDetClampFloor, logDetClampCeil) {
		s.LessOrEqual(err, invQuadLogDetTolerance)
	}
}

func (s *BatchSuite) TestInvQuadLogDetNoReduce() {
	square, _, evaluated := s.createSquarePair()
	settings := lazy.NewSettings()
	settings.NumTraceSamples = 128

	rhsShape := append(append([]int{}, square.BatchShape()...), square.Size(-1), 3)
	rhs := tensor.RandN(Generator(), rhsShape...)
	invQuad, logDet := square.InvQuadLogDet(rhs, false, settings, Generator())
	s.Require().Equal(append(square.BatchShape(), 3), invQuad.Shape())
	res := tensor.Add(tensor.SumDim(invQuad, -1), logDet)

	actual := batchInvQuadLogDetReference(evaluated, rhs.Clone())
	for _, err := range RelErrors(res, actual, logDetClampFloor, logDetClampCeil) {
		s.LessOrEqual(err, invQuadLogDetTolerance)
	}
}

func (s *BatchSuite) TestSample() {
	if !s.Config.ShouldTestSample {
		s.T().Skip("sampling is disabled for this adapter")
	}
	square, _, evaluated := s.createSquarePair()

	samples, err := square.Samples(10000, Generator())
	s.Require().NoError(err)
	s.assertWithin(secondMoment(samples), evaluated.NoGrad(), matmulTolerance)
}
