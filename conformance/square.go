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

// Suite is the full conformance battery for unbatched square lazy tensors.
// It includes every RectangularSuite check. Solver-backed checks assume a
// symmetric positive definite matrix.
type Suite struct {
	RectangularSuite
}

func (s *Suite) TestAddDiag() {
	square, _, evaluated := s.createSquarePair()
	n := square.Size(-1)

	operands := []*tensor.Tensor{
		tensor.NewScalar(1.5),
		tensor.Full(0.5, 1),
		tensor.NewTensor(Generator().SquaredNormalVector(n), n),
	}
	for _, diag := range operands {
		full := diag
		if diag.NumElements() == 1 {
			full = tensor.Full(diag.Data()[0], n)
		}
		res := square.AddDiag(diag).Evaluate()
		actual := tensor.Add(evaluated, tensor.DiagEmbed(full))
		s.assertAllClose(res, actual)
	}
}

func (s *Suite) TestDiag() {
	square, _, evaluated := s.createSquarePair()

	res := square.Diag()
	shape := square.Shape()
	s.Require().Equal(shape[:len(shape)-1], res.Shape())
	s.assertWithin(res, tensor.DiagPart(evaluated), matmulTolerance)
}

func (s *Suite) TestInvMatmulVec() {
	square, reference, evaluated := s.createSquarePair()
	settings := lazy.NewSettings()
	settings.MaxCGIterations = 200

	vec := tensor.RandN(Generator(), square.Size(-1))
	res := square.InvMatmul(vec, settings)
	actual := tensor.MatMul(tensor.Inverse(evaluated), vec.Clone())
	s.assertWithin(res, actual, matmulTolerance)

	grad := tensor.RandN(Generator(), res.Shape()...)
	res.BackwardWith(grad)
	actual.BackwardWith(grad)
	s.assertGradientsMatch(square, reference, matmulTolerance)
}

func (s *Suite) TestInvMatmulMatrix() {
	square, reference, evaluated := s.createSquarePair()
	settings := lazy.NewSettings()
	settings.MaxCGIterations = 100

	rhs := tensor.RandN(Generator(), square.Size(-1), 5)
	res := square.InvMatmul(rhs, settings)
	actual := tensor.MatMul(tensor.Inverse(evaluated), rhs.Clone())
	s.assertWithin(res, actual, matmulTolerance)

	grad := tensor.RandN(Generator(), res.Shape()...)
	res.BackwardWith(grad)
	actual.BackwardWith(grad)
	s.assertGradientsMatch(square, reference, matmulTolerance)
}

// invQuadLogDetReference computes the two terms exactly from the
// materialized matrix.
func invQuadLogDetReference(evaluated, rhs *tensor.Tensor) float64 {
	inv := tensor.Inverse(evaluated)
	invQuad := tensor.Sum(tensor.Mul(tensor.MatMul(inv, rhs), rhs)).Item()
	return invQuad + denseLogDet(evaluated).Item()
}

func (s *Suite) TestInvQuadLogDet() {
	square, _, evaluated := s.createSquarePair()
	settings := lazy.NewSettings()
	settings.NumTraceSamples = 128

	rhs := tensor.RandN(Generator(), square.Size(-1), 3)
	invQuad, logDet := square.InvQuadLogDet(rhs, true, settings, Generator())
	res := invQuad.Item() + logDet.Item()

	actual := invQuadLogDetReference(evaluated, rhs.Clone())
	s.LessOrEqual(relError(res, actual, logDetClampFloor, logDetClampCeil), invQuadLogDetTolerance)
}

func (s *Suite) TestInvQuadLogDetNoReduce() {
	square, _, evaluated := s.createSquarePair()
	settings := lazy.NewSettings()
	settings.NumTraceSamples = 128

	rhs := tensor.RandN(Generator(), square.Size(-1), 3)
	invQuad, logDet := square.InvQuadLogDet(rhs, false, settings, Generator())
	s.Require().Equal([]int{3}, invQuad.Shape())
	res := tensor.Sum(invQuad).Item() + logDet.Item()

	actual := invQuadLogDetReference(evaluated, rhs.Clone())
	s.LessOrEqual(relError(res, actual, logDetClampFloor, logDetClampCeil), invQuadLogDetTolerance)
}

func (s *Suite) TestSample() {
	if !s.Config.ShouldTestSample {
		s.T().Skip("sampling is disabled for this adapter")
	}
	square, _, evaluated := s.createSquarePair()

	samples, err := square.Samples(10000, Generator())
	s.Require().NoError(err)
	s.assertWithin(secondMoment(samples), evaluated.NoGrad(), matmulTolerance)
}
