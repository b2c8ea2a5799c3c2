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
	"math"

	"github.com/stretchr/testify/suite"

	"github.com/lazymat-io/lazymat/lazy"
	"github.com/lazymat-io/lazymat/tensor"
)

// harness carries the adapter plumbing and assertions shared by every
// battery.
type harness struct {
	suite.Suite
	Adapter Adapter
	Config  Config
	scope   seedScope
}

func (s *harness) SetupTest() {
	s.scope.setUp(s.Config)
}

func (s *harness) TearDownTest() {
	s.scope.tearDown()
}

// createPair builds the subject together with a clone whose leaves drive the
// reference computation, so gradients of both sides can be compared leaf by
// leaf.
func (s *harness) createPair() (lazy.LazyTensor, lazy.LazyTensor, *tensor.Tensor) {
	subject := s.Adapter.CreateLazyTensor()
	reference := subject.Clone()
	return subject, reference, s.Adapter.EvaluateLazyTensor(reference)
}

func (s *harness) createSquarePair() (lazy.SquareLazyTensor, lazy.LazyTensor, *tensor.Tensor) {
	subject, reference, evaluated := s.createPair()
	square, ok := subject.(lazy.SquareLazyTensor)
	s.Require().True(ok, "this battery needs a square lazy tensor, got %T", subject)
	return square, reference, evaluated
}

func (s *harness) assertWithin(res, actual *tensor.Tensor, tolerance float64) {
	s.Require().Equal(actual.Shape(), res.Shape())
	s.LessOrEqual(MaxRelError(res, actual, clampFloor, clampCeiling), tolerance)
}

func (s *harness) assertAllClose(res, actual *tensor.Tensor) {
	s.Require().Equal(actual.Shape(), res.Shape())
	for i, a := range actual.Data() {
		s.InDelta(a, res.Data()[i], 1e-8+1e-6*math.Abs(a))
	}
}

// assertGradientsMatch pairs the representation leaves of the subject with
// those of the reference clone. Leaves the reference computation left
// untouched are exempt.
func (s *harness) assertGradientsMatch(subject, reference lazy.LazyTensor, tolerance float64) {
	rep := subject.Representation()
	refRep := reference.Representation()
	s.Require().Equal(len(refRep), len(rep))
	for i := range rep {
		if refRep[i].Grad() == nil {
			continue
		}
		s.Require().NotNil(rep[i].Grad(), "representation leaf %d received no gradient", i)
		s.LessOrEqual(MaxRelError(rep[i].Grad(), refRep[i].Grad(), clampFloor, clampCeiling),
			tolerance, "gradient of representation leaf %d", i)
	}
}

// TestEvaluate runs in every battery: materialization must match the
// adapter's independent reference and must be repeatable.
func (s *harness) TestEvaluate() {
	subject, _, actual := s.createPair()
	res := subject.Evaluate()
	s.assertAllClose(res, actual)
	// evaluation must be free of side effects
	s.assertAllClose(subject.Evaluate(), res)
}
