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

	"github.com/lazymat-io/lazymat/lazy"
	"github.com/lazymat-io/lazymat/tensor"
)

// CheckResult is the outcome of one conformance check.
type CheckResult struct {
	Name      string
	MaxError  float64
	Tolerance float64
}

// Passed reports whether the error stayed within the tolerance.
func (r CheckResult) Passed() bool {
	return r.MaxError <= r.Tolerance
}

// RunChecks exercises an adapter against dense reference arithmetic outside
// the test runner, for command line reports. Rectangular subjects get the
// multiplication, materialization, and indexing checks; square subjects
// additionally get the solver checks, and sampling runs when
// cfg.ShouldTestSample is set. The progress callback, if not nil, is invoked
// with each check's name before it runs.
func RunChecks(adapter Adapter, cfg Config, settings *lazy.Settings, progress func(name string)) []CheckResult {
	var scope seedScope
	var results []CheckResult
	run := func(name string, tolerance float64, check func() float64) {
		if progress != nil {
			progress(name)
		}
		scope.setUp(cfg)
		maxError := check()
		scope.tearDown()
		results = append(results, CheckResult{Name: name, MaxError: maxError, Tolerance: tolerance})
	}

	run("matmul", matmulTolerance, func() float64 {
		subject := adapter.CreateLazyTensor()
		reference := subject.Clone()
		evaluated := adapter.EvaluateLazyTensor(reference)
		rhsShape := append(append([]int{}, subject.BatchShape()...), subject.Size(-1), 5)
		rhs := tensor.RandN(Generator(), rhsShape...)
		res := subject.Matmul(rhs)
		actual := tensor.MatMul(evaluated, rhs.Clone())
		maxError := MaxRelError(res, actual, clampFloor, clampCeiling)

		grad := tensor.RandN(Generator(), res.Shape()...)
		res.BackwardWith(grad)
		actual.BackwardWith(grad)
		return math.Max(maxError, gradientError(subject, reference))
	})

	run("evaluate", 1e-6, func() float64 {
		subject := adapter.CreateLazyTensor()
		evaluated := adapter.EvaluateLazyTensor(subject.Clone())
		return MaxRelError(subject.Evaluate(), evaluated, clampFloor, clampCeiling)
	})

	run("getitem", getitemTolerance, func() float64 {
		subject := adapter.CreateLazyTensor()
		evaluated := adapter.EvaluateLazyTensor(subject.Clone())
		res := subject.Index(lazy.Span(0, 2)).Evaluate()
		actual := lazy.ApplyIndex(evaluated, lazy.Span(0, 2))
		return MaxRelError(res, actual, clampFloor, clampCeiling)
	})

	// the solver checks only make sense for square matrices; Dense satisfies
	// the square interface structurally, so gate on the actual shape
	if shape := adapter.CreateLazyTensor().MatrixShape(); shape[0] != shape[1] {
		return results
	}

	run("diag", matmulTolerance, func() float64 {
		subject := adapter.CreateLazyTensor().(lazy.SquareLazyTensor)
		evaluated := adapter.EvaluateLazyTensor(subject.Clone())
		return MaxRelError(subject.Diag(), tensor.DiagPart(evaluated), clampFloor, clampCeiling)
	})

	run("add diag", 1e-6, func() float64 {
		subject := adapter.CreateLazyTensor().(lazy.SquareLazyTensor)
		evaluated := adapter.EvaluateLazyTensor(subject.Clone())
		n := subject.Size(-1)
		diag := tensor.NewTensor(Generator().SquaredNormalVector(n), n)
		res := subject.AddDiag(diag).Evaluate()
		fullShape := append(append([]int{}, subject.BatchShape()...), n)
		actual := tensor.Add(evaluated, tensor.DiagEmbed(tensor.Expand(diag, fullShape...)))
		return MaxRelError(res, actual, clampFloor, clampCeiling)
	})

	run("inv matmul", matmulTolerance, func() float64 {
		subject := adapter.CreateLazyTensor().(lazy.SquareLazyTensor)
		reference := subject.Clone()
		evaluated := adapter.EvaluateLazyTensor(reference)
		rhsShape := append(append([]int{}, subject.BatchShape()...), subject.Size(-1), 5)
		rhs := tensor.RandN(Generator(), rhsShape...)
		res := subject.InvMatmul(rhs, settings)
		actual := tensor.MatMul(tensor.Inverse(evaluated), rhs.Clone())
		maxError := MaxRelError(res, actual, clampFloor, clampCeiling)

		grad := tensor.RandN(Generator(), res.Shape()...)
		res.BackwardWith(grad)
		actual.BackwardWith(grad)
		return math.Max(maxError, gradientError(subject, reference))
	})

	run("inv quad + log det", invQuadLogDetTolerance, func() float64 {
		subject := adapter.CreateLazyTensor().(lazy.SquareLazyTensor)
		evaluated := adapter.EvaluateLazyTensor(subject.Clone())
		rhsShape := append(append([]int{}, subject.BatchShape()...), subject.Size(-1), 3)
		rhs := tensor.RandN(Generator(), rhsShape...)
		invQuad, logDet := subject.InvQuadLogDet(rhs, true, settings, Generator())
		res := tensor.Add(invQuad, logDet)
		actual := batchInvQuadLogDetReference(evaluated, rhs.Clone())
		maxError := float64(0)
		for _, err := range RelErrors(res, actual, logDetClampFloor, logDetClampCeil) {
			maxError = math.Max(maxError, err)
		}
		return maxError
	})

	if cfg.ShouldTestSample {
		run("sample", matmulTolerance, func() float64 {
			subject := adapter.CreateLazyTensor().(lazy.SquareLazyTensor)
			evaluated := adapter.EvaluateLazyTensor(subject.Clone())
			samples, err := subject.Samples(10000, Generator())
			if err != nil {
				return math.Inf(1)
			}
			return MaxRelError(secondMoment(samples), evaluated.NoGrad(), clampFloor, clampCeiling)
		})
	}
	return results
}

// gradientError pairs representation leaves after both backward passes and
// returns the worst relative error.
func gradientError(subject, reference lazy.LazyTensor) float64 {
	rep := subject.Representation()
	refRep := reference.Representation()
	maxError := float64(0)
	for i := range rep {
		if refRep[i].Grad() == nil {
			continue
		}
		if rep[i].Grad() == nil {
			return math.Inf(1)
		}
		err := MaxRelError(rep[i].Grad(), refRep[i].Grad(), clampFloor, clampCeiling)
		maxError = math.Max(maxError, err)
	}
	return maxError
}
