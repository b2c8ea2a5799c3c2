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
	"go.uber.org/zap"

	"github.com/lazymat-io/lazymat/base/log"
	"github.com/lazymat-io/lazymat/tensor"
)

// cgResidualTolerance freezes a column once its squared residual norm falls
// below it.
const cgResidualTolerance = 1e-20

// cgSolve approximates lt^-1 rhs with conjugate gradients, running at most
// settings.MaxCGIterations iterations. The matrix must be symmetric positive
// definite; non-convergence is not reported, the best iterate so far is
// returned.
//
// The recurrence runs on raw values. Differentiating the truncated iteration
// would give the gradient of the truncated map rather than of the solve, so
// gradients are attached implicitly instead: with x the computed solution,
// d(M^-1 b) = M^-1 (db - dM x). The residual b - M x is routed through the
// graph and pushed through one more solve with the matrix held constant,
// which realizes exactly that differential.
func cgSolve(lt LazyTensor, rhs *tensor.Tensor, settings *Settings) *tensor.Tensor {
	settings = settings.orDefault()
	if rhs.Dims() == len(lt.Shape())-1 {
		// vector right-hand side: solve as a single column
		colShape := append(rhs.Shape(), 1)
		out := cgSolve(lt, tensor.Reshape(rhs, colShape...), settings)
		outShape := out.Shape()
		return tensor.Reshape(out, outShape[:len(outShape)-1]...)
	}
	if batch := lt.BatchShape(); len(batch) > 0 {
		return batchedCGSolve(lt, rhs, settings)
	}

	x := cgIterate(lt, rhs, settings)
	residual := tensor.Sub(rhs, lt.Matmul(x))
	correction := tensor.ApplySelfAdjoint(residual, func(v *tensor.Tensor) *tensor.Tensor {
		return cgIterate(lt, v, settings)
	})
	return tensor.Add(x, correction)
}

// batchedCGSolve flattens the batch prefix and solves every matrix slice
// against its right-hand side slice independently.
func batchedCGSolve(lt LazyTensor, rhs *tensor.Tensor, settings *Settings) *tensor.Tensor {
	batch := lt.BatchShape()
	count := numBatchElements(batch)
	flatRHS := tensor.Reshape(rhs, count, rhs.Size(-2), rhs.Size(-1))
	solutions := make([]*tensor.Tensor, count)
	for i := 0; i < count; i++ {
		solutions[i] = cgSolve(batchSlice(lt, i), tensor.Select(flatRHS, 0, i), settings)
	}
	return tensor.Reshape(tensor.Stack(solutions...), rhs.Shape()...)
}

// cgIterate runs the conjugate gradient recurrence on raw values for one 2-D
// matrix against a [n, k] right-hand side, outside the autodiff graph. All
// columns advance together; a column whose residual reaches the tolerance is
// frozen, so its vanishing search direction cannot poison the remaining
// columns with a zero division.
func cgIterate(lt LazyTensor, rhs *tensor.Tensor, settings *Settings) *tensor.Tensor {
	shape := rhs.Shape()
	n, k := shape[0], shape[1]
	x := make([]float64, n*k)
	r := append([]float64{}, rhs.Data()...)
	p := append([]float64{}, r...)
	rs := make([]float64, k)
	active := make([]bool, k)
	remaining := 0
	for j := 0; j < k; j++ {
		for i := 0; i < n; i++ {
			rs[j] += r[i*k+j] * r[i*k+j]
		}
		if rs[j] >= cgResidualTolerance {
			active[j] = true
			remaining++
		}
	}
	iterations := 0
	for ; iterations < settings.MaxCGIterations && remaining > 0; iterations++ {
		ap := lt.Matmul(tensor.NewTensor(append([]float64{}, p...), n, k)).NoGrad().Data()
		for j := 0; j < k; j++ {
			if !active[j] {
				continue
			}
			pap := float64(0)
			for i := 0; i < n; i++ {
				pap += p[i*k+j] * ap[i*k+j]
			}
			if pap == 0 {
				active[j] = false
				remaining--
				continue
			}
			alpha := rs[j] / pap
			rsNew := float64(0)
			for i := 0; i < n; i++ {
				x[i*k+j] += alpha * p[i*k+j]
				r[i*k+j] -= alpha * ap[i*k+j]
				rsNew += r[i*k+j] * r[i*k+j]
			}
			if rsNew < cgResidualTolerance {
				active[j] = false
				remaining--
				continue
			}
			beta := rsNew / rs[j]
			for i := 0; i < n; i++ {
				p[i*k+j] = r[i*k+j] + beta*p[i*k+j]
			}
			rs[j] = rsNew
		}
	}
	if remaining > 0 {
		log.Logger().Debug("conjugate gradients hit the iteration cap",
			zap.Int("iterations", iterations),
			zap.Float64("residual", maxAbs(rs)))
	}
	return tensor.NewTensor(x, n, k)
}

func maxAbs(values []float64) float64 {
	maximum := float64(0)
	for _, v := range values {
		if v < 0 {
			v = -v
		}
		if v > maximum {
			maximum = v
		}
	}
	return maximum
}
