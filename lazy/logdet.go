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
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lazymat-io/lazymat/base"
	"github.com/lazymat-io/lazymat/tensor"
)

// lanczosBreakdownTolerance stops the Lanczos recurrence once the residual
// norm collapses, which happens after at most n steps in exact arithmetic.
const lanczosBreakdownTolerance = 1e-10

// invQuadLogDet computes the inverse quadratic form rhs' M^-1 rhs together
// with a stochastic Lanczos quadrature estimate of log det M. The quadratic
// form reuses the bounded conjugate gradient solver; the log-determinant is a
// detached estimate, one Hutchinson probe average per batch slice.
func invQuadLogDet(lt SquareLazyTensor, rhs *tensor.Tensor, reduce bool, settings *Settings, rng base.RandomGenerator) (*tensor.Tensor, *tensor.Tensor) {
	settings = settings.orDefault()
	solution := cgSolve(lt, rhs, settings)
	invQuad := tensor.SumDim(tensor.Mul(rhs, solution), -2)
	if reduce {
		invQuad = tensor.SumDim(invQuad, -1)
	}

	batch := lt.BatchShape()
	count := numBatchElements(batch)
	logDets := make([]float64, count)
	for i := 0; i < count; i++ {
		logDets[i] = stochasticLogDet(batchSlice(lt, i), settings, rng)
	}
	var logDet *tensor.Tensor
	if len(batch) == 0 {
		logDet = tensor.NewScalar(logDets[0])
	} else {
		logDet = tensor.NewTensor(logDets, batch...)
	}
	return invQuad, logDet
}

// stochasticLogDet estimates log det of a 2-D symmetric positive definite
// lazy tensor by stochastic Lanczos quadrature: for every Gaussian probe z,
// the Lanczos tridiagonalization of the matrix against z/|z| yields a
// quadrature rule for z' log(M) z, and averaging over probes gives an
// unbiased trace estimate of log(M).
func stochasticLogDet(lt LazyTensor, settings *Settings, rng base.RandomGenerator) float64 {
	n := lt.Size(-1)
	steps := settings.MaxLanczosIterations
	if steps > n {
		steps = n
	}
	estimate := float64(0)
	for s := 0; s < settings.NumTraceSamples; s++ {
		z := rng.NormalVector(n, 0, 1)
		zNorm := norm(z)
		if zNorm == 0 {
			continue
		}
		alphas, betas := lanczos(lt, z, steps)
		estimate += zNorm * zNorm * quadratureLogSum(alphas, betas)
	}
	return estimate / float64(settings.NumTraceSamples)
}

// lanczos runs the symmetric Lanczos recurrence with full
// reorthogonalization, returning the diagonal and off-diagonal of the
// tridiagonal projection. The starting vector is normalized internally.
func lanczos(lt LazyTensor, start []float64, steps int) (alphas, betas []float64) {
	n := len(start)
	q := make([]float64, n)
	startNorm := norm(start)
	for i := range q {
		q[i] = start[i] / startNorm
	}
	basis := [][]float64{q}
	for k := 0; k < steps; k++ {
		w := matVec(lt, basis[k])
		alpha := dot(basis[k], w)
		alphas = append(alphas, alpha)
		for i := range w {
			w[i] -= alpha * basis[k][i]
			if k > 0 {
				w[i] -= betas[k-1] * basis[k-1][i]
			}
		}
		// full reorthogonalization keeps the basis numerically orthogonal
		for _, prev := range basis {
			overlap := dot(prev, w)
			for i := range w {
				w[i] -= overlap * prev[i]
			}
		}
		beta := norm(w)
		if beta < lanczosBreakdownTolerance || k == steps-1 {
			break
		}
		betas = append(betas, beta)
		next := make([]float64, n)
		for i := range next {
			next[i] = w[i] / beta
		}
		basis = append(basis, next)
	}
	return alphas, betas
}

// quadratureLogSum evaluates sum_i w_i^2 log(lambda_i) for the eigenpairs of
// the tridiagonal matrix described by alphas and betas.
func quadratureLogSum(alphas, betas []float64) float64 {
	k := len(alphas)
	dense := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		dense.SetSym(i, i, alphas[i])
		if i+1 < k {
			dense.SetSym(i, i+1, betas[i])
		}
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(dense, true); !ok {
		panic("lazy: tridiagonal eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)
	sum := float64(0)
	for i := 0; i < k; i++ {
		weight := vectors.At(0, i)
		sum += weight * weight * math.Log(values[i])
	}
	return sum
}

// matVec applies a 2-D lazy tensor to a raw vector outside the autodiff
// graph.
func matVec(lt LazyTensor, v []float64) []float64 {
	in := tensor.NewTensor(append([]float64{}, v...), len(v))
	out := lt.Matmul(in).NoGrad()
	result := make([]float64, len(v))
	copy(result, out.Data())
	return result
}

func dot(a, b []float64) float64 {
	sum := float64(0)
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}
