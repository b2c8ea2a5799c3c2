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
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lazymat-io/lazymat/tensor"
)

// Loose tolerances absorb iterative solver error and Monte Carlo noise. The
// relative error denominator is clamped so entries near zero are judged
// absolutely and huge entries do not mask real defects.
const (
	matmulTolerance        = 3e-1
	getitemTolerance       = 1e-1
	invQuadLogDetTolerance = 15e-2

	clampFloor       = 1.0
	clampCeiling     = 1e5
	logDetClampFloor = 1.0
	logDetClampCeil  = 1e10
)

// MaxRelError returns the largest elementwise relative error between res and
// actual, with the denominator |actual| clamped into [floor, ceiling].
func MaxRelError(res, actual *tensor.Tensor, floor, ceiling float64) float64 {
	if res.NumElements() != actual.NumElements() {
		panic(fmt.Sprintf("conformance: comparing %v against %v", res.Shape(), actual.Shape()))
	}
	maximum := float64(0)
	for i, a := range actual.Data() {
		err := relError(res.Data()[i], a, floor, ceiling)
		if err > maximum {
			maximum = err
		}
	}
	return maximum
}

// RelErrors returns the elementwise relative errors between res and actual,
// for checks that bound every batch element separately.
func RelErrors(res, actual *tensor.Tensor, floor, ceiling float64) []float64 {
	if res.NumElements() != actual.NumElements() {
		panic(fmt.Sprintf("conformance: comparing %v against %v", res.Shape(), actual.Shape()))
	}
	errs := make([]float64, actual.NumElements())
	for i, a := range actual.Data() {
		errs[i] = relError(res.Data()[i], a, floor, ceiling)
	}
	return errs
}

func relError(res, actual, floor, ceiling float64) float64 {
	denominator := math.Abs(actual)
	if denominator < floor {
		denominator = floor
	}
	if denominator > ceiling {
		denominator = ceiling
	}
	return math.Abs(res-actual) / denominator
}

// denseLogDet computes the exact log-determinant of every matrix slice of a
// positive definite tensor through a Cholesky factorization. The result is
// shaped like the batch prefix, or a scalar for a plain matrix.
func denseLogDet(x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	d := shape[len(shape)-1]
	batch := shape[:len(shape)-2]
	count := 1
	for _, s := range batch {
		count *= s
	}
	values := make([]float64, count)
	for b := 0; b < count; b++ {
		slice := mat.NewSymDense(d, nil)
		for i := 0; i < d; i++ {
			for j := i; j < d; j++ {
				slice.SetSym(i, j, x.Data()[b*d*d+i*d+j])
			}
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(slice); !ok {
			panic(fmt.Sprintf("conformance: reference matrix slice %d is not positive definite", b))
		}
		values[b] = chol.LogDet()
	}
	if len(batch) == 0 {
		return tensor.NewScalar(values[0])
	}
	return tensor.NewTensor(values, batch...)
}

// secondMoment estimates E[x x'] from samples shaped [n, batch..., d],
// returning [batch..., d, d]. For zero-mean draws this is the sample
// covariance.
func secondMoment(samples *tensor.Tensor) *tensor.Tensor {
	shape := samples.Shape()
	n := shape[0]
	d := shape[len(shape)-1]
	batch := shape[1 : len(shape)-1]
	count := 1
	for _, s := range batch {
		count *= s
	}
	outShape := append(append([]int{}, batch...), d, d)
	out := tensor.Zeros(outShape...)
	for i := 0; i < n; i++ {
		for b := 0; b < count; b++ {
			row := samples.Data()[(i*count+b)*d : (i*count+b+1)*d]
			for p := 0; p < d; p++ {
				for q := 0; q < d; q++ {
					out.Data()[b*d*d+p*d+q] += row[p] * row[q] / float64(n)
				}
			}
		}
	}
	return out
}
