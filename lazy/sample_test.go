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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lazymat-io/lazymat/tensor"
)

func sampleCovariance(samples *tensor.Tensor) *tensor.Tensor {
	n := samples.Size(0)
	d := samples.Size(-1)
	out := tensor.Zeros(d, d)
	for i := 0; i < n; i++ {
		row := samples.Data()[i*d : (i+1)*d]
		for p := 0; p < d; p++ {
			for q := 0; q < d; q++ {
				out.Data()[p*d+q] += row[p] * row[q] / float64(n)
			}
		}
	}
	return out
}

func TestCholeskySamplesShape(t *testing.T) {
	slices := []*tensor.Tensor{spdTensor(3), spdTensor(3)}
	lt := NewDense(tensor.Stack(slices...).NoGrad())

	samples, err := lt.Samples(4, testRNG)
	assert.NoError(t, err)
	assert.Equal(t, []int{4, 2, 3}, samples.Shape())
}

func TestCholeskySamplesCovariance(t *testing.T) {
	lt := NewDense(diagonalMatrix(1, 2, 3))

	samples, err := lt.Samples(20000, testRNG)
	assert.NoError(t, err)
	covariance := sampleCovariance(samples)
	want := []float64{1, 0, 0, 0, 2, 0, 0, 0, 3}
	for i, w := range want {
		assert.InDelta(t, w, covariance.Data()[i], 0.1)
	}
}

func TestCholeskySamplesNotPositiveDefinite(t *testing.T) {
	lt := NewDense(diagonalMatrix(1, -1))

	_, err := lt.Samples(10, testRNG)
	assert.ErrorContains(t, err, "not positive definite")
}

func TestRootSamples(t *testing.T) {
	root := tensor.RandN(testRNG, 3, 2)
	lt := NewRoot(root)

	samples, err := lt.Samples(20000, testRNG)
	assert.NoError(t, err)
	assert.Equal(t, []int{20000, 3}, samples.Shape())

	covariance := sampleCovariance(samples)
	want := lt.Evaluate()
	for i := range want.Data() {
		assert.InDelta(t, want.Data()[i], covariance.Data()[i], 0.15)
	}
}
