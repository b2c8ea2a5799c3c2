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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lazymat-io/lazymat/tensor"
)

func TestMaxRelError(t *testing.T) {
	res := tensor.NewTensor([]float64{1.1, 2.0, 0.2}, 3)
	actual := tensor.NewTensor([]float64{1.0, 2.0, 0.0}, 3)
	// the entry near zero is clamped to an absolute comparison
	assert.InDelta(t, 0.2, MaxRelError(res, actual, 1, 1e5), 1e-12)

	// large entries divide by their own magnitude
	res = tensor.NewTensor([]float64{110}, 1)
	actual = tensor.NewTensor([]float64{100}, 1)
	assert.InDelta(t, 0.1, MaxRelError(res, actual, 1, 1e5), 1e-12)

	// the ceiling keeps huge denominators from hiding errors
	res = tensor.NewTensor([]float64{2e10}, 1)
	actual = tensor.NewTensor([]float64{1e10}, 1)
	assert.InDelta(t, 1e10/1e5, MaxRelError(res, actual, 1, 1e5), 1)

	assert.Panics(t, func() {
		MaxRelError(tensor.Zeros(2), tensor.Zeros(3), 1, 1e5)
	})
}

func TestRelErrors(t *testing.T) {
	res := tensor.NewTensor([]float64{1.0, 4.0}, 2)
	actual := tensor.NewTensor([]float64{2.0, 2.0}, 2)
	errs := RelErrors(res, actual, 1, 1e5)
	assert.Len(t, errs, 2)
	assert.InDelta(t, 0.5, errs[0], 1e-12)
	assert.InDelta(t, 1.0, errs[1], 1e-12)
}

func TestDenseLogDet(t *testing.T) {
	x := tensor.DiagEmbed(tensor.NewTensor([]float64{1, 2, 4}, 3))
	res := denseLogDet(x)
	assert.InDelta(t, math.Log(8), res.Item(), 1e-10)

	// batched
	x = tensor.DiagEmbed(tensor.NewTensor([]float64{1, 2, 4, 8}, 2, 2))
	res = denseLogDet(x)
	assert.Equal(t, []int{2}, res.Shape())
	assert.InDelta(t, math.Log(2), res.Data()[0], 1e-10)
	assert.InDelta(t, math.Log(32), res.Data()[1], 1e-10)
}

func TestSecondMoment(t *testing.T) {
	samples := tensor.NewTensor([]float64{
		1, 0,
		-1, 0,
		0, 2,
		0, -2,
	}, 4, 2)
	moment := secondMoment(samples)
	assert.Equal(t, []int{2, 2}, moment.Shape())
	assert.InDelta(t, 0.5, moment.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, moment.At(0, 1), 1e-12)
	assert.InDelta(t, 2.0, moment.At(1, 1), 1e-12)
}
