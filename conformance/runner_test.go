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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lazymat-io/lazymat/lazy"
)

func TestRunChecksSquare(t *testing.T) {
	cfg := NewConfig(11)
	cfg.ShouldTestSample = true
	settings := lazy.NewSettings()
	settings.MaxCGIterations = 200
	settings.NumTraceSamples = 128
	var names []string
	results := RunChecks(denseAdapter{shape: []int{5, 5}, spd: true}, cfg, settings, func(name string) {
		names = append(names, name)
	})
	assert.Len(t, results, 8)
	assert.Equal(t, len(results), len(names))
	assert.Equal(t, "sample", names[len(names)-1])
	for _, result := range results {
		assert.True(t, result.Passed(), result.Name)
	}
}

func TestRunChecksRectangular(t *testing.T) {
	results := RunChecks(denseAdapter{shape: []int{4, 6}}, NewConfig(12), nil, nil)
	// solver checks need a square subject
	assert.Len(t, results, 3)
	for _, result := range results {
		assert.True(t, result.Passed(), result.Name)
	}
}
