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

// Settings bounds the iterative solvers. It is threaded explicitly through
// every solve call instead of living in process-global state, so concurrent
// callers cannot race on solver configuration.
type Settings struct {
	// MaxCGIterations caps the conjugate gradient iterations of InvMatmul
	// and the solves inside InvQuadLogDet.
	MaxCGIterations int
	// NumTraceSamples is the number of probe vectors of the stochastic
	// log-determinant estimator.
	NumTraceSamples int
	// MaxLanczosIterations caps the Lanczos steps per probe vector.
	MaxLanczosIterations int
}

// NewSettings returns the default solver configuration.
func NewSettings() *Settings {
	return &Settings{
		MaxCGIterations:      1000,
		NumTraceSamples:      10,
		MaxLanczosIterations: 100,
	}
}

func (s *Settings) orDefault() *Settings {
	if s == nil {
		return NewSettings()
	}
	out := *s
	if out.MaxCGIterations <= 0 {
		out.MaxCGIterations = 1000
	}
	if out.NumTraceSamples <= 0 {
		out.NumTraceSamples = 10
	}
	if out.MaxLanczosIterations <= 0 {
		out.MaxLanczosIterations = 100
	}
	return &out
}
