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
	"time"

	"github.com/lazymat-io/lazymat/base"
)

// generator is the harness-wide source of randomness. Suites are meant to
// run sequentially; the scope below swaps the generator in and out around
// each check.
var generator = base.NewRandomGenerator(time.Now().UnixNano())

// Generator returns the random generator currently in scope. Adapters draw
// their random leaves from it, and the suites draw their probe operands from
// it, so a seeded check is deterministic end to end.
func Generator() base.RandomGenerator {
	return generator
}

// seedScope reseeds the harness generator for one check and restores the
// previous generator afterwards, leaving surrounding code unaffected.
type seedScope struct {
	saved *base.RandomGenerator
}

func (s *seedScope) setUp(cfg Config) {
	if !cfg.SeedSet || cfg.UnlockSeed {
		return
	}
	previous := generator
	s.saved = &previous
	generator = base.NewRandomGenerator(cfg.Seed)
}

func (s *seedScope) tearDown() {
	if s.saved != nil {
		generator = *s.saved
		s.saved = nil
	}
}
