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

	"github.com/stretchr/testify/suite"

	"github.com/lazymat-io/lazymat/lazy"
	"github.com/lazymat-io/lazymat/tensor"
)

// rootAdapter exercises the batteries with a genuinely structured subject:
// a low-rank factorization R R' plus a diagonal shift.
type rootAdapter struct {
	batch []int
	n     int
	rank  int
	shift float64
}

func (a rootAdapter) CreateLazyTensor() lazy.LazyTensor {
	rootShape := append(append([]int{}, a.batch...), a.n, a.rank)
	count := 1
	for _, s := range rootShape {
		count *= s
	}
	root := tensor.NewTensor(Generator().NormalVector(count, 0, 0.5), rootShape...)
	shiftShape := append(append([]int{}, a.batch...), a.n)
	return lazy.NewRoot(root).AddDiag(tensor.Full(a.shift, shiftShape...))
}

func (a rootAdapter) EvaluateLazyTensor(lt lazy.LazyTensor) *tensor.Tensor {
	rep := lt.Representation()
	root, shift := rep[0], rep[1]
	return tensor.Add(tensor.MatMulT(root, root, false, true), tensor.DiagEmbed(shift))
}

func TestRootSquare(t *testing.T) {
	s := new(Suite)
	s.Adapter = rootAdapter{n: 5, rank: 2, shift: 1}
	s.Config = NewConfig(4)
	s.Config.ShouldTestSample = true
	suite.Run(t, s)
}

func TestRootBatchSquare(t *testing.T) {
	s := new(BatchSuite)
	s.Adapter = rootAdapter{batch: []int{4}, n: 6, rank: 3, shift: 1}
	s.Config = NewConfig(5)
	s.Config.ShouldTestSample = true
	suite.Run(t, s)
}
