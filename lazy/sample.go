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
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/lazymat-io/lazymat/base"
	"github.com/lazymat-io/lazymat/tensor"
)

// choleskySamples draws zero-mean multivariate normal samples by
// Cholesky-factoring the materialized matrix of every batch slice. The
// result is detached and shaped [n, batch..., d].
func choleskySamples(lt SquareLazyTensor, n int, rng base.RandomGenerator) (*tensor.Tensor, error) {
	evaluated := lt.Evaluate().Clone()
	batch := lt.BatchShape()
	count := numBatchElements(batch)
	d := lt.Size(-1)

	factors := make([]*mat.TriDense, count)
	for b := 0; b < count; b++ {
		slice := mat.NewSymDense(d, nil)
		for i := 0; i < d; i++ {
			for j := i; j < d; j++ {
				slice.SetSym(i, j, evaluated.Data()[b*d*d+i*d+j])
			}
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(slice); !ok {
			return nil, errors.Errorf("matrix slice %d is not positive definite", b)
		}
		factors[b] = &mat.TriDense{}
		chol.LTo(factors[b])
	}

	outShape := append([]int{n}, batch...)
	outShape = append(outShape, d)
	out := tensor.Zeros(outShape...)
	for i := 0; i < n; i++ {
		for b := 0; b < count; b++ {
			eps := mat.NewVecDense(d, rng.NormalVector(d, 0, 1))
			var sample mat.VecDense
			sample.MulVec(factors[b], eps)
			offset := (i*count + b) * d
			for j := 0; j < d; j++ {
				out.Data()[offset+j] = sample.AtVec(j)
			}
		}
	}
	return out, nil
}
