// Copyright 2026 gorse Project Authors
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

package fm

import (
	"context"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gorse-io/ratelab/base/log"
	"github.com/gorse-io/ratelab/base/progress"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const adaGradEpsilon = 1e-8

// adaGrad keeps the sum of squared gradients of every parameter.
type adaGrad struct {
	w0 float32
	w  []float32
	v  [][]float32
}

func newAdaGrad(nFeatures, nFactors int) *adaGrad {
	a := &adaGrad{w: make([]float32, nFeatures), v: make([][]float32, nFeatures)}
	for i := range a.v {
		a.v[i] = make([]float32, nFactors)
	}
	return a
}

// scale accumulates a gradient and returns the multiplier of the learning rate.
func scale(acc *float32, grad float32) float32 {
	*acc += grad * grad
	return 1 / (math32.Sqrt(*acc) + adaGradEpsilon)
}

// learnSGD runs element-wise stochastic gradient descent over cases in a
// random order. If adaptive is set every parameter has its own AdaGrad rate.
func (fm *FactorizationMachine) learnSGD(ctx context.Context, data *designMatrix, adaptive bool) error {
	rng := fm.GetRandomGenerator()
	sum := make([]float32, fm.nFactors)
	var acc *adaGrad
	if adaptive {
		acc = newAdaGrad(data.nFeatures, fm.nFactors)
	}
	_, span := progress.Start(ctx, "FactorizationMachine.SGD", fm.nEpochs)
	for epoch := 1; epoch <= fm.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return errors.Trace(err)
		}
		cost := float32(0)
		for _, i := range rng.Perm(data.Count()) {
			indices, values := data.Row(i)
			p := fm.clip(predict(fm.W0, fm.W, fm.V, indices, values, sum))
			mult := p - data.targets[i]
			cost += mult * mult
			if fm.useBias {
				grad := mult + fm.reg0*fm.W0
				lr := fm.lr
				if adaptive {
					lr *= scale(&acc.w0, grad)
				}
				fm.W0 -= lr * grad
			}
			if fm.useWeights {
				for j, index := range indices {
					grad := mult*values[j] + fm.reg1*fm.W[index]
					lr := fm.lr
					if adaptive {
						lr *= scale(&acc.w[index], grad)
					}
					fm.W[index] -= lr * grad
				}
			}
			for f := 0; f < fm.nFactors; f++ {
				for j, index := range indices {
					x := values[j]
					v := fm.V[index][f]
					grad := mult*(x*sum[f]-v*x*x) + fm.reg2*v
					lr := fm.lr
					if adaptive {
						lr *= scale(&acc.v[index][f], grad)
					}
					fm.V[index][f] -= lr * grad
				}
			}
		}
		if !fm.isFinite() {
			log.Logger().Error("fm diverged", zap.String("method", fm.method), zap.Int("epoch", epoch))
			span.Fail(ErrDiverged)
			return ErrDiverged
		}
		log.Logger().Debug(fmt.Sprintf("fit fm %v/%v", epoch, fm.nEpochs),
			zap.String("method", fm.method),
			zap.Float32("rmse", math32.Sqrt(cost/float32(data.Count()))))
		span.Add(1)
	}
	span.End()
	return nil
}
