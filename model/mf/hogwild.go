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

package mf

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorse-io/ratelab/base/log"
	"github.com/gorse-io/ratelab/base/progress"
	"github.com/gorse-io/ratelab/common/parallel"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ParallelSGD runs the SGD kernel of SGD with NumThreads workers in the
// Hogwild! style. Every epoch permutation is split into contiguous partitions
// and each worker updates the shared tables without locking. Lost updates on
// single entries are accepted, so runs with more than one worker are not
// reproducible. With NumThreads = 1 and neutral BiasLrRatio, BiasRegRatio,
// StepOffset and ForgettingExponent it produces the same Factorization as SGD.
//
// The rate of the t-th update of a worker is Lr / (StepOffset + t)^ForgettingExponent,
// with biases using that rate times BiasLrRatio and Reg times BiasRegRatio.
type ParallelSGD struct {
	model.BaseModel
	sgdParams
	numThreads         int
	biasLrRatio        float32
	biasRegRatio       float32
	stepOffset         float32
	forgettingExponent float32
}

func NewParallelSGD(params model.Params) *ParallelSGD {
	sgd := new(ParallelSGD)
	sgd.SetParams(params)
	return sgd
}

func (sgd *ParallelSGD) SetParams(params model.Params) {
	sgd.BaseModel.SetParams(params)
	sgd.sgdParams.load(sgd.Params)
	sgd.numThreads = sgd.Params.GetInt(model.NumThreads, runtime.NumCPU())
	sgd.biasLrRatio = sgd.Params.GetFloat32(model.BiasLrRatio, 1)
	sgd.biasRegRatio = sgd.Params.GetFloat32(model.BiasRegRatio, 1)
	sgd.stepOffset = sgd.Params.GetFloat32(model.StepOffset, 0)
	sgd.forgettingExponent = sgd.Params.GetFloat32(model.ForgettingExponent, 0)
}

func (sgd *ParallelSGD) Schema() model.Schema {
	return append(sgdSchema[:len(sgdSchema):len(sgdSchema)],
		model.ParamSpec{Name: model.NumThreads, Description: "number of workers, defaults to the number of CPUs", Type: model.TypeInt, Min: lo.ToPtr(1.0), Optional: true},
		model.ParamSpec{Name: model.BiasLrRatio, Description: "learning rate multiplier of biases", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 1.0},
		model.ParamSpec{Name: model.BiasRegRatio, Description: "regularization multiplier of biases", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 1.0},
		model.ParamSpec{Name: model.StepOffset, Description: "offset of the per-worker step counter", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 0.0},
		model.ParamSpec{Name: model.ForgettingExponent, Description: "exponent of the per-worker step counter", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 0.0},
	)
}

func (sgd *ParallelSGD) Factorize(ctx context.Context, trainSet *dataset.Dataset) (*Factorization, error) {
	if err := check(sgd, trainSet); err != nil {
		return nil, errors.Trace(err)
	}
	numThreads := max(sgd.numThreads, 1)
	log.Logger().Info("fit parallel sgd",
		zap.Int("n_ratings", trainSet.Count()),
		zap.Int("n_users", trainSet.UserCount()),
		zap.Int("n_items", trainSet.ItemCount()),
		zap.Int("n_threads", numThreads),
		zap.String("params", sgd.GetParams().ToString()))
	rng := sgd.ResetRandomGenerator()
	f := newFactorization(trainSet, rng, sgd.sgdParams)
	// step counters and buffers live as long as workers
	steps := make([]int, numThreads)
	buffers := make([][]float32, numThreads)
	for i := range buffers {
		buffers[i] = make([]float32, sgd.nFactors)
	}
	lr := sgd.lr
	_, span := progress.Start(ctx, "ParallelSGD.Factorize", sgd.nEpochs)
	for epoch := 1; epoch <= sgd.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		fitStart := time.Now()
		chunks := parallel.Split(rng.Perm(trainSet.Count()), numThreads)
		costs := make([]float32, len(chunks))
		var group errgroup.Group
		for workerId, chunk := range chunks {
			epochLr := lr
			group.Go(func() error {
				buf := buffers[workerId]
				for _, i := range chunk {
					steps[workerId]++
					stepLr := epochLr / math32.Pow(sgd.stepOffset+float32(steps[workerId]), sgd.forgettingExponent)
					userIdx, itemIdx, rating := trainSet.Get(i)
					e := update(f, userIdx, itemIdx, rating, stepLr, sgd.reg, stepLr*sgd.biasLrRatio, sgd.reg*sgd.biasRegRatio, buf)
					costs[workerId] += e * e
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		if !f.isFinite() {
			log.Logger().Error("parallel sgd diverged", zap.Int("epoch", epoch), zap.Float32("lr", lr))
			span.Fail(ErrDiverged)
			return nil, ErrDiverged
		}
		lr *= 1 - sgd.lrDecay
		cost := lo.Sum(costs)
		log.Logger().Debug(fmt.Sprintf("fit parallel sgd %v/%v", epoch, sgd.nEpochs),
			zap.String("fit_time", time.Since(fitStart).String()),
			zap.Float32("rmse", math32.Sqrt(cost/float32(trainSet.Count()))))
		span.Add(1)
	}
	span.End()
	log.Logger().Info("fit parallel sgd complete", zap.Int("n_epochs", sgd.nEpochs))
	return f, nil
}
