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
	"time"

	"github.com/chewxy/math32"
	"github.com/gorse-io/ratelab/base/log"
	"github.com/gorse-io/ratelab/base/progress"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// SGD learns a biased factorization by stochastic gradient descent, as
// popularized by Simon Funk during the Netflix Prize. Ratings are visited in
// a seeded random order every epoch and the learning rate decays by LrDecay
// after each epoch. Hyper-parameters:
//
//	NFactors   - number of latent factors. Default is 10.
//	NEpochs    - number of epochs. Default is 20.
//	Lr         - learning rate. Default is 0.01.
//	Reg        - regularization strength. Default is 0.02.
//	LrDecay    - learning rate decay. Default is 0.
//	InitMean   - mean of initial factors. Default is 0.
//	InitStdDev - standard deviation of initial factors. Default is 0.1.
type SGD struct {
	model.BaseModel
	sgdParams
}

func NewSGD(params model.Params) *SGD {
	sgd := new(SGD)
	sgd.SetParams(params)
	return sgd
}

func (sgd *SGD) SetParams(params model.Params) {
	sgd.BaseModel.SetParams(params)
	sgd.sgdParams.load(sgd.Params)
}

func (sgd *SGD) Schema() model.Schema {
	return sgdSchema
}

func (sgd *SGD) Factorize(ctx context.Context, trainSet *dataset.Dataset) (*Factorization, error) {
	if err := check(sgd, trainSet); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("fit sgd",
		zap.Int("n_ratings", trainSet.Count()),
		zap.Int("n_users", trainSet.UserCount()),
		zap.Int("n_items", trainSet.ItemCount()),
		zap.String("params", sgd.GetParams().ToString()))
	rng := sgd.ResetRandomGenerator()
	f := newFactorization(trainSet, rng, sgd.sgdParams)
	buf := make([]float32, sgd.nFactors)
	lr := sgd.lr
	_, span := progress.Start(ctx, "SGD.Factorize", sgd.nEpochs)
	for epoch := 1; epoch <= sgd.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		fitStart := time.Now()
		cost := float32(0)
		for _, i := range rng.Perm(trainSet.Count()) {
			userIdx, itemIdx, rating := trainSet.Get(i)
			e := update(f, userIdx, itemIdx, rating, lr, sgd.reg, lr, sgd.reg, buf)
			cost += e * e
		}
		if !f.isFinite() {
			log.Logger().Error("sgd diverged", zap.Int("epoch", epoch), zap.Float32("lr", lr))
			span.Fail(ErrDiverged)
			return nil, ErrDiverged
		}
		lr *= 1 - sgd.lrDecay
		log.Logger().Debug(fmt.Sprintf("fit sgd %v/%v", epoch, sgd.nEpochs),
			zap.String("fit_time", time.Since(fitStart).String()),
			zap.Float32("rmse", math32.Sqrt(cost/float32(trainSet.Count()))))
		span.Add(1)
	}
	span.End()
	log.Logger().Info("fit sgd complete", zap.Int("n_epochs", sgd.nEpochs))
	return f, nil
}
