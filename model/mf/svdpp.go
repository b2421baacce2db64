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
	"github.com/gorse-io/ratelab/common/floats"
	"github.com/gorse-io/ratelab/common/sparse"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// SVDpp extends SVD with implicit feedback: every item j a user rated
// contributes an implicit factor y_j to the user representation
//
//	\hat{r}_{ui} = μ + b_u + b_i + q_i^T(p_u + |N(u)|^{-1/2} Σ_{j∈N(u)} y_j)
//
// The implicit sum is rebuilt for every prediction and every gradient step,
// trading speed for memory.
type SVDpp struct {
	model.BaseModel
	sgdParams
}

func NewSVDpp(params model.Params) *SVDpp {
	svd := new(SVDpp)
	svd.SetParams(params)
	return svd
}

func (svd *SVDpp) SetParams(params model.Params) {
	svd.BaseModel.SetParams(params)
	svd.sgdParams.load(svd.Params)
}

func (svd *SVDpp) Schema() model.Schema {
	return sgdSchema
}

func (svd *SVDpp) Factorize(ctx context.Context, trainSet *dataset.Dataset) (*Factorization, error) {
	if err := check(svd, trainSet); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("fit svd++",
		zap.Int("n_ratings", trainSet.Count()),
		zap.Int("n_users", trainSet.UserCount()),
		zap.Int("n_items", trainSet.ItemCount()),
		zap.String("params", svd.GetParams().ToString()))
	rng := svd.ResetRandomGenerator()
	f := newFactorization(trainSet, rng, svd.sgdParams)
	f.ImplicitFactor = rng.NormalMatrix(trainSet.ItemCount(), svd.nFactors, svd.initMean, svd.initStdDev)
	f.history = make([]sparse.IdSet, trainSet.UserCount())
	for userIdx := range f.history {
		f.history[userIdx] = trainSet.UserItems(int32(userIdx))
	}
	// Create buffers
	implicit := make([]float32, svd.nFactors)
	userVector := make([]float32, svd.nFactors)
	itemFactor := make([]float32, svd.nFactors)
	step := make([]float32, svd.nFactors)
	lr := svd.lr
	_, span := progress.Start(ctx, "SVDpp.Factorize", svd.nEpochs)
	for epoch := 1; epoch <= svd.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		fitStart := time.Now()
		cost := float32(0)
		for _, i := range rng.Perm(trainSet.Count()) {
			userIdx, itemIdx, rating := trainSet.Get(i)
			// p_u + |N(u)|^{-1/2} Σ y_j
			norm := f.implicitSum(userIdx, implicit)
			floats.AddTo(implicit, f.UserFactor[userIdx], userVector)
			// e_{ui} = r - \hat r
			e := rating - (f.GlobalBias + f.UserBias[userIdx] + f.ItemBias[itemIdx] + floats.Dot(userVector, f.ItemFactor[itemIdx]))
			cost += e * e
			// Update biases
			f.GlobalBias += lr * e
			f.UserBias[userIdx] += lr * (e - svd.reg*f.UserBias[userIdx])
			f.ItemBias[itemIdx] += lr * (e - svd.reg*f.ItemBias[itemIdx])
			// Update factors
			shrink := 1 - lr*svd.reg
			copy(itemFactor, f.ItemFactor[itemIdx])
			// q_i <- q_i + γ (e_{ui} (p_u + |N(u)|^{-1/2} Σ y_j) - λ q_i)
			floats.MulConst(f.ItemFactor[itemIdx], shrink)
			floats.MulConstAdd(userVector, lr*e, f.ItemFactor[itemIdx])
			// p_u <- p_u + γ (e_{ui} q_i - λ p_u)
			floats.MulConst(f.UserFactor[userIdx], shrink)
			floats.MulConstAdd(itemFactor, lr*e, f.UserFactor[userIdx])
			// y_j <- y_j + γ (e_{ui} |N(u)|^{-1/2} q_i - λ y_j)
			floats.MulConstTo(itemFactor, lr*e*norm, step)
			for it := f.history[userIdx].Iterator(); it.HasNext(); {
				implicitFactor := f.ImplicitFactor[it.Next()]
				floats.MulConst(implicitFactor, shrink)
				floats.Add(implicitFactor, step)
			}
		}
		if !f.isFinite() {
			log.Logger().Error("svd++ diverged", zap.Int("epoch", epoch), zap.Float32("lr", lr))
			span.Fail(ErrDiverged)
			return nil, ErrDiverged
		}
		lr *= 1 - svd.lrDecay
		log.Logger().Debug(fmt.Sprintf("fit svd++ %v/%v", epoch, svd.nEpochs),
			zap.String("fit_time", time.Since(fitStart).String()),
			zap.Float32("rmse", math32.Sqrt(cost/float32(trainSet.Count()))))
		span.Add(1)
	}
	span.End()
	log.Logger().Info("fit svd++ complete", zap.Int("n_epochs", svd.nEpochs))
	return f, nil
}
