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

// Package mf learns biased matrix factorizations of explicit ratings.
package mf

import (
	"context"

	"github.com/gorse-io/ratelab/base"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// ErrDiverged is returned when a parameter becomes NaN or infinite.
const ErrDiverged = errors.ConstError("mf: training diverged")

// Factorizer learns a Factorization from a training set.
type Factorizer interface {
	model.Model
	Factorize(ctx context.Context, trainSet *dataset.Dataset) (*Factorization, error)
}

// sgdParams are the hyper-parameters shared by SGD based factorizers.
type sgdParams struct {
	nFactors   int
	nEpochs    int
	lr         float32
	reg        float32
	lrDecay    float32
	initMean   float32
	initStdDev float32
}

func (p *sgdParams) load(params model.Params) {
	p.nFactors = params.GetInt(model.NFactors, 10)
	p.nEpochs = params.GetInt(model.NEpochs, 20)
	p.lr = params.GetFloat32(model.Lr, 0.01)
	p.reg = params.GetFloat32(model.Reg, 0.02)
	p.lrDecay = params.GetFloat32(model.LrDecay, 0)
	p.initMean = params.GetFloat32(model.InitMean, 0)
	p.initStdDev = params.GetFloat32(model.InitStdDev, 0.1)
}

var sgdSchema = model.Schema{
	{Name: model.NFactors, Description: "number of latent factors", Type: model.TypeInt, Min: lo.ToPtr(1.0), Default: 10},
	{Name: model.NEpochs, Description: "number of passes over the training set", Type: model.TypeInt, Min: lo.ToPtr(1.0), Default: 20},
	{Name: model.Lr, Description: "learning rate", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 0.01},
	{Name: model.Reg, Description: "regularization strength", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 0.02},
	{Name: model.LrDecay, Description: "learning rate decay after each epoch", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Max: lo.ToPtr(1.0), Default: 0.0},
	{Name: model.InitMean, Description: "mean of initial factors", Type: model.TypeFloat, Default: 0.0},
	{Name: model.InitStdDev, Description: "standard deviation of initial factors", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 0.1},
	{Name: model.RandomState, Description: "random seed", Type: model.TypeInt, Default: 0},
}

// check rejects hyper-parameters outside the schema of m and empty
// training sets.
func check(m model.Model, trainSet *dataset.Dataset) error {
	if err := m.Schema().Validate(m.GetParams()); err != nil {
		return errors.Trace(err)
	}
	if trainSet.Count() == 0 {
		return errors.NotFoundf("training ratings")
	}
	return nil
}

// newFactorization allocates parameters. Biases start at zero, the global
// bias at the training mean and factors at N(initMean, initStdDev²).
func newFactorization(trainSet *dataset.Dataset, rng base.RandomGenerator, p sgdParams) *Factorization {
	return &Factorization{
		UserIndex:  trainSet.UserIndex(),
		ItemIndex:  trainSet.ItemIndex(),
		UserFactor: rng.NormalMatrix(trainSet.UserCount(), p.nFactors, p.initMean, p.initStdDev),
		ItemFactor: rng.NormalMatrix(trainSet.ItemCount(), p.nFactors, p.initMean, p.initStdDev),
		UserBias:   make([]float32, trainSet.UserCount()),
		ItemBias:   make([]float32, trainSet.ItemCount()),
		GlobalBias: trainSet.GlobalMean(),
	}
}

// update applies one stochastic gradient step on a rating and returns the
// error before the step. buf holds a copy of p_u.
func update(f *Factorization, userIdx, itemIdx int32, rating, lr, reg, biasLr, biasReg float32, buf []float32) float32 {
	userFactor := f.UserFactor[userIdx]
	itemFactor := f.ItemFactor[itemIdx]
	// e_{ui} = r - \hat r
	e := rating - (f.GlobalBias + f.UserBias[userIdx] + f.ItemBias[itemIdx])
	for k := range userFactor {
		e -= userFactor[k] * itemFactor[k]
	}
	// μ <- μ + γ e_{ui}
	f.GlobalBias += biasLr * e
	// b_u <- b_u + γ (e_{ui} - λ b_u)
	f.UserBias[userIdx] += biasLr * (e - biasReg*f.UserBias[userIdx])
	// b_i <- b_i + γ (e_{ui} - λ b_i)
	f.ItemBias[itemIdx] += biasLr * (e - biasReg*f.ItemBias[itemIdx])
	// p_u <- p_u + γ (e_{ui} q_i - λ p_u), q_i <- q_i + γ (e_{ui} p_u - λ q_i)
	copy(buf, userFactor)
	for k := range userFactor {
		userFactor[k] += lr * (e*itemFactor[k] - reg*buf[k])
		itemFactor[k] += lr * (e*buf[k] - reg*itemFactor[k])
	}
	return e
}
