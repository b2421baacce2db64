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

// Package fm implements factorization machines for rating prediction.
package fm

import (
	"context"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorse-io/ratelab/base/log"
	"github.com/gorse-io/ratelab/common/floats"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	ErrDiverged   = errors.ConstError("fm: training diverged")
	ErrNotLearned = errors.ConstError("fm: model not learned")
)

// Learning methods.
const (
	SGD  = "sgd"
	SGDA = "sgda"
	MCMC = "mcmc"
	ALS  = "als"
)

// FactorizationMachine is the factorization machine of Rendle. The prediction
// is given by
//
//	\hat y(x) = w_0 + \sum_j w_j x_j + 1/2 \sum_f [(\sum_j v_{j,f} x_j)^2 - \sum_j v_{j,f}^2 x_j^2]
//
// where x is the one-hot user ‖ one-hot item ‖ optional context vector.
// Hyper-parameters:
//
//	UseBias    - learn w_0. Default is true.
//	UseWeights - learn w. Default is true.
//	NFactors   - dimension of v. Default is 8.
//	Reg0       - regularization of w_0. Default is 0.
//	Reg1       - regularization of w. Default is 0.
//	Reg2       - regularization of v. Default is 0.
//	Lr         - learning rate of sgd and sgda. Default is 0.01.
//	NEpochs    - number of epochs. Default is 100.
//	InitStdDev - standard deviation of initial factors. Default is 0.1.
//	Method     - one of sgd, sgda, mcmc and als. Default is mcmc.
//	UseContext - append context features. Default is false.
//	NumSamples - number of posterior samples averaged by mcmc. Default is 20.
type FactorizationMachine struct {
	model.BaseModel
	// Model parameters
	W0 float32     // w_0
	W  []float32   // w_j
	V  [][]float32 // v_j
	// Hyper parameters
	useBias    bool
	useWeights bool
	nFactors   int
	reg0       float32
	reg1       float32
	reg2       float32
	lr         float32
	nEpochs    int
	initStdDev float32
	method     string
	useContext bool
	numSamples int
	// Learned state
	source    ContextSource
	encoder   *encoder
	samples   []sample
	minTarget float32
	maxTarget float32
}

// sample is a posterior draw retained by mcmc.
type sample struct {
	w0 float32
	w  []float32
	v  [][]float32
}

var schema = model.Schema{
	{Name: model.UseBias, Description: "learn the global bias", Type: model.TypeBool, Default: true},
	{Name: model.UseWeights, Description: "learn first-order weights", Type: model.TypeBool, Default: true},
	{Name: model.NFactors, Description: "dimension of pairwise interaction factors", Type: model.TypeInt, Min: lo.ToPtr(0.0), Default: 8},
	{Name: model.Reg0, Description: "regularization of the global bias", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 0.0},
	{Name: model.Reg1, Description: "regularization of first-order weights", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 0.0},
	{Name: model.Reg2, Description: "regularization of interaction factors", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 0.0},
	{Name: model.Lr, Description: "learning rate of sgd and sgda", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 0.01},
	{Name: model.NEpochs, Description: "number of epochs", Type: model.TypeInt, Min: lo.ToPtr(1.0), Default: 100},
	{Name: model.InitStdDev, Description: "standard deviation of initial factors", Type: model.TypeFloat, Min: lo.ToPtr(0.0), Default: 0.1},
	{Name: model.Method, Description: "learning method", Type: model.TypeEnum, Enum: []string{SGD, SGDA, MCMC, ALS}, Default: MCMC},
	{Name: model.UseContext, Description: "append context features of the injected source", Type: model.TypeBool, Default: false},
	{Name: model.NumSamples, Description: "number of posterior samples averaged by mcmc", Type: model.TypeInt, Min: lo.ToPtr(1.0), Default: 20},
	{Name: model.RandomState, Description: "random seed", Type: model.TypeInt, Default: 0},
}

// New creates a factorization machine. source is required when UseContext
// is set and must have a positive dimension.
func New(params model.Params, source ContextSource) (*FactorizationMachine, error) {
	fm := &FactorizationMachine{source: source}
	fm.SetParams(params)
	if err := schema.Validate(fm.Params); err != nil {
		return nil, errors.Trace(err)
	}
	if fm.useContext {
		if source == nil {
			return nil, errors.NotValidf("use_context without a context source")
		}
		if source.Dimension() <= 0 {
			return nil, errors.NotValidf("context source dimension %d", source.Dimension())
		}
	}
	return fm, nil
}

func (fm *FactorizationMachine) SetParams(params model.Params) {
	fm.BaseModel.SetParams(params)
	fm.useBias = fm.Params.GetBool(model.UseBias, true)
	fm.useWeights = fm.Params.GetBool(model.UseWeights, true)
	fm.nFactors = fm.Params.GetInt(model.NFactors, 8)
	fm.reg0 = fm.Params.GetFloat32(model.Reg0, 0)
	fm.reg1 = fm.Params.GetFloat32(model.Reg1, 0)
	fm.reg2 = fm.Params.GetFloat32(model.Reg2, 0)
	fm.lr = fm.Params.GetFloat32(model.Lr, 0.01)
	fm.nEpochs = fm.Params.GetInt(model.NEpochs, 100)
	fm.initStdDev = fm.Params.GetFloat32(model.InitStdDev, 0.1)
	fm.method = fm.Params.GetString(model.Method, MCMC)
	fm.useContext = fm.Params.GetBool(model.UseContext, false)
	fm.numSamples = fm.Params.GetInt(model.NumSamples, 20)
}

func (fm *FactorizationMachine) Schema() model.Schema {
	return schema
}

// Clear drops learned parameters.
func (fm *FactorizationMachine) Clear() {
	fm.W0 = 0
	fm.W = nil
	fm.V = nil
	fm.encoder = nil
	fm.samples = nil
}

// Learned reports whether Learn has completed.
func (fm *FactorizationMachine) Learned() bool {
	return fm.encoder != nil
}

// Known reports whether both ids were seen during learning.
func (fm *FactorizationMachine) Known(userId, itemId int32) bool {
	return fm.Learned() &&
		fm.encoder.userIndex.ToNumber(userId) != dataset.NotId &&
		fm.encoder.itemIndex.ToNumber(itemId) != dataset.NotId
}

// Learn fits the model on a training set with the configured method.
func (fm *FactorizationMachine) Learn(ctx context.Context, trainSet *dataset.Dataset) error {
	if trainSet.Count() == 0 {
		return errors.NotFoundf("training ratings")
	}
	fm.Clear()
	enc := &encoder{userIndex: trainSet.UserIndex(), itemIndex: trainSet.ItemIndex()}
	if fm.useContext {
		enc.context = fm.source
	}
	data := enc.encodeDataset(trainSet)
	log.Logger().Info("fit fm",
		zap.String("method", fm.method),
		zap.Int("n_ratings", trainSet.Count()),
		zap.Int("n_features", data.nFeatures),
		zap.String("params", fm.GetParams().ToString()))
	fm.minTarget, fm.maxTarget = trainSet.MinRating(), trainSet.MaxRating()
	rng := fm.ResetRandomGenerator()
	if fm.useBias {
		fm.W0 = trainSet.GlobalMean()
	}
	fm.W = make([]float32, data.nFeatures)
	fm.V = rng.NormalMatrix(data.nFeatures, fm.nFactors, 0, fm.initStdDev)
	start := time.Now()
	var err error
	switch fm.method {
	case SGD:
		err = fm.learnSGD(ctx, data, false)
	case SGDA:
		err = fm.learnSGD(ctx, data, true)
	case ALS:
		err = fm.learnALS(ctx, data)
	case MCMC:
		err = fm.learnMCMC(ctx, data)
	default:
		err = errors.NotSupportedf("fm method %s", fm.method)
	}
	if err != nil {
		fm.Clear()
		return errors.Trace(err)
	}
	fm.encoder = enc
	log.Logger().Info("fit fm complete",
		zap.String("method", fm.method),
		zap.String("fit_time", time.Since(start).String()))
	return nil
}

// Predict predicts the rating of a pair clipped to the training range.
func (fm *FactorizationMachine) Predict(userId, itemId int32) (float32, error) {
	if !fm.Learned() {
		return 0, ErrNotLearned
	}
	indices, values := fm.encoder.encode(userId, itemId, nil, nil)
	var prediction float32
	if len(fm.samples) > 0 {
		for _, s := range fm.samples {
			prediction += predict(s.w0, s.w, s.v, indices, values, nil)
		}
		prediction /= float32(len(fm.samples))
	} else {
		prediction = predict(fm.W0, fm.W, fm.V, indices, values, nil)
	}
	return fm.clip(prediction), nil
}

// PredictRating predicts the rating of a pair. It logs and returns 0 before
// Learn.
func (fm *FactorizationMachine) PredictRating(userId, itemId int32) float32 {
	prediction, err := fm.Predict(userId, itemId)
	if err != nil {
		log.Logger().Error("failed to predict", zap.Error(err))
		return 0
	}
	return prediction
}

func (fm *FactorizationMachine) clip(prediction float32) float32 {
	return max(fm.minTarget, min(fm.maxTarget, prediction))
}

// predict evaluates the model on a sparse vector. If sum is not nil it
// receives \sum_j v_{j,f} x_j.
func predict(w0 float32, w []float32, v [][]float32, indices []int32, values []float32, sum []float32) float32 {
	prediction := w0
	for j, index := range indices {
		prediction += w[index] * values[j]
	}
	if len(v) == 0 || len(v[0]) == 0 {
		return prediction
	}
	for f := range v[0] {
		var s, sqr float32
		for j, index := range indices {
			term := v[index][f] * values[j]
			s += term
			sqr += term * term
		}
		if sum != nil {
			sum[f] = s
		}
		prediction += 0.5 * (s*s - sqr)
	}
	return prediction
}

func (fm *FactorizationMachine) isFinite() bool {
	return !math32.IsNaN(fm.W0) && !math32.IsInf(fm.W0, 0) &&
		floats.IsFinite(fm.W) &&
		floats.MatIsFinite(fm.V)
}
