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
	"math"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/chewxy/math32"
	"github.com/gorse-io/ratelab/base/log"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// SearchRange is the range a hyper-parameter is sampled from.
type SearchRange struct {
	Name model.ParamName
	Low  float64
	High float64
	// Log samples floats on a log scale.
	Log bool
	// Int samples integers.
	Int bool
}

// DefaultSearchSpace tunes the SGD kernel.
var DefaultSearchSpace = []SearchRange{
	{Name: model.NFactors, Low: 2, High: 64, Int: true},
	{Name: model.Lr, Low: 0.001, High: 0.1, Log: true},
	{Name: model.Reg, Low: 0.001, High: 0.1, Log: true},
	{Name: model.InitStdDev, Low: 0.001, High: 0.1, Log: true},
}

type ModelCreator func() Factorizer

// ModelSearch tunes a Factorizer with TPE to minimize RMSE on a validation set.
type ModelSearch struct {
	creator    ModelCreator
	space      []SearchRange
	params     model.Params
	trainSet   *dataset.Dataset
	valSet     *dataset.Dataset
	bestParams model.Params
	bestScore  float32
}

// NewModelSearch creates a search. params are fixed hyper-parameters that
// suggestions are merged into.
func NewModelSearch(creator ModelCreator, space []SearchRange, params model.Params, trainSet, valSet *dataset.Dataset) *ModelSearch {
	return &ModelSearch{
		creator:   creator,
		space:     space,
		params:    params,
		trainSet:  trainSet,
		valSet:    valSet,
		bestScore: math32.Inf(1),
	}
}

func (ms *ModelSearch) suggest(trial goptuna.Trial) (model.Params, error) {
	params := make(model.Params, len(ms.space))
	for _, r := range ms.space {
		var (
			value any
			err   error
		)
		switch {
		case r.Int:
			value, err = trial.SuggestInt(string(r.Name), int(r.Low), int(r.High))
		case r.Log:
			value, err = trial.SuggestLogFloat(string(r.Name), r.Low, r.High)
		default:
			value, err = trial.SuggestUniform(string(r.Name), r.Low, r.High)
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		params[r.Name] = value
	}
	return params, nil
}

// Objective trains a factorizer with suggested hyper-parameters and returns
// its validation RMSE. Diverged trials score +Inf.
func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	suggested, err := ms.suggest(trial)
	if err != nil {
		return 0, errors.Trace(err)
	}
	params := ms.params.Overwrite(suggested)
	m := ms.creator()
	m.SetParams(params)
	f, err := m.Factorize(context.Background(), ms.trainSet)
	if errors.Is(err, ErrDiverged) {
		log.Logger().Warn("trial diverged", zap.String("params", params.ToString()))
		return math.Inf(1), nil
	} else if err != nil {
		return 0, errors.Trace(err)
	}
	score := RMSE(f, ms.valSet)
	if score < ms.bestScore {
		ms.bestScore = score
		ms.bestParams = params
	}
	return float64(score), nil
}

// Search runs nTrials trials and returns the best hyper-parameters.
func (ms *ModelSearch) Search(nTrials int, seed int64) (model.Params, float32, error) {
	study, err := goptuna.CreateStudy("ratelab",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(seed))))
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	if err = study.Optimize(ms.Objective, nTrials); err != nil {
		return nil, 0, errors.Trace(err)
	}
	if ms.bestParams == nil {
		return nil, 0, errors.Annotate(ErrDiverged, "every trial")
	}
	return ms.bestParams, ms.bestScore, nil
}

// RMSE of a factorization on a test set. Pairs outside the training id space
// are predicted by the global bias.
func RMSE(f *Factorization, testSet *dataset.Dataset) float32 {
	if testSet.Count() == 0 {
		return 0
	}
	sum := float32(0)
	for i := 0; i < testSet.Count(); i++ {
		rating := testSet.Rating(i)
		prediction, ok := f.Predict(rating.UserId, rating.ItemId)
		if !ok {
			prediction = f.GlobalBias
		}
		sum += (prediction - rating.Value) * (prediction - rating.Value)
	}
	return math32.Sqrt(sum / float32(testSet.Count()))
}
