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

package evaluation

import (
	"context"
	"testing"

	"github.com/gorse-io/ratelab/base/progress"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/gorse-io/ratelab/model/mf"
	"github.com/gorse-io/ratelab/recommend"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRatings() *dataset.Dataset {
	data := dataset.NewDataset()
	for u := int32(0); u < 20; u++ {
		for i := int32(0); i < 20; i++ {
			if (u+i)%3 != 0 {
				data.AddRating(u, i, float32(1+(u*i)%5))
			}
		}
	}
	return data
}

func newSGD(trainSet *dataset.Dataset) (recommend.Recommender, error) {
	return recommend.NewMF(mf.NewSGD(model.Params{model.NEpochs: 5}), trainSet), nil
}

func newEvaluators(t *testing.T) []Evaluator {
	coverage, err := NewItemCoverage(CoverageAll, 5, 0)
	require.NoError(t, err)
	return []Evaluator{coverage, NewRMSE(), NewMAE(), NewNDCG(5, 4), NewPrecision(5, 4), NewRecall(5, 4)}
}

func TestRunner_Run(t *testing.T) {
	split, err := dataset.Split(newRatings(), 0.2, 0)
	require.NoError(t, err)
	runner := &Runner{Evaluators: newEvaluators(t), TopN: 5, Jobs: 4}
	result, err := runner.Run(context.Background(), Algorithm{Name: "sgd", New: newSGD}, 0, split)
	require.NoError(t, err)
	assert.Equal(t, "sgd", result.Algorithm)
	assert.Len(t, result.Scores, 6)
	assert.Equal(t, "ItemCoverage(all)", result.Scores[0].Name)
	assert.Greater(t, result.Scores[0].Value, float32(0))
	assert.Greater(t, result.Scores[1].Value, float32(0))
	assert.Equal(t, result.Runtime.TrainTime+result.Runtime.PredictTime, result.Runtime.OverallTime())

	// missing test split
	_, err = runner.Run(context.Background(), Algorithm{Name: "sgd", New: newSGD}, 0, dataset.NewDataModel(dataset.NewDataset(), nil))
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestRunner_Evaluate(t *testing.T) {
	var called int
	runner := &Runner{
		Evaluators: newEvaluators(t),
		TopN:       5,
		Jobs:       1,
		OnResult:   func(*Result) { called++ },
	}
	tracer := progress.NewTracer("test")
	ctx, span := tracer.Start(context.Background(), "evaluate", 2)
	algorithms := []Algorithm{
		{Name: "sgd", New: newSGD},
		{Name: "svdpp", New: func(trainSet *dataset.Dataset) (recommend.Recommender, error) {
			return recommend.NewMF(mf.NewSVDpp(model.Params{model.NEpochs: 2}), trainSet), nil
		}},
	}
	results, err := runner.Evaluate(ctx, newRatings(), algorithms, 2, 0.2, 0)
	require.NoError(t, err)
	span.End()
	assert.Len(t, results, 4)
	assert.Equal(t, 4, called)
	assert.Equal(t, 0, results[0].Round)
	assert.Equal(t, "svdpp", results[1].Algorithm)
	assert.Equal(t, 1, results[3].Round)

	_, err = runner.Evaluate(ctx, newRatings(), algorithms, 0, 0.2, 0)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &Runner{Evaluators: newEvaluators(t), TopN: 5, Jobs: 2}
	_, err := runner.Evaluate(ctx, newRatings(), []Algorithm{{Name: "sgd", New: newSGD}}, 1, 0.2, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
