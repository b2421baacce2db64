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

// Package evaluation reduces recommendations and predicted ratings of an
// evaluation round to scalar scores.
package evaluation

import (
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/juju/errors"
)

// Evaluator accumulates one metric over an evaluation round. Initialize
// resets the round state.
type Evaluator interface {
	Name() string
	Initialize(trainSet, testSet *dataset.Dataset)
	AddRecommendations(userId int32, items []int32)
	AddPrediction(rating dataset.Rating, prediction float32)
	GetEvaluationResult() float32
}

type CoverageMode string

const (
	CoverageAll      CoverageMode = "all"
	CoverageRelevant CoverageMode = "relevant"
)

// ItemCoverage counts distinct recommended items. In mode all it is the size
// of the union of the first TopN items of every list. In mode relevant only
// items rated at least RelevanceThreshold in the test set are counted, in
// list order, until TopN items of a user have been counted.
type ItemCoverage struct {
	Mode               CoverageMode
	TopN               int
	RelevanceThreshold float32
	testSet            *dataset.Dataset
	items              mapset.Set[int32]
}

func NewItemCoverage(mode CoverageMode, topN int, threshold float32) (*ItemCoverage, error) {
	if mode != CoverageAll && mode != CoverageRelevant {
		return nil, errors.NotValidf("coverage mode %q", mode)
	}
	if topN <= 0 {
		return nil, errors.NotValidf("top n %d", topN)
	}
	return &ItemCoverage{
		Mode:               mode,
		TopN:               topN,
		RelevanceThreshold: threshold,
		items:              mapset.NewThreadUnsafeSet[int32](),
	}, nil
}

func (e *ItemCoverage) Name() string {
	return "ItemCoverage(" + string(e.Mode) + ")"
}

func (e *ItemCoverage) Initialize(_, testSet *dataset.Dataset) {
	e.testSet = testSet
	e.items = mapset.NewThreadUnsafeSet[int32]()
}

func (e *ItemCoverage) AddRecommendations(userId int32, items []int32) {
	if e.Mode == CoverageAll {
		e.items.Append(items[:min(e.TopN, len(items))]...)
		return
	}
	counted := 0
	for _, itemId := range items {
		if counted >= e.TopN {
			break
		}
		if relevant(e.testSet, userId, itemId, e.RelevanceThreshold) {
			e.items.Add(itemId)
			counted++
		}
	}
}

func (e *ItemCoverage) AddPrediction(dataset.Rating, float32) {}

func (e *ItemCoverage) GetEvaluationResult() float32 {
	return float32(e.items.Cardinality())
}

func relevant(testSet *dataset.Dataset, userId, itemId int32, threshold float32) bool {
	if testSet == nil {
		return false
	}
	rating := testSet.GetRating(userId, itemId)
	return rating != dataset.NotRated && rating >= threshold
}

// RMSE is the root mean square error of predicted ratings.
type RMSE struct {
	sum   float32
	count int
}

func NewRMSE() *RMSE {
	return &RMSE{}
}

func (e *RMSE) Name() string {
	return "RMSE"
}

func (e *RMSE) Initialize(_, _ *dataset.Dataset) {
	e.sum, e.count = 0, 0
}

func (e *RMSE) AddRecommendations(int32, []int32) {}

func (e *RMSE) AddPrediction(rating dataset.Rating, prediction float32) {
	e.sum += (rating.Value - prediction) * (rating.Value - prediction)
	e.count++
}

func (e *RMSE) GetEvaluationResult() float32 {
	if e.count == 0 {
		return 0
	}
	return math32.Sqrt(e.sum / float32(e.count))
}

// MAE is the mean absolute error of predicted ratings.
type MAE struct {
	sum   float32
	count int
}

func NewMAE() *MAE {
	return &MAE{}
}

func (e *MAE) Name() string {
	return "MAE"
}

func (e *MAE) Initialize(_, _ *dataset.Dataset) {
	e.sum, e.count = 0, 0
}

func (e *MAE) AddRecommendations(int32, []int32) {}

func (e *MAE) AddPrediction(rating dataset.Rating, prediction float32) {
	e.sum += math32.Abs(rating.Value - prediction)
	e.count++
}

func (e *MAE) GetEvaluationResult() float32 {
	if e.count == 0 {
		return 0
	}
	return e.sum / float32(e.count)
}
