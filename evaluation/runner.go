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
	"fmt"
	"time"

	"github.com/gorse-io/ratelab/base/log"
	"github.com/gorse-io/ratelab/base/progress"
	"github.com/gorse-io/ratelab/common/parallel"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/recommend"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Algorithm creates a fresh recommender for every training partition.
type Algorithm struct {
	Name string
	New  func(trainSet *dataset.Dataset) (recommend.Recommender, error)
}

type Score struct {
	Name  string
	Value float32
}

// Result is the outcome of one algorithm in one evaluation round.
type Result struct {
	Algorithm string
	Round     int
	Scores    []Score
	Runtime   *RuntimeResult
}

// Runner trains algorithms and feeds their recommendations and predictions
// to evaluators. Recommendations and predictions are computed by Jobs
// workers, evaluators are fed sequentially.
type Runner struct {
	Evaluators []Evaluator
	TopN       int
	Jobs       int
	// OnResult is called after each algorithm finishes a round.
	OnResult func(result *Result)
}

// Run evaluates an algorithm on one train/test partition.
func (r *Runner) Run(ctx context.Context, algorithm Algorithm, round int, data *dataset.DataModel) (*Result, error) {
	trainSet, err := data.GetTrainingDataModel()
	if err != nil {
		return nil, errors.Trace(err)
	}
	testSet, err := data.GetTestDataModel()
	if err != nil {
		return nil, errors.Trace(err)
	}
	recommender, err := algorithm.New(trainSet)
	if err != nil {
		return nil, errors.Annotatef(err, "create %s", algorithm.Name)
	}
	runtime := NewRuntimeResult(algorithm.Name, round)

	// train
	start := time.Now()
	if err = recommender.Init(ctx); err != nil {
		return nil, errors.Annotatef(err, "train %s", algorithm.Name)
	}
	runtime.SetTrainTime(time.Since(start))

	// predict
	start = time.Now()
	users := testSet.UserIndex().GetIds()
	recommendations := make([][]int32, len(users))
	_, span := progress.Start(ctx, "Runner.Predict", len(users)+testSet.Count())
	if err = parallel.Parallel(ctx, len(users), r.Jobs, func(_, jobId int) error {
		items, err := recommender.RecommendItems(users[jobId], r.TopN)
		if err != nil {
			return errors.Trace(err)
		}
		recommendations[jobId] = items
		span.Add(1)
		return nil
	}); err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	predictions := make([]float32, testSet.Count())
	if err = parallel.Parallel(ctx, testSet.Count(), r.Jobs, func(_, jobId int) error {
		rating := testSet.Rating(jobId)
		prediction, err := recommender.PredictRating(rating.UserId, rating.ItemId)
		if err != nil {
			return errors.Trace(err)
		}
		predictions[jobId] = prediction
		span.Add(1)
		return nil
	}); err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	span.End()
	runtime.SetPredictTime(time.Since(start))

	// evaluate
	result := &Result{Algorithm: algorithm.Name, Round: round, Runtime: runtime}
	for _, evaluator := range r.Evaluators {
		evaluator.Initialize(trainSet, testSet)
		for i, userId := range users {
			evaluator.AddRecommendations(userId, recommendations[i])
		}
		for i, prediction := range predictions {
			evaluator.AddPrediction(testSet.Rating(i), prediction)
		}
		result.Scores = append(result.Scores, Score{Name: evaluator.Name(), Value: evaluator.GetEvaluationResult()})
	}
	fields := []zap.Field{
		zap.String("algorithm", algorithm.Name),
		zap.Int("round", round),
		zap.Duration("train_time", runtime.TrainTime),
		zap.Duration("predict_time", runtime.PredictTime),
	}
	for _, score := range result.Scores {
		fields = append(fields, zap.Float32(score.Name, score.Value))
	}
	log.Logger().Info("evaluate complete", fields...)
	return result, nil
}

// Evaluate runs every algorithm for a number of rounds. Round i splits the
// ratings with seed+i.
func (r *Runner) Evaluate(ctx context.Context, data *dataset.Dataset, algorithms []Algorithm, rounds int, testRatio float64, seed int64) ([]*Result, error) {
	if rounds <= 0 {
		return nil, errors.NotValidf("number of rounds %d", rounds)
	}
	var results []*Result
	for round := 0; round < rounds; round++ {
		split, err := dataset.Split(data, testRatio, seed+int64(round))
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, algorithm := range algorithms {
			spanCtx, span := progress.Start(ctx, fmt.Sprintf("%s/%d", algorithm.Name, round), 1)
			result, err := r.Run(spanCtx, algorithm, round, split)
			if err != nil {
				span.Fail(err)
				return nil, errors.Trace(err)
			}
			span.Add(1)
			span.End()
			results = append(results, result)
			if r.OnResult != nil {
				r.OnResult(result)
			}
		}
	}
	return results, nil
}
