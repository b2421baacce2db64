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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gorse-io/ratelab/base/progress"
	"github.com/gorse-io/ratelab/config"
	"github.com/gorse-io/ratelab/evaluation"
	"github.com/gorse-io/ratelab/recommend"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate algorithms listed in a config file",
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(path)
		if err != nil {
			fatal("failed to load config", err)
		}
		results, err := evaluate(context.Background(), cfg, true)
		if err != nil {
			fatal("failed to evaluate", err)
		}
		renderResults(results)
	},
}

func init() {
	rootCommand.AddCommand(evaluateCommand)
	evaluateCommand.Flags().StringP("config", "c", "config.toml", "path of config file")
}

// evaluate runs every configured algorithm. Hyper-parameters of all
// algorithms are parsed before any training starts.
func evaluate(ctx context.Context, cfg *config.Config, showProgress bool) ([]*evaluation.Result, error) {
	if len(cfg.Algorithms) == 0 {
		return nil, errors.NotFoundf("algorithms in config")
	}
	algorithms := make([]evaluation.Algorithm, 0, len(cfg.Algorithms))
	for _, algorithm := range cfg.Algorithms {
		builder, err := recommend.NewBuilder(algorithm.Type, algorithm.Params, nil)
		if err != nil {
			return nil, errors.Annotatef(err, "algorithm %s", algorithm.Name)
		}
		algorithms = append(algorithms, evaluation.Algorithm{Name: algorithm.Name, New: builder})
	}
	evaluators, err := newEvaluators(cfg.Evaluation)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.Evaluation.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Evaluation.Timeout)
		defer cancel()
	}
	data, err := loadData(ctx, cfg.Data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	runner := &evaluation.Runner{
		Evaluators: evaluators,
		TopN:       cfg.Evaluation.TopN,
		Jobs:       cfg.Evaluation.Jobs,
	}
	if showProgress {
		bar := progressbar.Default(int64(cfg.Evaluation.Rounds*len(algorithms)), "evaluate")
		runner.OnResult = func(result *evaluation.Result) {
			bar.Describe(fmt.Sprintf("%s/%d", result.Algorithm, result.Round))
			_ = bar.Add(1)
		}
		defer func() { _ = bar.Finish() }()
	}
	tracer := progress.NewTracer("evaluate")
	ctx, span := tracer.Start(ctx, "evaluate", cfg.Evaluation.Rounds*len(algorithms))
	results, err := runner.Evaluate(ctx, data, algorithms, cfg.Evaluation.Rounds, cfg.Data.TestRatio, cfg.Data.Seed)
	if err != nil {
		span.Fail(err)
		return nil, errors.Trace(err)
	}
	span.End()
	return results, nil
}

func renderResults(results []*evaluation.Result) {
	if len(results) == 0 {
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	header := []any{"Algorithm", "Round"}
	for _, score := range results[0].Scores {
		header = append(header, score.Name)
	}
	header = append(header, "Train", "Predict", "Overall")
	table.Header(header...)
	for _, result := range results {
		row := []string{result.Algorithm, fmt.Sprint(result.Round)}
		row = append(row, lo.Map(result.Scores, func(score evaluation.Score, _ int) string {
			return fmt.Sprintf("%.4f", score.Value)
		})...)
		row = append(row,
			result.Runtime.TrainTime.Round(time.Millisecond).String(),
			result.Runtime.PredictTime.Round(time.Millisecond).String(),
			result.Runtime.OverallTime().Round(time.Millisecond).String())
		_ = table.Append(row)
	}
	_ = table.Render()
}
