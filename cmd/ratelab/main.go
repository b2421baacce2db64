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

	"github.com/gorse-io/ratelab/base/log"
	"github.com/gorse-io/ratelab/config"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/evaluation"
	"github.com/gorse-io/ratelab/storage"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "ratelab",
	Short: "Train and evaluate rating prediction algorithms",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
}

func init() {
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	log.AddFlags(rootCommand.PersistentFlags())
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadData reads ratings from the database or the CSV file of a config.
func loadData(ctx context.Context, cfg config.DataConfig) (*dataset.Dataset, error) {
	if cfg.Source != "" {
		db, err := storage.Open(cfg.Source)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		return storage.LoadRatings(ctx, db, cfg.Table)
	}
	data, err := dataset.LoadCSV(cfg.Path, cfg.Separator, cfg.Header)
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("load ratings complete",
		zap.String("path", cfg.Path),
		zap.Int("n_ratings", data.Count()),
		zap.Int("n_users", data.UserCount()),
		zap.Int("n_items", data.ItemCount()))
	return data, nil
}

// newEvaluators creates evaluators for the metrics of a config in order.
func newEvaluators(cfg config.EvaluationConfig) ([]evaluation.Evaluator, error) {
	evaluators := make([]evaluation.Evaluator, 0, len(cfg.Metrics))
	for _, metric := range cfg.Metrics {
		switch metric {
		case config.Coverage:
			coverage, err := evaluation.NewItemCoverage(evaluation.CoverageMode(cfg.CoverageMode), cfg.TopN, cfg.RelevanceThreshold)
			if err != nil {
				return nil, errors.Trace(err)
			}
			evaluators = append(evaluators, coverage)
		case config.RMSE:
			evaluators = append(evaluators, evaluation.NewRMSE())
		case config.MAE:
			evaluators = append(evaluators, evaluation.NewMAE())
		case config.NDCG:
			evaluators = append(evaluators, evaluation.NewNDCG(cfg.TopN, cfg.RelevanceThreshold))
		case config.Precision:
			evaluators = append(evaluators, evaluation.NewPrecision(cfg.TopN, cfg.RelevanceThreshold))
		case config.Recall:
			evaluators = append(evaluators, evaluation.NewRecall(cfg.TopN, cfg.RelevanceThreshold))
		default:
			return nil, errors.NotSupportedf("metric %s", metric)
		}
	}
	return evaluators, nil
}

func fatal(msg string, err error) {
	log.Logger().Error(msg, zap.Error(err))
	fmt.Fprintln(os.Stderr, msg+":", err)
	os.Exit(1)
}
