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
	"slices"

	"github.com/gorse-io/ratelab/config"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/gorse-io/ratelab/model/mf"
	"github.com/gorse-io/ratelab/recommend"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var searchCommand = &cobra.Command{
	Use:   "search <sgd|parallel_sgd|svdpp>",
	Short: "Search hyper-parameters of a factorizer by TPE",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("config")
		trials, _ := cmd.Flags().GetInt("trials")
		values, _ := cmd.Flags().GetStringToString("param")
		cfg, err := config.LoadConfig(path)
		if err != nil {
			fatal("failed to load config", err)
		}
		params, score, err := search(context.Background(), cfg.Data, args[0], values, trials)
		if err != nil {
			fatal("failed to search", err)
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Parameter", "Value")
		names := lo.Keys(params)
		slices.Sort(names)
		for _, name := range names {
			_ = table.Append([]string{string(name), fmt.Sprint(params[name])})
		}
		_ = table.Append([]string{"validation RMSE", fmt.Sprintf("%.4f", score)})
		_ = table.Render()
	},
}

func init() {
	rootCommand.AddCommand(searchCommand)
	searchCommand.Flags().StringP("config", "c", "config.toml", "path of config file")
	searchCommand.Flags().Int("trials", 50, "number of trials")
	searchCommand.Flags().StringToString("param", nil, "fixed hyper-parameters, e.g. --param n_epochs=50")
}

// search tunes a factorizer type on a train/validation split of the data.
func search(ctx context.Context, cfg config.DataConfig, typ string, values map[string]string, trials int) (model.Params, float32, error) {
	schema, err := recommend.Schema(typ)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	if typ == recommend.TypeFM {
		return nil, 0, errors.NotSupportedf("search of %s", typ)
	}
	params, err := schema.Parse(values)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	data, err := loadData(ctx, cfg)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	split, err := dataset.Split(data, cfg.TestRatio, cfg.Seed)
	if err != nil {
		return nil, 0, errors.Trace(err)
	}
	trainSet, _ := split.GetTrainingDataModel()
	valSet, _ := split.GetTestDataModel()
	creator := func() mf.Factorizer {
		factorizer, _ := recommend.NewFactorizer(typ, nil)
		return factorizer
	}
	return mf.NewModelSearch(creator, mf.DefaultSearchSpace, params, trainSet, valSet).Search(trials, cfg.Seed)
}
