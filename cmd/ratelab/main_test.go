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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/ratelab/config"
	"github.com/gorse-io/ratelab/evaluation"
	"github.com/gorse-io/ratelab/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRatings(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "ratings.csv")
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()
	for u := 0; u < 15; u++ {
		for i := 0; i < 15; i++ {
			if (u+i)%3 != 0 {
				_, err = fmt.Fprintf(file, "%d,%d,%d,%d\n", u, i, 1+(u*i)%5, 1000+u*15+i)
				require.NoError(t, err)
			}
		}
	}
	return path
}

func TestNewEvaluators(t *testing.T) {
	cfg := config.GetDefaultConfig().Evaluation
	evaluators, err := newEvaluators(cfg)
	require.NoError(t, err)
	require.Len(t, evaluators, 6)
	assert.IsType(t, &evaluation.ItemCoverage{}, evaluators[0])
	assert.Equal(t, "RMSE", evaluators[1].Name())
	assert.Equal(t, "Recall", evaluators[5].Name())

	cfg.Metrics = []string{config.Coverage}
	cfg.CoverageMode = "most"
	_, err = newEvaluators(cfg)
	assert.True(t, errors.Is(err, errors.NotValid))
	cfg.Metrics = []string{"auc"}
	_, err = newEvaluators(cfg)
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestEvaluate(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Data.Path = writeRatings(t)
	cfg.Evaluation.Rounds = 2
	cfg.Evaluation.Metrics = []string{config.RMSE, config.Coverage}
	cfg.Algorithms = []config.AlgorithmConfig{
		{Name: "sgd", Type: config.SGD, Params: map[string]string{"n_epochs": "5"}},
		{Name: "fm", Type: config.FM, Params: map[string]string{"method": "als", "n_epochs": "5"}},
	}
	results, err := evaluate(context.Background(), cfg, false)
	require.NoError(t, err)
	assert.Len(t, results, 4)
	assert.Equal(t, "RMSE", results[0].Scores[0].Name)
	renderResults(results)

	// parameters are checked before loading data
	cfg.Data.Path = filepath.Join(t.TempDir(), "missing.csv")
	cfg.Algorithms[0].Params["n_epochs"] = "-1"
	_, err = evaluate(context.Background(), cfg, false)
	assert.True(t, errors.Is(err, errors.NotValid))

	cfg.Algorithms = nil
	_, err = evaluate(context.Background(), cfg, false)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestImportAndLoad(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "ratings.db")
	require.NoError(t, importRatings(context.Background(), writeRatings(t), ",", false, dsn, "ratings"))
	cfg := config.GetDefaultConfig().Data
	cfg.Source = dsn
	fromDB, err := loadData(context.Background(), cfg)
	require.NoError(t, err)
	cfg.Source = ""
	cfg.Path = writeRatings(t)
	fromCSV, err := loadData(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, fromCSV.Count(), fromDB.Count())
	assert.Equal(t, fromCSV.GetRating(1, 2), fromDB.GetRating(1, 2))
}

func TestSearch(t *testing.T) {
	cfg := config.GetDefaultConfig().Data
	cfg.Path = writeRatings(t)
	params, score, err := search(context.Background(), cfg, config.SGD, map[string]string{"n_epochs": "5"}, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, params.GetInt(model.NEpochs, 0))
	assert.Greater(t, score, float32(0))

	_, _, err = search(context.Background(), cfg, config.FM, nil, 3)
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestExportSchema(t *testing.T) {
	text, err := exportSchema([]string{"fm"})
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &schema))
	assert.Equal(t, "fm", schema["title"])
	assert.Contains(t, schema["properties"], "method")

	text, err = exportSchema(nil)
	require.NoError(t, err)
	var schemas map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &schemas))
	assert.Len(t, schemas, 4)

	_, err = exportSchema([]string{"knn"})
	assert.True(t, errors.Is(err, errors.NotSupported))
}
