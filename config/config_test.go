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

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestLoadConfig_Template(t *testing.T) {
	config, err := LoadConfig("config.toml.template")
	require.NoError(t, err)
	// [data]
	assert.Empty(t, config.Data.Source)
	assert.Equal(t, "ratings", config.Data.Table)
	assert.Equal(t, "ratings.csv", config.Data.Path)
	assert.Equal(t, ",", config.Data.Separator)
	assert.False(t, config.Data.Header)
	assert.Equal(t, 0.2, config.Data.TestRatio)
	assert.Equal(t, int64(0), config.Data.Seed)
	// [evaluation]
	assert.Equal(t, 1, config.Evaluation.Rounds)
	assert.Equal(t, 10, config.Evaluation.TopN)
	assert.Equal(t, CoverageAll, config.Evaluation.CoverageMode)
	assert.Equal(t, float32(4), config.Evaluation.RelevanceThreshold)
	assert.Equal(t, 4, config.Evaluation.Jobs)
	assert.Equal(t, []string{Coverage, RMSE, MAE, NDCG, Precision, Recall}, config.Evaluation.Metrics)
	assert.Zero(t, config.Evaluation.Timeout)
	// [[algorithms]]
	require.Len(t, config.Algorithms, 4)
	assert.Equal(t, "sgd", config.Algorithms[0].Name)
	assert.Equal(t, SGD, config.Algorithms[0].Type)
	assert.Equal(t, "0.02", config.Algorithms[0].Params["reg"])
	assert.Equal(t, ParallelSGD, config.Algorithms[1].Type)
	assert.Equal(t, "4", config.Algorithms[1].Params["num_threads"])
	assert.Equal(t, SVDpp, config.Algorithms[2].Type)
	assert.Equal(t, FM, config.Algorithms[3].Type)
	assert.Equal(t, "mcmc", config.Algorithms[3].Params["method"])
}

func TestLoadConfig_Default(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
[data]
source = "sqlite://ratings.db"
`))
	require.NoError(t, err)
	expected := GetDefaultConfig()
	expected.Data.Source = "sqlite://ratings.db"
	assert.Equal(t, expected, config)
	assert.Equal(t, runtime.NumCPU(), config.Evaluation.Jobs)
}

func TestLoadConfig_Hooks(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
[data]
path = "ratings.csv"

[evaluation]
metrics = "rmse,mae"
timeout = "1m30s"

[[algorithms]]
name = "fm"
type = "fm"
params = { n_factors = 4, lr = 0.05, use_bias = true }
`))
	require.NoError(t, err)
	assert.Equal(t, []string{RMSE, MAE}, config.Evaluation.Metrics)
	assert.Equal(t, 90*time.Second, config.Evaluation.Timeout)
	assert.Equal(t, "4", config.Algorithms[0].Params["n_factors"])
	assert.Equal(t, "0.05", config.Algorithms[0].Params["lr"])
	assert.Equal(t, "1", config.Algorithms[0].Params["use_bias"])
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("RATELAB_DATA_SOURCE", "postgres://localhost:5432/ratelab")
	t.Setenv("RATELAB_EVALUATION_TOP_N", "5")
	config, err := LoadConfig(writeConfig(t, `
[data]
path = "ratings.csv"
`))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/ratelab", config.Data.Source)
	assert.Equal(t, 5, config.Evaluation.TopN)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for name, text := range map[string]string{
		"no data":       ``,
		"test ratio":    "[data]\npath = \"a.csv\"\ntest_ratio = 1.5\n",
		"coverage mode": "[data]\npath = \"a.csv\"\n[evaluation]\ncoverage_mode = \"most\"\n",
		"top n":         "[data]\npath = \"a.csv\"\n[evaluation]\ntop_n = 0\n",
		"metric":        "[data]\npath = \"a.csv\"\n[evaluation]\nmetrics = [\"auc\"]\n",
		"type":          "[data]\npath = \"a.csv\"\n[[algorithms]]\nname = \"knn\"\ntype = \"knn\"\n",
		"no name":       "[data]\npath = \"a.csv\"\n[[algorithms]]\ntype = \"sgd\"\n",
		"duplicate":     "[data]\npath = \"a.csv\"\n[[algorithms]]\nname = \"a\"\ntype = \"sgd\"\n[[algorithms]]\nname = \"a\"\ntype = \"svdpp\"\n",
		"timeout":       "[data]\npath = \"a.csv\"\n[evaluation]\ntimeout = \"soon\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, text))
			assert.True(t, errors.Is(err, errors.NotValid), err)
		})
	}
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
