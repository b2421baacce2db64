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

// Package config loads evaluation runs from TOML files.
package config

import (
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	CoverageAll      = "all"
	CoverageRelevant = "relevant"
)

// Algorithm types.
const (
	SGD         = "sgd"
	ParallelSGD = "parallel_sgd"
	SVDpp       = "svdpp"
	FM          = "fm"
)

// Metrics.
const (
	Coverage  = "coverage"
	RMSE      = "rmse"
	MAE       = "mae"
	NDCG      = "ndcg"
	Precision = "precision"
	Recall    = "recall"
)

// Config is the configuration of an evaluation run.
type Config struct {
	Data       DataConfig        `mapstructure:"data"`
	Evaluation EvaluationConfig  `mapstructure:"evaluation"`
	Algorithms []AlgorithmConfig `mapstructure:"algorithms" validate:"dive"`
}

// DataConfig locates ratings either in a database or in a CSV file.
type DataConfig struct {
	Source    string  `mapstructure:"source" validate:"required_without=Path"`
	Table     string  `mapstructure:"table" validate:"required_with=Source"`
	Path      string  `mapstructure:"path" validate:"required_without=Source"`
	Separator string  `mapstructure:"separator" validate:"required"`
	Header    bool    `mapstructure:"header"`
	TestRatio float64 `mapstructure:"test_ratio" validate:"gt=0,lt=1"`
	Seed      int64   `mapstructure:"seed"`
}

type EvaluationConfig struct {
	Rounds             int           `mapstructure:"rounds" validate:"gte=1"`
	TopN               int           `mapstructure:"top_n" validate:"gte=1"`
	CoverageMode       string        `mapstructure:"coverage_mode" validate:"oneof=all relevant"`
	RelevanceThreshold float32       `mapstructure:"relevance_threshold"`
	Jobs               int           `mapstructure:"jobs" validate:"gte=1"`
	Metrics            []string      `mapstructure:"metrics" validate:"dive,oneof=coverage rmse mae ndcg precision recall"`
	Timeout            time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// AlgorithmConfig names an algorithm and its hyper-parameters in string
// form. Parameters are parsed by the schema of the algorithm type.
type AlgorithmConfig struct {
	Name   string            `mapstructure:"name" validate:"required"`
	Type   string            `mapstructure:"type" validate:"oneof=sgd parallel_sgd svdpp fm"`
	Params map[string]string `mapstructure:"params"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Table:     "ratings",
			Separator: ",",
			TestRatio: 0.2,
		},
		Evaluation: EvaluationConfig{
			Rounds:             1,
			TopN:               10,
			CoverageMode:       CoverageAll,
			RelevanceThreshold: 4,
			Jobs:               runtime.NumCPU(),
			Metrics:            []string{Coverage, RMSE, MAE, NDCG, Precision, Recall},
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [data]
	v.SetDefault("data.table", defaultConfig.Data.Table)
	v.SetDefault("data.separator", defaultConfig.Data.Separator)
	v.SetDefault("data.header", defaultConfig.Data.Header)
	v.SetDefault("data.test_ratio", defaultConfig.Data.TestRatio)
	v.SetDefault("data.seed", defaultConfig.Data.Seed)
	v.SetDefault("data.source", "")
	v.SetDefault("data.path", "")
	// [evaluation]
	v.SetDefault("evaluation.rounds", defaultConfig.Evaluation.Rounds)
	v.SetDefault("evaluation.top_n", defaultConfig.Evaluation.TopN)
	v.SetDefault("evaluation.coverage_mode", defaultConfig.Evaluation.CoverageMode)
	v.SetDefault("evaluation.relevance_threshold", defaultConfig.Evaluation.RelevanceThreshold)
	v.SetDefault("evaluation.jobs", defaultConfig.Evaluation.Jobs)
	v.SetDefault("evaluation.metrics", defaultConfig.Evaluation.Metrics)
	v.SetDefault("evaluation.timeout", defaultConfig.Evaluation.Timeout)
}

// LoadConfig reads a TOML file. Keys may be overridden by environment
// variables such as RATELAB_DATA_SOURCE.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	v.SetConfigType("toml")
	v.SetConfigFile(path)
	v.SetEnvPrefix("ratelab")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Annotatef(err, "read config %s", path)
	}
	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.NewNotValid(err, "decode config")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks field constraints and uniqueness of algorithm names.
func (config *Config) Validate() error {
	if err := getValidator().Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]
			return errors.NewNotValid(err, "invalid "+first.Namespace())
		}
		return errors.NewNotValid(err, "invalid config")
	}
	names := make(map[string]struct{}, len(config.Algorithms))
	for _, algorithm := range config.Algorithms {
		if _, exist := names[algorithm.Name]; exist {
			return errors.NotValidf("duplicate algorithm %s", algorithm.Name)
		}
		names[algorithm.Name] = struct{}{}
	}
	return nil
}
