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
	"testing"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockFactorizerForSearch struct {
	model.BaseModel
}

func (m *mockFactorizerForSearch) Schema() model.Schema {
	return nil
}

// Factorize returns a factorization whose global bias is the suggested
// number of factors, so the best trial is the one closest to the ratings.
func (m *mockFactorizerForSearch) Factorize(_ context.Context, trainSet *dataset.Dataset) (*Factorization, error) {
	return &Factorization{
		UserIndex:  trainSet.UserIndex(),
		ItemIndex:  trainSet.ItemIndex(),
		GlobalBias: float32(m.Params.GetInt(model.NFactors, 0)),
	}, nil
}

func TestTPE(t *testing.T) {
	trainSet := dataset.NewDataset()
	trainSet.AddRating(1, 1, 3)
	valSet := dataset.NewDataset()
	valSet.AddRating(2, 2, 3)
	valSet.AddRating(3, 3, 3)
	search := NewModelSearch(func() Factorizer {
		return &mockFactorizerForSearch{}
	}, []SearchRange{{Name: model.NFactors, Low: 1, High: 5, Int: true}}, model.Params{model.Lr: 0.1}, trainSet, valSet)
	study, err := goptuna.CreateStudy("TestTPE",
		goptuna.StudyOptionDirection(goptuna.StudyDirectionMinimize),
		goptuna.StudyOptionSampler(tpe.NewSampler()))
	require.NoError(t, err)
	err = study.Optimize(search.Objective, 30)
	require.NoError(t, err)
	v, _ := study.GetBestValue()
	assert.Equal(t, float64(0), v)
	assert.Equal(t, model.Params{model.Lr: 0.1, model.NFactors: 3}, search.bestParams)
}

func TestModelSearch(t *testing.T) {
	data := newSyntheticDataset(30, 20, 0.6, 4)
	split, err := dataset.Split(data, 0.2, 0)
	require.NoError(t, err)
	trainSet, _ := split.GetTrainingDataModel()
	valSet, _ := split.GetTestDataModel()
	search := NewModelSearch(func() Factorizer {
		return NewSGD(nil)
	}, DefaultSearchSpace, model.Params{model.NEpochs: 10}, trainSet, valSet)
	params, score, err := search.Search(5, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, params.GetInt(model.NEpochs, 0))
	assert.GreaterOrEqual(t, params.GetInt(model.NFactors, 0), 2)
	assert.LessOrEqual(t, params.GetInt(model.NFactors, 0), 64)
	assert.Greater(t, score, float32(0))
}
