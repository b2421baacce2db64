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
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSyntheticDataset generates ratings from a rank 2 model.
func newSyntheticDataset(nUsers, nItems int, density float64, seed int64) *dataset.Dataset {
	rng := rand.New(rand.NewSource(seed))
	userFactors := make([][2]float32, nUsers)
	for i := range userFactors {
		userFactors[i] = [2]float32{float32(rng.NormFloat64()), float32(rng.NormFloat64())}
	}
	itemFactors := make([][2]float32, nItems)
	for i := range itemFactors {
		itemFactors[i] = [2]float32{float32(rng.NormFloat64()), float32(rng.NormFloat64())}
	}
	data := dataset.NewDataset()
	for u := 0; u < nUsers; u++ {
		for i := 0; i < nItems; i++ {
			if rng.Float64() < density {
				r := 3 + userFactors[u][0]*itemFactors[i][0] + userFactors[u][1]*itemFactors[i][1]
				data.AddRating(int32(u), int32(i), max(1, min(5, r)))
			}
		}
	}
	return data
}

func newEndToEndDataset() *dataset.Dataset {
	data := dataset.NewDataset()
	data.AddRating(1, 10, 4.0)
	data.AddRating(1, 20, 2.0)
	data.AddRating(2, 10, 5.0)
	return data
}

func baselineRMSE(data *dataset.Dataset) float32 {
	mean := data.GlobalMean()
	sum := float32(0)
	for i := 0; i < data.Count(); i++ {
		_, _, r := data.Get(i)
		sum += (r - mean) * (r - mean)
	}
	return math32.Sqrt(sum / float32(data.Count()))
}

func TestSGD_EndToEnd(t *testing.T) {
	data := newEndToEndDataset()
	params := model.Params{
		model.NFactors: 2,
		model.NEpochs:  50,
		model.Lr:       0.01,
		model.Reg:      0.02,
	}
	f, err := NewSGD(params).Factorize(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, 2, f.NFactors())
	prediction, ok := f.Predict(1, 10)
	require.True(t, ok)
	mean := data.GlobalMean()
	assert.Less(t, math32.Abs(prediction-4), math32.Abs(mean-4))

	// reproducible
	again, err := NewSGD(params).Factorize(context.Background(), data)
	require.NoError(t, err)
	againPrediction, _ := again.Predict(1, 10)
	assert.Equal(t, prediction, againPrediction)

	// unknown ids
	_, ok = f.Predict(1, 30)
	assert.False(t, ok)
	_, ok = f.Predict(3, 10)
	assert.False(t, ok)
}

func TestSGD_Deterministic(t *testing.T) {
	data := newSyntheticDataset(30, 20, 0.5, 0)
	sgd := NewSGD(model.Params{
		model.NFactors:    4,
		model.NEpochs:     10,
		model.LrDecay:     0.05,
		model.RandomState: 42,
	})
	a, err := sgd.Factorize(context.Background(), data)
	require.NoError(t, err)
	// the same instance twice
	b, err := sgd.Factorize(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	// a fresh instance
	c, err := NewSGD(sgd.GetParams()).Factorize(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, a, c)
	// another seed
	d, err := NewSGD(sgd.GetParams().Overwrite(model.Params{model.RandomState: 43})).Factorize(context.Background(), data)
	require.NoError(t, err)
	assert.NotEqual(t, a.UserFactor, d.UserFactor)
}

func TestSGD_Fit(t *testing.T) {
	data := newSyntheticDataset(50, 40, 0.6, 1)
	f, err := NewSGD(model.Params{
		model.NFactors: 4,
		model.NEpochs:  100,
		model.Lr:       0.02,
	}).Factorize(context.Background(), data)
	require.NoError(t, err)
	assert.Less(t, RMSE(f, data), baselineRMSE(data)*0.7)
}

func TestSGD_Diverged(t *testing.T) {
	data := newSyntheticDataset(30, 20, 0.5, 0)
	_, err := NewSGD(model.Params{
		model.Lr:      1e4,
		model.NEpochs: 20,
	}).Factorize(context.Background(), data)
	assert.True(t, errors.Is(err, ErrDiverged))
}

func TestSGD_EmptyTrainSet(t *testing.T) {
	_, err := NewSGD(nil).Factorize(context.Background(), dataset.NewDataset())
	assert.True(t, errors.Is(err, errors.NotFound))
	_, err = NewSGD(nil).Factorize(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestFactorizer_InvalidParams(t *testing.T) {
	data := newEndToEndDataset()
	for _, params := range []model.Params{
		{model.NFactors: -1},
		{model.NEpochs: 0},
		{model.Lr: -0.01},
		{model.LrDecay: 2.0},
		{model.Method: "als"},
	} {
		for _, factorizer := range []Factorizer{NewSGD(params), NewParallelSGD(params), NewSVDpp(params)} {
			_, err := factorizer.Factorize(context.Background(), data)
			assert.True(t, errors.Is(err, errors.NotValid), "%T %v", factorizer, params)
		}
	}
}

func TestSGD_Cancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSGD(nil).Factorize(ctx, newEndToEndDataset())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParallelSGD_SingleThread(t *testing.T) {
	data := newSyntheticDataset(30, 20, 0.5, 2)
	params := model.Params{
		model.NFactors:    3,
		model.NEpochs:     15,
		model.Lr:          0.02,
		model.Reg:         0.05,
		model.LrDecay:     0.1,
		model.RandomState: 7,
	}
	expected, err := NewSGD(params).Factorize(context.Background(), data)
	require.NoError(t, err)
	actual, err := NewParallelSGD(params.Overwrite(model.Params{model.NumThreads: 1})).Factorize(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)

	// non-neutral step schedule changes the result
	scheduled, err := NewParallelSGD(params.Overwrite(model.Params{
		model.NumThreads:         1,
		model.StepOffset:         10.0,
		model.ForgettingExponent: 0.5,
	})).Factorize(context.Background(), data)
	require.NoError(t, err)
	assert.NotEqual(t, expected.UserBias, scheduled.UserBias)
}

func TestParallelSGD_MultiThread(t *testing.T) {
	data := newSyntheticDataset(50, 40, 0.6, 1)
	params := model.Params{
		model.NFactors: 4,
		model.NEpochs:  100,
		model.Lr:       0.02,
	}
	sequential, err := NewSGD(params).Factorize(context.Background(), data)
	require.NoError(t, err)
	concurrent, err := NewParallelSGD(params.Overwrite(model.Params{model.NumThreads: 4})).Factorize(context.Background(), data)
	require.NoError(t, err)
	assert.InDelta(t, RMSE(sequential, data), RMSE(concurrent, data), 0.1)
	assert.Len(t, concurrent.UserFactor, data.UserCount())
	assert.Len(t, concurrent.ItemFactor, data.ItemCount())
}

func TestSVDpp(t *testing.T) {
	data := newSyntheticDataset(30, 20, 0.6, 3)
	params := model.Params{
		model.NFactors: 4,
		model.NEpochs:  60,
		model.Lr:       0.01,
	}
	f, err := NewSVDpp(params).Factorize(context.Background(), data)
	require.NoError(t, err)
	assert.Len(t, f.ImplicitFactor, data.ItemCount())
	assert.Less(t, RMSE(f, data), baselineRMSE(data))

	again, err := NewSVDpp(params).Factorize(context.Background(), data)
	require.NoError(t, err)
	p1, _ := f.Predict(0, 0)
	p2, _ := again.Predict(0, 0)
	assert.Equal(t, p1, p2)
}

func TestSchema(t *testing.T) {
	for _, factorizer := range []Factorizer{NewSGD(nil), NewParallelSGD(nil), NewSVDpp(nil)} {
		params, err := factorizer.Schema().Parse(map[string]string{"n_factors": "8"})
		require.NoError(t, err)
		assert.Equal(t, 8, params.GetInt(model.NFactors, 0))
		assert.Equal(t, float32(0.01), params.GetFloat32(model.Lr, 0))
	}
	assert.Len(t, NewParallelSGD(nil).Schema(), len(sgdSchema)+5)
	assert.Len(t, sgdSchema, 8)
}
