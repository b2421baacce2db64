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

// Package recommend turns trained models into rating predictions and ranked
// item lists.
package recommend

import (
	"context"
	"sync"

	"github.com/gorse-io/ratelab/base/log"
	"github.com/gorse-io/ratelab/common/heap"
	"github.com/gorse-io/ratelab/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const ErrNotInitialized = errors.ConstError("recommend: not initialized")

// Recommender predicts ratings and recommends items. Init must be called
// exactly once before any prediction.
type Recommender interface {
	Init(ctx context.Context) error
	PredictRating(userId, itemId int32) (float32, error)
	RecommendItems(userId int32, n int) ([]int32, error)
}

// base holds the state shared by recommenders: the training set, the
// one-shot initialization flag and the fallback statistics.
type base struct {
	trainSet    *dataset.Dataset
	mu          sync.RWMutex
	initialized bool
	userMeans   map[int32]float32
	itemMeans   map[int32]float32
	globalMean  float32
}

// init runs fit once and caches fallback statistics.
func (b *base) init(ctx context.Context, name string, fit func(ctx context.Context) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return errors.AlreadyExistsf("%s recommender", name)
	}
	if b.trainSet.Count() == 0 {
		return errors.NotFoundf("training ratings")
	}
	if err := fit(ctx); err != nil {
		return errors.Trace(err)
	}
	b.userMeans = b.trainSet.UserAverageRatings()
	b.itemMeans = b.trainSet.ItemAverageRatings()
	b.globalMean = b.trainSet.GlobalMean()
	b.initialized = true
	log.Logger().Info("recommender initialized",
		zap.String("name", name),
		zap.Int("n_users", b.trainSet.UserCount()),
		zap.Int("n_items", b.trainSet.ItemCount()))
	return nil
}

func (b *base) ready() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.initialized {
		return ErrNotInitialized
	}
	return nil
}

// fallback estimates a rating of a pair outside the model: the user mean,
// then the item mean, then the global mean.
func (b *base) fallback(userId, itemId int32) float32 {
	if mean, ok := b.userMeans[userId]; ok {
		return mean
	}
	if mean, ok := b.itemMeans[itemId]; ok {
		return mean
	}
	return b.globalMean
}

// rank returns the top n training items the user has not rated by score
// descending. Ties are broken by ascending item id.
func (b *base) rank(userId int32, n int, predict func(userId, itemId int32) (float32, error)) ([]int32, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.NotValidf("number of items %d", n)
	}
	rated := lo.SliceToMap(b.trainSet.UserRatedItems(userId), func(itemId int32) (int32, struct{}) {
		return itemId, struct{}{}
	})
	filter := heap.NewTopKFilter[int32, float32](n)
	for _, itemId := range b.trainSet.ItemIndex().GetIds() {
		if _, ok := rated[itemId]; ok {
			continue
		}
		score, err := predict(userId, itemId)
		if err != nil {
			return nil, errors.Trace(err)
		}
		filter.Push(itemId, score)
	}
	return filter.PopAllValues(), nil
}
