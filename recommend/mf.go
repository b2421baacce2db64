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

package recommend

import (
	"context"

	"github.com/gorse-io/ratelab/dataset"
	"github.com/gorse-io/ratelab/model/mf"
	"github.com/juju/errors"
)

// MF recommends with a matrix factorization learned by a Factorizer.
type MF struct {
	base
	factorizer    mf.Factorizer
	factorization *mf.Factorization
}

func NewMF(factorizer mf.Factorizer, trainSet *dataset.Dataset) *MF {
	return &MF{base: base{trainSet: trainSet}, factorizer: factorizer}
}

func (r *MF) Init(ctx context.Context) error {
	return r.init(ctx, "mf", func(ctx context.Context) error {
		factorization, err := r.factorizer.Factorize(ctx, r.trainSet)
		if err != nil {
			return errors.Trace(err)
		}
		r.factorization = factorization
		return nil
	})
}

func (r *MF) PredictRating(userId, itemId int32) (float32, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if prediction, ok := r.factorization.Predict(userId, itemId); ok {
		return prediction, nil
	}
	return r.fallback(userId, itemId), nil
}

func (r *MF) RecommendItems(userId int32, n int) ([]int32, error) {
	return r.rank(userId, n, r.PredictRating)
}

// Factorization returns the learned factorization, nil before Init.
func (r *MF) Factorization() *mf.Factorization {
	return r.factorization
}
