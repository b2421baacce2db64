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
	"github.com/gorse-io/ratelab/model/fm"
	"github.com/juju/errors"
)

// FM recommends with a factorization machine.
type FM struct {
	base
	machine *fm.FactorizationMachine
}

func NewFM(machine *fm.FactorizationMachine, trainSet *dataset.Dataset) *FM {
	return &FM{base: base{trainSet: trainSet}, machine: machine}
}

func (r *FM) Init(ctx context.Context) error {
	return r.init(ctx, "fm", func(ctx context.Context) error {
		return errors.Trace(r.machine.Learn(ctx, r.trainSet))
	})
}

func (r *FM) PredictRating(userId, itemId int32) (float32, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if !r.machine.Known(userId, itemId) {
		return r.fallback(userId, itemId), nil
	}
	prediction, err := r.machine.Predict(userId, itemId)
	if err != nil {
		return 0, errors.Trace(err)
	}
	return prediction, nil
}

func (r *FM) RecommendItems(userId int32, n int) ([]int32, error) {
	return r.rank(userId, n, r.PredictRating)
}
