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

package dataset

import (
	"github.com/gorse-io/ratelab/base"
	"github.com/juju/errors"
)

// Split shuffles ratings with a seeded generator and moves testRatio of them
// to the test partition. Side channels are shared by both partitions.
func Split(data *Dataset, testRatio float64, seed int64) (*DataModel, error) {
	if data.Count() == 0 {
		return nil, errors.NotFoundf("ratings to split")
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, errors.NotValidf("test ratio %v", testRatio)
	}
	rng := base.NewRandomGenerator(seed)
	perm := rng.Perm(data.Count())
	testSize := int(float64(data.Count()) * testRatio)
	train, test := NewDataset(), NewDataset()
	for i, pos := range perm {
		rating := data.Rating(pos)
		if i < testSize {
			test.AddRating(rating.UserId, rating.ItemId, rating.Value)
		} else {
			train.AddRating(rating.UserId, rating.ItemId, rating.Value)
		}
	}
	for key, value := range data.extra {
		train.AddExtraInformation(key, value)
		test.AddExtraInformation(key, value)
	}
	return NewDataModel(train, test), nil
}
