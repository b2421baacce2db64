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

// Package dataset holds ratings of one partition together with the aggregates
// trainers and evaluators read from them.
package dataset

import (
	"math"
	"sort"

	"github.com/gorse-io/ratelab/common/sparse"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// NotRated is returned by GetRating for absent (user, item) pairs.
const NotRated = float32(-1)

// Timestamps names the side channel mapping Rating to time.Time.
const Timestamps = "timestamps"

// Rating is a single observation. It is comparable and may key side channels.
type Rating struct {
	UserId int32
	ItemId int32
	Value  float32
}

type pair struct {
	userId int32
	itemId int32
}

// Dataset is an in-memory rating store.
type Dataset struct {
	users     []int32 // dense user index of each rating
	items     []int32 // dense item index of each rating
	values    []float32
	positions map[pair]int

	userIndex *Index
	itemIndex *Index
	userItems []*sparse.BitSetIdSet

	sum       float64
	minRating float32
	maxRating float32

	userAverages map[int32]float32
	itemAverages map[int32]float32
	extra        map[string]any
}

// NewDataset creates an empty rating store.
func NewDataset() *Dataset {
	return &Dataset{
		positions: make(map[pair]int),
		userIndex: NewIndex(),
		itemIndex: NewIndex(),
		minRating: float32(math.Inf(1)),
		maxRating: float32(math.Inf(-1)),
		extra:     make(map[string]any),
	}
}

// AddRating stores a rating. Rating the same pair again replaces the value.
func (d *Dataset) AddRating(userId, itemId int32, value float32) Rating {
	rating := Rating{UserId: userId, ItemId: itemId, Value: value}
	if pos, exist := d.positions[pair{userId, itemId}]; exist {
		previous := d.values[pos]
		d.sum += float64(value - previous)
		d.values[pos] = value
		if previous == d.minRating || previous == d.maxRating {
			d.minRating, d.maxRating = lo.Min(d.values), lo.Max(d.values)
		}
	} else {
		userIdx := d.userIndex.Add(userId)
		itemIdx := d.itemIndex.Add(itemId)
		if int(userIdx) == len(d.userItems) {
			d.userItems = append(d.userItems, sparse.NewBitSetIdSet())
		}
		d.userItems[userIdx].Add(itemIdx)
		d.positions[pair{userId, itemId}] = len(d.values)
		d.users = append(d.users, userIdx)
		d.items = append(d.items, itemIdx)
		d.values = append(d.values, value)
		d.sum += float64(value)
	}
	d.minRating = min(d.minRating, value)
	d.maxRating = max(d.maxRating, value)
	d.userAverages = nil
	d.itemAverages = nil
	return rating
}

// GetRating returns the rating of a pair or NotRated.
func (d *Dataset) GetRating(userId, itemId int32) float32 {
	if pos, exist := d.positions[pair{userId, itemId}]; exist {
		return d.values[pos]
	}
	return NotRated
}

// Count returns the number of ratings.
func (d *Dataset) Count() int {
	if d == nil {
		return 0
	}
	return len(d.values)
}

// Get returns the i-th rating in dense indices.
func (d *Dataset) Get(i int) (userIdx, itemIdx int32, value float32) {
	return d.users[i], d.items[i], d.values[i]
}

// Rating returns the i-th rating in sparse ids.
func (d *Dataset) Rating(i int) Rating {
	return Rating{
		UserId: d.userIndex.ToId(d.users[i]),
		ItemId: d.itemIndex.ToId(d.items[i]),
		Value:  d.values[i],
	}
}

func (d *Dataset) UserIndex() *Index {
	return d.userIndex
}

func (d *Dataset) ItemIndex() *Index {
	return d.itemIndex
}

func (d *Dataset) UserCount() int {
	return int(d.userIndex.Len())
}

func (d *Dataset) ItemCount() int {
	return int(d.itemIndex.Len())
}

// UserItems returns dense indices of items rated by a dense user index.
func (d *Dataset) UserItems(userIdx int32) sparse.IdSet {
	return d.userItems[userIdx]
}

// UserRatedItems returns sparse ids of items rated by a user in ascending order.
func (d *Dataset) UserRatedItems(userId int32) []int32 {
	userIdx := d.userIndex.ToNumber(userId)
	if userIdx == NotId {
		return nil
	}
	items := lo.Map(d.userItems[userIdx].ToSlice(), func(itemIdx int32, _ int) int32 {
		return d.itemIndex.ToId(itemIdx)
	})
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items
}

// GlobalMean returns the mean of all ratings.
func (d *Dataset) GlobalMean() float32 {
	if len(d.values) == 0 {
		return 0
	}
	return float32(d.sum / float64(len(d.values)))
}

func (d *Dataset) MinRating() float32 {
	return d.minRating
}

func (d *Dataset) MaxRating() float32 {
	return d.maxRating
}

// UserAverageRatings returns the mean rating of every user keyed by sparse id.
func (d *Dataset) UserAverageRatings() map[int32]float32 {
	if d.userAverages == nil {
		d.userAverages = d.averages(d.users, d.userIndex)
	}
	return d.userAverages
}

// ItemAverageRatings returns the mean rating of every item keyed by sparse id.
func (d *Dataset) ItemAverageRatings() map[int32]float32 {
	if d.itemAverages == nil {
		d.itemAverages = d.averages(d.items, d.itemIndex)
	}
	return d.itemAverages
}

func (d *Dataset) averages(keys []int32, index *Index) map[int32]float32 {
	sums := make([]float64, index.Len())
	counts := make([]int, index.Len())
	for i, key := range keys {
		sums[key] += float64(d.values[i])
		counts[key]++
	}
	averages := make(map[int32]float32, index.Len())
	for number, id := range index.GetIds() {
		averages[id] = float32(sums[number] / float64(counts[number]))
	}
	return averages
}

// AddExtraInformation attaches a named side channel such as Timestamps.
func (d *Dataset) AddExtraInformation(key string, value any) {
	d.extra[key] = value
}

// GetExtraInformation returns a named side channel.
func (d *Dataset) GetExtraInformation(key string) (any, bool) {
	value, exist := d.extra[key]
	return value, exist
}

// DataModel bundles the training and test partitions of one evaluation round.
type DataModel struct {
	train *Dataset
	test  *Dataset
}

func NewDataModel(train, test *Dataset) *DataModel {
	return &DataModel{train: train, test: test}
}

func (m *DataModel) GetTrainingDataModel() (*Dataset, error) {
	if m == nil || m.train == nil {
		return nil, errors.NotFoundf("training data")
	}
	return m.train, nil
}

func (m *DataModel) GetTestDataModel() (*Dataset, error) {
	if m == nil || m.test == nil {
		return nil, errors.NotFoundf("test data")
	}
	return m.test, nil
}
