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

package fm

import (
	"github.com/gorse-io/ratelab/dataset"
)

// designMatrix stores training cases in compressed sparse rows. Features are
// laid out as users ‖ items ‖ context.
type designMatrix struct {
	offsets   []int
	indices   []int32
	values    []float32
	targets   []float32
	nFeatures int
}

func (m *designMatrix) Count() int {
	return len(m.targets)
}

func (m *designMatrix) Row(i int) ([]int32, []float32) {
	return m.indices[m.offsets[i]:m.offsets[i+1]], m.values[m.offsets[i]:m.offsets[i+1]]
}

// encoder maps (user, item) pairs to sparse feature vectors.
type encoder struct {
	userIndex *dataset.Index
	itemIndex *dataset.Index
	context   ContextSource
}

func (e *encoder) nFeatures() int {
	n := int(e.userIndex.Len() + e.itemIndex.Len())
	if e.context != nil {
		n += e.context.Dimension()
	}
	return n
}

// encode appends features of a pair. Ids outside the index are skipped.
func (e *encoder) encode(userId, itemId int32, indices []int32, values []float32) ([]int32, []float32) {
	if userIdx := e.userIndex.ToNumber(userId); userIdx != dataset.NotId {
		indices = append(indices, userIdx)
		values = append(values, 1)
	}
	if itemIdx := e.itemIndex.ToNumber(itemId); itemIdx != dataset.NotId {
		indices = append(indices, e.userIndex.Len()+itemIdx)
		values = append(values, 1)
	}
	if e.context != nil {
		offset := e.userIndex.Len() + e.itemIndex.Len()
		dimension := e.context.Dimension()
		for c, value := range e.context.Context(userId, itemId) {
			if c >= dimension {
				break
			}
			if value != 0 {
				indices = append(indices, offset+int32(c))
				values = append(values, value)
			}
		}
	}
	return indices, values
}

func (e *encoder) encodeDataset(trainSet *dataset.Dataset) *designMatrix {
	m := &designMatrix{
		offsets:   make([]int, 1, trainSet.Count()+1),
		indices:   make([]int32, 0, trainSet.Count()*2),
		values:    make([]float32, 0, trainSet.Count()*2),
		targets:   make([]float32, 0, trainSet.Count()),
		nFeatures: e.nFeatures(),
	}
	for i := 0; i < trainSet.Count(); i++ {
		rating := trainSet.Rating(i)
		m.indices, m.values = e.encode(rating.UserId, rating.ItemId, m.indices, m.values)
		m.offsets = append(m.offsets, len(m.indices))
		m.targets = append(m.targets, rating.Value)
	}
	return m
}

type entry struct {
	row   int32
	value float32
}

// columns transposes the design matrix so coordinate-wise methods can visit
// the cases of one feature.
func (m *designMatrix) columns() [][]entry {
	columns := make([][]entry, m.nFeatures)
	for i := 0; i < m.Count(); i++ {
		indices, values := m.Row(i)
		for j, index := range indices {
			columns[index] = append(columns[index], entry{row: int32(i), value: values[j]})
		}
	}
	return columns
}
