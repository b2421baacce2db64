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

// NotId represents an id that has not been indexed.
const NotId = int32(-1)

// Index maps sparse user or item ids to dense indices used to address
// parameter tables.
type Index struct {
	Numbers map[int32]int32 // sparse id -> dense index
	Ids     []int32         // dense index -> sparse id
}

// NewIndex creates an Index.
func NewIndex() *Index {
	return &Index{
		Numbers: make(map[int32]int32),
		Ids:     make([]int32, 0),
	}
}

// Len returns the number of indexed ids.
func (idx *Index) Len() int32 {
	if idx == nil {
		return 0
	}
	return int32(len(idx.Ids))
}

// Add adds an id to the index and returns its dense index.
func (idx *Index) Add(id int32) int32 {
	if number, exist := idx.Numbers[id]; exist {
		return number
	}
	number := int32(len(idx.Ids))
	idx.Numbers[id] = number
	idx.Ids = append(idx.Ids, id)
	return number
}

// ToNumber converts a sparse id to a dense index.
func (idx *Index) ToNumber(id int32) int32 {
	if idx == nil {
		return NotId
	}
	if number, exist := idx.Numbers[id]; exist {
		return number
	}
	return NotId
}

// ToId converts a dense index to a sparse id.
func (idx *Index) ToId(number int32) int32 {
	return idx.Ids[number]
}

// GetIds returns all ids in the index.
func (idx *Index) GetIds() []int32 {
	return idx.Ids
}
