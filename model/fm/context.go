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

// ContextSource supplies context features of (user, item) pairs. Vectors
// have Dimension elements; a nil vector means all zeros.
type ContextSource interface {
	Dimension() int
	Context(userId, itemId int32) []float32
}

// MapContextSource is a ContextSource backed by nested maps from user to
// item to vector.
type MapContextSource struct {
	values    map[int32]map[int32][]float32
	dimension int
}

// NewMapContextSource creates a context source. Its dimension is the common
// length of all vectors, 0 if there are none and -1 if lengths disagree.
func NewMapContextSource(values map[int32]map[int32][]float32) *MapContextSource {
	source := &MapContextSource{values: values}
	for _, items := range values {
		for _, vector := range items {
			switch {
			case source.dimension == 0:
				source.dimension = len(vector)
			case source.dimension != len(vector):
				source.dimension = -1
				return source
			}
		}
	}
	return source
}

func (s *MapContextSource) Dimension() int {
	return s.dimension
}

func (s *MapContextSource) Context(userId, itemId int32) []float32 {
	if items, ok := s.values[userId]; ok {
		return items[itemId]
	}
	return nil
}
