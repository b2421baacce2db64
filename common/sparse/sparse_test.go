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

package sparse

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSets(ids ...int32) map[string]IdSet {
	return map[string]IdSet{
		"bitset": NewBitSetIdSet(ids...),
		"hash":   NewHashIdSet(ids...),
	}
}

func drain(it Iterator) []int32 {
	var ids []int32
	for it.HasNext() {
		ids = append(ids, it.Next())
	}
	return ids
}

func TestIterator(t *testing.T) {
	for name, set := range newSets(3, 1, 4, 15, 9, 2, 6) {
		t.Run(name, func(t *testing.T) {
			ids := drain(set.Iterator())
			assert.Len(t, ids, 7)
			assert.ElementsMatch(t, []int32{1, 2, 3, 4, 6, 9, 15}, ids)
			assert.Panics(t, func() {
				it := set.Iterator()
				drain(it)
				it.Next()
			})
		})
	}
}

func TestIteratorRemove(t *testing.T) {
	for name, set := range newSets(10, 20, 30) {
		t.Run(name, func(t *testing.T) {
			it := set.Iterator()
			assert.Error(t, it.Remove())
			removed := it.Next()
			require.NoError(t, it.Remove())
			assert.Error(t, it.Remove())
			assert.False(t, set.Contains(removed))
			assert.Equal(t, 2, set.Len())
			ids := drain(set.Iterator())
			assert.Len(t, ids, 2)
			assert.NotContains(t, ids, removed)
		})
	}
}

func TestIteratorSkip(t *testing.T) {
	for name, set := range newSets(1, 2, 3, 4) {
		t.Run(name, func(t *testing.T) {
			it := set.Iterator()
			require.NoError(t, it.Skip(3))
			assert.True(t, it.HasNext())
			it.Next()
			assert.False(t, it.HasNext())
			assert.Error(t, it.Skip(1))
			assert.True(t, errors.Is(set.Iterator().Skip(-1), errors.NotValid))
		})
	}
}

func TestIteratorRemoveAfterSkip(t *testing.T) {
	for name, set := range newSets(1, 2, 3, 4) {
		t.Run(name, func(t *testing.T) {
			it := set.Iterator()
			require.NoError(t, it.Skip(2))
			require.NoError(t, it.Remove())
			assert.Equal(t, 3, set.Len())
			rest := drain(it)
			assert.Len(t, rest, 2)
			// the removed id is the last skipped one
			remaining := drain(set.Iterator())
			assert.Len(t, remaining, 3)
			assert.Subset(t, remaining, rest)
			// skipping nothing does not arm Remove
			it = set.Iterator()
			require.NoError(t, it.Skip(0))
			assert.Error(t, it.Remove())
		})
	}
}

func TestBitSetIteratorPeek(t *testing.T) {
	set := NewBitSetIdSet(7, 3)
	it := set.Iterator()
	id, err := it.Peek()
	require.NoError(t, err)
	assert.Equal(t, int32(3), id)
	assert.Equal(t, int32(3), it.Next())
	assert.Equal(t, int64(7), it.NextInt64())
	_, err = it.Peek()
	assert.Error(t, err)
}

func TestHashIteratorPeek(t *testing.T) {
	it := NewHashIdSet(7, 3).Iterator()
	_, err := it.Peek()
	assert.True(t, errors.Is(err, errors.NotSupported))
	// peek does not consume
	assert.Len(t, drain(it), 2)
}

func TestBitSetIdSet(t *testing.T) {
	set := NewBitSetIdSet(5, 1)
	assert.Equal(t, []int32{1, 5}, set.ToSlice())
	assert.False(t, set.Contains(-1))
	set.Remove(-1)
	set.Add(3)
	assert.Equal(t, 3, set.Len())
}
