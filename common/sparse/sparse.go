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

// Package sparse stores sets of dense non-negative ids and walks them without
// allocating per element.
package sparse

import (
	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
)

// Iterator is a single pass over an IdSet. Next and NextInt64 panic once the
// iterator is exhausted, so callers check HasNext first.
type Iterator interface {
	HasNext() bool
	Next() int32
	NextInt64() int64
	// Peek returns the next id without consuming it.
	Peek() (int32, error)
	// Skip consumes n ids.
	Skip(n int) error
	// Remove deletes the id returned by the last Next from the backing set.
	Remove() error
}

type IdSet interface {
	Add(id int32)
	Contains(id int32) bool
	Remove(id int32)
	Len() int
	ToSlice() []int32
	Iterator() Iterator
}

var (
	errExhausted    = errors.ConstError("sparse: iterator exhausted")
	errRemoveBefore = errors.ConstError("sparse: remove without a preceding next")
)

// BitSetIdSet is an IdSet backed by a bitset. It suits dense id spaces such as
// the item ids rated by a user.
type BitSetIdSet struct {
	bits *bitset.BitSet
}

func NewBitSetIdSet(ids ...int32) *BitSetIdSet {
	set := &BitSetIdSet{bits: bitset.New(0)}
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

func (s *BitSetIdSet) Add(id int32) {
	s.bits.Set(uint(id))
}

func (s *BitSetIdSet) Contains(id int32) bool {
	return id >= 0 && s.bits.Test(uint(id))
}

func (s *BitSetIdSet) Remove(id int32) {
	if id >= 0 {
		s.bits.Clear(uint(id))
	}
}

func (s *BitSetIdSet) Len() int {
	return int(s.bits.Count())
}

// ToSlice returns ids in ascending order.
func (s *BitSetIdSet) ToSlice() []int32 {
	ids := make([]int32, 0, s.Len())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		ids = append(ids, int32(i))
	}
	return ids
}

func (s *BitSetIdSet) Iterator() Iterator {
	return &bitSetIterator{set: s}
}

type bitSetIterator struct {
	set    *BitSetIdSet
	cursor uint
	last   int32
	yield  bool
}

func (it *bitSetIterator) HasNext() bool {
	_, ok := it.set.bits.NextSet(it.cursor)
	return ok
}

func (it *bitSetIterator) Next() int32 {
	i, ok := it.set.bits.NextSet(it.cursor)
	if !ok {
		panic(errExhausted)
	}
	it.cursor = i + 1
	it.last = int32(i)
	it.yield = true
	return it.last
}

func (it *bitSetIterator) NextInt64() int64 {
	return int64(it.Next())
}

func (it *bitSetIterator) Peek() (int32, error) {
	i, ok := it.set.bits.NextSet(it.cursor)
	if !ok {
		return 0, errExhausted
	}
	return int32(i), nil
}

func (it *bitSetIterator) Skip(n int) error {
	if n < 0 {
		return errors.NotValidf("skip %d ids", n)
	}
	for ; n > 0; n-- {
		if !it.HasNext() {
			return errExhausted
		}
		it.Next()
	}
	return nil
}

func (it *bitSetIterator) Remove() error {
	if !it.yield {
		return errRemoveBefore
	}
	it.set.Remove(it.last)
	it.yield = false
	return nil
}

// HashIdSet is an IdSet backed by a hash set. It suits sparse id spaces.
// Its iterators cannot peek.
type HashIdSet struct {
	set mapset.Set[int32]
}

func NewHashIdSet(ids ...int32) *HashIdSet {
	return &HashIdSet{set: mapset.NewThreadUnsafeSet(ids...)}
}

func (s *HashIdSet) Add(id int32) {
	s.set.Add(id)
}

func (s *HashIdSet) Contains(id int32) bool {
	return s.set.Contains(id)
}

func (s *HashIdSet) Remove(id int32) {
	s.set.Remove(id)
}

func (s *HashIdSet) Len() int {
	return s.set.Cardinality()
}

// ToSlice returns ids in no particular order.
func (s *HashIdSet) ToSlice() []int32 {
	return s.set.ToSlice()
}

// Iterator walks a snapshot of the ids taken when it is created.
func (s *HashIdSet) Iterator() Iterator {
	return &hashIterator{set: s, ids: s.set.ToSlice()}
}

type hashIterator struct {
	set    *HashIdSet
	ids    []int32
	cursor int
	last   int32
	yield  bool
}

func (it *hashIterator) HasNext() bool {
	return it.cursor < len(it.ids)
}

func (it *hashIterator) Next() int32 {
	if it.cursor >= len(it.ids) {
		panic(errExhausted)
	}
	it.last = it.ids[it.cursor]
	it.yield = true
	it.cursor++
	return it.last
}

func (it *hashIterator) NextInt64() int64 {
	return int64(it.Next())
}

func (it *hashIterator) Peek() (int32, error) {
	return 0, errors.NotSupportedf("peek on hash set iterator")
}

func (it *hashIterator) Skip(n int) error {
	if n < 0 {
		return errors.NotValidf("skip %d ids", n)
	}
	for ; n > 0; n-- {
		if !it.HasNext() {
			return errExhausted
		}
		it.Next()
	}
	return nil
}

func (it *hashIterator) Remove() error {
	if !it.yield {
		return errRemoveBefore
	}
	it.set.Remove(it.last)
	it.yield = false
	return nil
}
