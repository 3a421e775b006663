// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aggexec

import (
	"bytes"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"github.com/matrixorigin/arrayagg/pkg/common/arena"
	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

// distinct string keys are interned in small chunks, one arena per group.
const distinctArenaChunkSize = 4 << 10

// distinctSet remembers the values of one group once, in the order they
// were first seen.
type distinctSet interface {
	// insert adds the not null value vec[row] and reports whether it was new.
	insert(vec *vector.Vector, row int) (bool, error)
	size() int
	// materialize appends the values from the from-th one on to vec.
	materialize(vec *vector.Vector, from int, m *mpool.MPool) error
	memSize() int64
	free()
}

func newDistinctSet(typ types.Type, mp *mpool.MPool) (distinctSet, error) {
	switch typ.Oid {
	case types.T_bool:
		return newFixedSet[bool](), nil
	case types.T_int8:
		return newFixedSet[int8](), nil
	case types.T_int16:
		return newFixedSet[int16](), nil
	case types.T_int32:
		return newFixedSet[int32](), nil
	case types.T_int64:
		return newFixedSet[int64](), nil
	case types.T_uint8:
		return newFixedSet[uint8](), nil
	case types.T_uint16:
		return newFixedSet[uint16](), nil
	case types.T_uint32:
		return newFixedSet[uint32](), nil
	case types.T_uint64:
		return newFixedSet[uint64](), nil
	case types.T_float32:
		return newFixedSet[float32](), nil
	case types.T_float64:
		return newFixedSet[float64](), nil
	case types.T_date:
		return newFixedSet[types.Date](), nil
	case types.T_datetime:
		return newFixedSet[types.Datetime](), nil
	case types.T_char, types.T_varchar, types.T_text:
		return newBytesSet(mp), nil
	}
	return nil, moerr.NewNotSupportedNoCtx("%s(distinct) of %s", nameArrayAgg, typ)
}

type fixedSet[T comparable] struct {
	seen map[T]struct{}
	keys []T
}

func newFixedSet[T comparable]() *fixedSet[T] {
	return &fixedSet[T]{seen: make(map[T]struct{})}
}

func (s *fixedSet[T]) insert(vec *vector.Vector, row int) (bool, error) {
	v := vector.GetFixedAt[T](vec, row)
	if _, ok := s.seen[v]; ok {
		return false, nil
	}
	s.seen[v] = struct{}{}
	s.keys = append(s.keys, v)
	return true, nil
}

func (s *fixedSet[T]) size() int {
	return len(s.keys)
}

func (s *fixedSet[T]) materialize(vec *vector.Vector, from int, m *mpool.MPool) error {
	if from >= len(s.keys) {
		return nil
	}
	return vector.AppendFixedList(vec, s.keys[from:], nil, m)
}

func (s *fixedSet[T]) memSize() int64 {
	var v T
	// the map holds a second copy of every key
	return int64(cap(s.keys)+len(s.seen)) * int64(unsafe.Sizeof(v))
}

func (s *fixedSet[T]) free() {
	s.seen = nil
	s.keys = nil
}

// bytesSet keeps one copy of every distinct key in an arena and finds keys
// by their xxhash.
type bytesSet struct {
	arena   *arena.Arena
	buckets map[uint64][]int32
	spans   []arena.Span
}

func newBytesSet(mp *mpool.MPool) *bytesSet {
	return &bytesSet{
		arena:   arena.New(mp, distinctArenaChunkSize),
		buckets: make(map[uint64][]int32),
	}
}

func (s *bytesSet) insert(vec *vector.Vector, row int) (bool, error) {
	key := vec.GetBytesAt(row)
	h := xxhash.Sum64(key)
	bucket := s.buckets[h]
	for _, idx := range bucket {
		if bytes.Equal(s.arena.Bytes(s.spans[idx]), key) {
			return false, nil
		}
	}
	span, err := s.arena.Copy(key)
	if err != nil {
		return false, err
	}
	s.buckets[h] = append(bucket, int32(len(s.spans)))
	s.spans = append(s.spans, span)
	return true, nil
}

func (s *bytesSet) size() int {
	return len(s.spans)
}

func (s *bytesSet) materialize(vec *vector.Vector, from int, m *mpool.MPool) error {
	for _, span := range s.spans[from:] {
		if err := vector.AppendBytes(vec, s.arena.Bytes(span), false, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *bytesSet) memSize() int64 {
	return s.arena.Size() + int64(cap(s.spans))*int64(unsafe.Sizeof(arena.Span{}))
}

func (s *bytesSet) free() {
	s.arena.Free()
	s.buckets = nil
	s.spans = nil
}
