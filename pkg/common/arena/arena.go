// Copyright 2021 - 2022 Matrix Origin
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

// Package arena is a bump allocator for short variable length keys that
// live exactly as long as their owner.  Memory is taken from an mpool in
// chunks and released in one go by Free.
package arena

import (
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
)

const DefaultChunkSize = 64 * mpool.KB

// Span addresses bytes owned by an Arena.  It stays valid until the arena
// is freed or reset.
type Span struct {
	chunk  uint32
	offset uint32
	length uint32
}

func (s Span) Len() int {
	return int(s.length)
}

type Arena struct {
	mp        *mpool.MPool
	chunkSize int
	chunks    [][]byte
	// used bytes of the last chunk
	used int
	size int64
}

func New(mp *mpool.MPool, chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Arena{mp: mp, chunkSize: chunkSize}
}

// Copy stores a copy of b and returns its span.
func (a *Arena) Copy(b []byte) (Span, error) {
	n := len(b)
	if n == 0 {
		return Span{}, nil
	}
	if n > a.chunkSize {
		// oversized key gets a dedicated chunk, which is full from the
		// start so the next key opens a fresh one.
		buf, err := a.mp.Alloc(n)
		if err != nil {
			return Span{}, err
		}
		copy(buf, b)
		a.chunks = append(a.chunks, buf)
		a.used = n
		a.size += int64(n)
		return Span{chunk: uint32(len(a.chunks) - 1), offset: 0, length: uint32(n)}, nil
	}
	if len(a.chunks) == 0 || a.used+n > len(a.chunks[len(a.chunks)-1]) {
		buf, err := a.mp.Alloc(a.chunkSize)
		if err != nil {
			return Span{}, err
		}
		a.chunks = append(a.chunks, buf)
		a.used = 0
		a.size += int64(a.chunkSize)
	}
	idx := len(a.chunks) - 1
	off := a.used
	copy(a.chunks[idx][off:], b)
	a.used += n
	return Span{chunk: uint32(idx), offset: uint32(off), length: uint32(n)}, nil
}

// Bytes returns the bytes behind s without copying.
func (a *Arena) Bytes(s Span) []byte {
	if s.length == 0 {
		return nil
	}
	return a.chunks[s.chunk][s.offset : s.offset+s.length : s.offset+s.length]
}

// Size is the number of bytes held from the pool.
func (a *Arena) Size() int64 {
	return a.size
}

func (a *Arena) Free() {
	for _, c := range a.chunks {
		a.mp.Free(c)
	}
	a.chunks = nil
	a.used = 0
	a.size = 0
}
