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

package mpool

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
)

const (
	NoFixed = 1 << iota
	NoLock
)

const (
	B  = 1
	KB = 1024 * B
	MB = 1024 * KB
	GB = 1024 * MB
)

// MPoolStats counts the allocations made through a pool.
type MPoolStats struct {
	NumAlloc      atomic.Int64 // number of allocations
	NumFree       atomic.Int64 // number of frees
	NumAllocBytes atomic.Int64 // number of bytes allocated
	NumFreeBytes  atomic.Int64 // number of bytes freed
	NumCurrBytes  atomic.Int64 // current number of bytes
	HighWaterMark atomic.Int64 // high water mark
}

func (s *MPoolStats) Report(tab string) string {
	if s.HighWaterMark.Load() == 0 {
		// empty, reduce noise.
		return ""
	}

	ret := ""
	ret += fmt.Sprintf("%s allocations : %d\n", tab, s.NumAlloc.Load())
	ret += fmt.Sprintf("%s frees : %d\n", tab, s.NumFree.Load())
	ret += fmt.Sprintf("%s alloc bytes : %d\n", tab, s.NumAllocBytes.Load())
	ret += fmt.Sprintf("%s free bytes : %d\n", tab, s.NumFreeBytes.Load())
	ret += fmt.Sprintf("%s current bytes : %d\n", tab, s.NumCurrBytes.Load())
	ret += fmt.Sprintf("%s high water mark : %d\n", tab, s.HighWaterMark.Load())
	return ret
}

func (s *MPoolStats) ReportJson() string {
	if s.HighWaterMark.Load() == 0 {
		return ""
	}
	ret := "{"
	ret += fmt.Sprintf("\"alloc\": %d,", s.NumAlloc.Load())
	ret += fmt.Sprintf("\"free\": %d,", s.NumFree.Load())
	ret += fmt.Sprintf("\"allocBytes\": %d,", s.NumAllocBytes.Load())
	ret += fmt.Sprintf("\"freeBytes\": %d,", s.NumFreeBytes.Load())
	ret += fmt.Sprintf("\"currBytes\": %d,", s.NumCurrBytes.Load())
	ret += fmt.Sprintf("\"highWaterMark\": %d", s.HighWaterMark.Load())
	ret += "}"
	return ret
}

func (s *MPoolStats) RecordAlloc(tag string, sz int64) int64 {
	s.NumAlloc.Add(1)
	s.NumAllocBytes.Add(sz)
	curr := s.NumCurrBytes.Add(sz)
	for {
		hwm := s.HighWaterMark.Load()
		if curr <= hwm || s.HighWaterMark.CompareAndSwap(hwm, curr) {
			break
		}
	}
	return curr
}

func (s *MPoolStats) RecordFree(tag string, sz int64) int64 {
	if sz < 0 {
		panic(moerr.NewInternalErrorNoCtx("mpool %s free bug, stats: %s", tag, s.Report("    ")))
	}
	s.NumFree.Add(1)
	s.NumFreeBytes.Add(sz)
	curr := s.NumCurrBytes.Add(-sz)
	if curr < 0 {
		panic(moerr.NewInternalErrorNoCtx("mpool %s free bug, stats: %s", tag, s.Report("    ")))
	}
	return curr
}

// MPool accounts the byte buffers used by an aggregation.  Buffers are
// plain Go slices; the pool tracks their capacity so that a query can be
// capped and reported on.  A nil *MPool is valid and behaves as an
// unaccounted, uncapped heap.
type MPool struct {
	id       int64
	tag      string
	cap      int64
	detailed atomic.Bool
	stats    MPoolStats
}

var nextPool atomic.Int64
var globalStats MPoolStats
var globalPools sync.Map

// NewMPool creates a pool.  cap <= 0 means unlimited.
func NewMPool(tag string, cap int64, flag int) (*MPool, error) {
	if cap < 0 {
		return nil, moerr.NewInvalidInputNoCtx("mpool cap %d", cap)
	}
	mp := &MPool{
		id:  nextPool.Add(1),
		tag: tag,
		cap: cap,
	}
	globalPools.Store(mp.id, mp)
	return mp, nil
}

func MustNewZero() *MPool {
	mp, err := NewMPool("must_new_zero", 0, NoFixed)
	if err != nil {
		panic(err)
	}
	return mp
}

// DeleteMPool unregisters a pool from ReportMemUsage.
func DeleteMPool(mp *MPool) {
	if mp == nil {
		return
	}
	globalPools.Delete(mp.id)
}

func (mp *MPool) EnableDetailRecording() {
	if mp != nil {
		mp.detailed.Store(true)
	}
}

func (mp *MPool) Stats() *MPoolStats {
	return &mp.stats
}

func (mp *MPool) Tag() string {
	if mp == nil {
		return "nil"
	}
	return mp.tag
}

func (mp *MPool) Cap() int64 {
	if mp == nil || mp.cap == 0 {
		return GB * 1024
	}
	return mp.cap
}

func (mp *MPool) CurrNB() int64 {
	if mp == nil {
		return 0
	}
	return mp.stats.NumCurrBytes.Load()
}

func (mp *MPool) Report() string {
	if mp.detailed.Load() {
		return fmt.Sprintf("    mpool %s (id %d) stats: %s", mp.tag, mp.id, mp.Stats().Report("        "))
	}
	return fmt.Sprintf("    mpool stats: %s", mp.Stats().Report("        "))
}

// Alloc returns a zeroed buffer of sz bytes.
func (mp *MPool) Alloc(sz int) ([]byte, error) {
	if sz < 0 {
		return nil, moerr.NewInternalErrorNoCtx("mpool %s alloc size %d", mp.Tag(), sz)
	}
	if sz == 0 {
		return nil, nil
	}
	if mp == nil {
		return make([]byte, sz), nil
	}
	if mp.cap > 0 && mp.stats.NumCurrBytes.Load()+int64(sz) > mp.cap {
		return nil, moerr.NewOOMNoCtx()
	}
	bs := make([]byte, sz)
	mp.stats.RecordAlloc(mp.tag, int64(cap(bs)))
	globalStats.RecordAlloc("global", int64(cap(bs)))
	return bs, nil
}

// Free returns bs to the pool.  bs must come from Alloc, Realloc or Grow
// of the same pool.
func (mp *MPool) Free(bs []byte) {
	if mp == nil || cap(bs) == 0 {
		return
	}
	mp.stats.RecordFree(mp.tag, int64(cap(bs)))
	globalStats.RecordFree("global", int64(cap(bs)))
}

// Realloc returns a buffer of sz bytes holding the content of old.  The
// tail past len(old) is zeroed and old is released.
func (mp *MPool) Realloc(old []byte, sz int) ([]byte, error) {
	if sz <= cap(old) {
		return old[:sz], nil
	}
	ret, err := mp.Alloc(sz)
	if err != nil {
		return nil, err
	}
	copy(ret, old)
	mp.Free(old)
	return ret, nil
}

// Grow is Realloc with amortized doubling, used by append style callers.
func (mp *MPool) Grow(old []byte, sz int) ([]byte, error) {
	if sz <= cap(old) {
		return old[:sz], nil
	}
	newCap := calculateNewCap(cap(old), sz)
	ret, err := mp.Realloc(old, newCap)
	if err != nil {
		return nil, err
	}
	return ret[:sz], nil
}

func calculateNewCap(oldCap, requiredSize int) int {
	newCap := oldCap
	doublecap := newCap + newCap
	if requiredSize > doublecap {
		newCap = requiredSize
	} else {
		if newCap < 1024 {
			newCap = doublecap
		} else {
			for 0 < newCap && newCap < requiredSize {
				newCap += newCap / 4
			}
			if newCap <= 0 {
				newCap = requiredSize
			}
		}
	}
	return newCap
}

// ReportMemUsage renders pool usage as json.  An empty tag reports every
// pool, "global" the process wide stats, anything else the pools with
// that tag.
func ReportMemUsage(tag string) string {
	gstat := fmt.Sprintf("{\"global\":%s}", globalStats.ReportJson())
	if tag == "global" {
		return "[" + gstat + "]"
	}

	var poolStats []string
	if tag == "" {
		poolStats = append(poolStats, gstat)
	}
	globalPools.Range(func(k, v any) bool {
		mp := v.(*MPool)
		if tag == "" || tag == mp.tag {
			name, _ := json.Marshal(mp.tag)
			st := mp.stats.ReportJson()
			if st == "" {
				st = "{}"
			}
			poolStats = append(poolStats, fmt.Sprintf("{%s:%s}", name, st))
		}
		return true
	})

	ret := "["
	for i, s := range poolStats {
		if i > 0 {
			ret += ","
		}
		ret += s
	}
	return ret + "]"
}
