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

package group

import (
	"encoding/binary"

	"github.com/axiomhq/hyperloglog"
	"github.com/cespare/xxhash/v2"

	"github.com/matrixorigin/arrayagg/pkg/container/hashtable"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
	"github.com/matrixorigin/arrayagg/pkg/vm/process"
)

// groupTable numbers the distinct group by keys it sees.  The key of group
// g is row g-1 of keys.
type groupTable struct {
	hash hashtable.GroupHashMap
	keys []*vector.Vector

	// reused across inserts.
	hashes []uint64
	groups []uint64
}

func newGroupTable(keyTypes []types.Type, preAllocated uint64) *groupTable {
	tbl := &groupTable{
		keys: make([]*vector.Vector, len(keyTypes)),
	}
	for i, typ := range keyTypes {
		tbl.keys[i] = vector.NewVec(typ)
	}
	tbl.hash.Init()
	if preAllocated > 0 {
		tbl.hash.PreAlloc(preAllocated)
	}
	return tbl
}

func (tbl *groupTable) groupCount() int {
	return int(tbl.hash.Cardinality())
}

// hashRows fills tbl.hashes with the key hash of rows [offset, offset+count).
func (tbl *groupTable) hashRows(keys []*vector.Vector, offset, count int) []uint64 {
	if cap(tbl.hashes) < count {
		tbl.hashes = make([]uint64, count)
	}
	tbl.hashes = tbl.hashes[:count]
	for i := range tbl.hashes {
		tbl.hashes[i] = keyHash(keys, offset+i)
	}
	return tbl.hashes
}

// insert returns the group of each row of the window, starting from 1,
// and how many groups the window created.  The sketch, when not nil,
// observes every key.
func (tbl *groupTable) insert(
	proc *process.Process, keys []*vector.Vector, offset, count int,
	sketch *hyperloglog.Sketch) (groups []uint64, more int, err error) {

	before := tbl.hash.Cardinality()
	hashes := tbl.hashRows(keys, offset, count)
	if cap(tbl.groups) < count {
		tbl.groups = make([]uint64, count)
	}
	tbl.groups = tbl.groups[:count]

	mp := proc.Mp()
	for i, h := range hashes {
		row := offset + i
		group, inserted := tbl.hash.Insert(h, func(group uint64) bool {
			return keysEqual(tbl.keys, int(group-1), keys, row)
		})
		if inserted {
			for k, vec := range tbl.keys {
				if err = vec.UnionOne(keys[k], int64(row), mp); err != nil {
					return nil, 0, err
				}
			}
			if sketch != nil {
				sketch.Insert(hashBytes(h))
			}
		}
		tbl.groups[i] = group
	}
	return tbl.groups, int(tbl.hash.Cardinality() - before), nil
}

// popKeys hands the key columns over to the caller.
func (tbl *groupTable) popKeys() []*vector.Vector {
	keys := tbl.keys
	tbl.keys = nil
	return keys
}

func (tbl *groupTable) free(proc *process.Process) {
	freeVectors(tbl.keys, proc)
	tbl.keys = nil
	tbl.hash.Free()
}

// keyHash combines the hash of every key column of a row.  Null keys hash
// the same, so they fall into one group.
func keyHash(keys []*vector.Vector, row int) uint64 {
	switch len(keys) {
	case 0:
		return 0
	case 1:
		return keys[0].HashAt(row)
	}
	d := xxhash.New()
	var buf [8]byte
	for _, key := range keys {
		binary.LittleEndian.PutUint64(buf[:], key.HashAt(row))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

func keysEqual(left []*vector.Vector, i int, right []*vector.Vector, j int) bool {
	for k := range left {
		if !vector.EqualAt(left[k], i, right[k], j) {
			return false
		}
	}
	return true
}

func hashBytes(h uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h)
	return buf[:]
}
