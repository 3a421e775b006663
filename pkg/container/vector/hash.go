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

package vector

import (
	"bytes"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/matrixorigin/arrayagg/pkg/container/types"
)

// nullHash is the hash of every null cell.
const nullHash uint64 = 0x9e3779b97f4a7c15

// HashAt returns a hash of row i that is stable across vectors of the same
// type: equal cells (EqualAt) hash equally.
func (v *Vector) HashAt(i int) uint64 {
	if v.class == CONSTANT {
		i = 0
	}
	if v.IsNull(uint64(i)) {
		return nullHash
	}
	switch v.typ.Oid {
	case types.T_array:
		start, end := v.ArrayRange(i)
		d := xxhash.New()
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(end-start))
		_, _ = d.Write(buf[:])
		elems := v.children[0]
		for j := start; j < end; j++ {
			binary.LittleEndian.PutUint64(buf[:], elems.HashAt(j))
			_, _ = d.Write(buf[:])
		}
		return d.Sum64()
	case types.T_struct:
		d := xxhash.New()
		var buf [8]byte
		for _, f := range v.children {
			binary.LittleEndian.PutUint64(buf[:], f.HashAt(i))
			_, _ = d.Write(buf[:])
		}
		return d.Sum64()
	}
	if v.typ.IsVarlen() {
		return xxhash.Sum64(v.GetBytesAt(i))
	}
	return xxhash.Sum64(v.rawAt(i))
}

// Hashes returns HashAt of every row.
func (v *Vector) Hashes() []uint64 {
	hs := make([]uint64, v.length)
	for i := range hs {
		hs[i] = v.HashAt(i)
	}
	return hs
}

// EqualAt compares v[i] with w[j].  Two nulls are equal, which is what
// duplicate elimination wants.
func EqualAt(v *Vector, i int, w *Vector, j int) bool {
	if v.class == CONSTANT {
		i = 0
	}
	if w.class == CONSTANT {
		j = 0
	}
	vnull, wnull := v.IsNull(uint64(i)), w.IsNull(uint64(j))
	if vnull || wnull {
		return vnull && wnull
	}
	switch v.typ.Oid {
	case types.T_array:
		vs, ve := v.ArrayRange(i)
		ws, we := w.ArrayRange(j)
		if ve-vs != we-ws {
			return false
		}
		for k := 0; k < ve-vs; k++ {
			if !EqualAt(v.children[0], vs+k, w.children[0], ws+k) {
				return false
			}
		}
		return true
	case types.T_struct:
		for k := range v.children {
			if !EqualAt(v.children[k], i, w.children[k], j) {
				return false
			}
		}
		return true
	}
	if v.typ.IsVarlen() {
		return bytes.Equal(v.GetBytesAt(i), w.GetBytesAt(j))
	}
	return bytes.Equal(v.rawAt(i), w.rawAt(j))
}
