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
	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/nulls"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
)

// UnionOne appends w[sel] to v.
func (v *Vector) UnionOne(w *Vector, sel int64, m *mpool.MPool) error {
	if err := v.checkFlat(); err != nil {
		return err
	}
	if w.class == CONSTANT {
		sel = 0
	}
	if w.IsNull(uint64(sel)) {
		return AppendNulls(v, 1, m)
	}
	switch v.typ.Oid {
	case types.T_array:
		start, end := w.ArrayRange(int(sel))
		return AppendArrayRange(v, w.children[0], int64(start), end-start, m)
	case types.T_struct:
		for i, f := range v.children {
			if err := f.UnionOne(w.children[i], sel, m); err != nil {
				return err
			}
		}
		return AppendStructRow(v, false, m)
	}
	if v.typ.IsVarlen() {
		return AppendBytes(v, w.GetBytesAt(int(sel)), false, m)
	}
	if err := extend(v, 1, m); err != nil {
		return err
	}
	copy(v.rawAt(v.length), w.rawAt(int(sel)))
	v.length++
	return nil
}

// UnionBatch appends w[offset, offset+cnt) to v.  When flags is not nil
// only rows whose flag is set are appended.
func (v *Vector) UnionBatch(w *Vector, offset int64, cnt int, flags []uint8, m *mpool.MPool) error {
	if cnt <= 0 {
		return nil
	}
	if err := v.checkFlat(); err != nil {
		return err
	}
	if int(offset)+cnt > w.length {
		return moerr.NewInternalErrorNoCtx("union rows [%d, %d) of a vector of length %d", offset, int(offset)+cnt, w.length)
	}
	if flags == nil && w.class == FLAT && v.typ.IsFixedLen() {
		if err := extend(v, cnt, m); err != nil {
			return err
		}
		sz := v.elemSize()
		copy(v.data[v.length*sz:(v.length+cnt)*sz], w.data[int(offset)*sz:(int(offset)+cnt)*sz])
		nulls.Range(w.nsp, uint64(offset), uint64(offset)+uint64(cnt), uint64(v.length), v.nsp)
		v.length += cnt
		return nil
	}
	if flags == nil && w.IsConstNull() {
		return AppendNulls(v, cnt, m)
	}
	for i := 0; i < cnt; i++ {
		if flags != nil && flags[i] == 0 {
			continue
		}
		if err := v.UnionOne(w, offset+int64(i), m); err != nil {
			return err
		}
	}
	return nil
}

// Shuffle reorders the vector so that row i becomes the old row sels[i].
// sels can be disordered and may select a subset.
func (v *Vector) Shuffle(sels []int64, m *mpool.MPool) error {
	if v.class == CONSTANT {
		v.length = len(sels)
		return nil
	}
	if v.typ.IsNested() {
		return v.rebuild(sels, m)
	}
	sz := v.elemSize()
	data, err := m.Alloc(len(sels) * sz)
	if err != nil {
		return err
	}
	for i, sel := range sels {
		copy(data[i*sz:(i+1)*sz], v.rawAt(int(sel)))
	}
	nulls.Filter(v.nsp, sels)
	m.Free(v.data)
	v.data = data[:cap(data)]
	v.length = len(sels)
	if len(data) > 0 {
		v.setupCol()
	} else {
		v.col = nil
	}
	return nil
}

// Shrink keeps the rows in sels, which must be ordered.
func (v *Vector) Shrink(sels []int64, m *mpool.MPool) error {
	if v.class == CONSTANT {
		v.length = len(sels)
		return nil
	}
	if v.typ.IsNested() {
		return v.rebuild(sels, m)
	}
	for i, sel := range sels {
		if int(sel) != i {
			copy(v.rawAt(i), v.rawAt(int(sel)))
		}
	}
	nulls.Filter(v.nsp, sels)
	v.length = len(sels)
	return nil
}

func (v *Vector) rebuild(sels []int64, m *mpool.MPool) error {
	w := NewVec(v.typ)
	for _, sel := range sels {
		if err := w.UnionOne(v, sel, m); err != nil {
			w.Free(m)
			return err
		}
	}
	v.Free(m)
	*v = *w
	return nil
}

// Dup returns a deep copy of the vector.
func (v *Vector) Dup(m *mpool.MPool) (*Vector, error) {
	if v.IsConstNull() {
		return NewConstNull(v.typ, v.Length(), m), nil
	}
	if v.class == CONSTANT {
		w := NewVec(v.typ)
		if err := w.UnionOne(v, 0, m); err != nil {
			return nil, err
		}
		w.class = CONSTANT
		w.length = v.length
		return w, nil
	}
	w := NewVec(v.typ)
	if err := w.UnionBatch(v, 0, v.length, nil, m); err != nil {
		w.Free(m)
		return nil, err
	}
	return w, nil
}
