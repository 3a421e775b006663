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

// ArrayElements is the element vector of an array vector.  Row i owns the
// elements in [ArrayRange(i)).
func (v *Vector) ArrayElements() *Vector {
	return v.children[0]
}

func (v *Vector) ArrayRange(i int) (start, end int) {
	ends := v.col.([]uint32)
	if i > 0 {
		start = int(ends[i-1])
	}
	return start, int(ends[i])
}

// StructFields are the row aligned field vectors of a struct vector.
func (v *Vector) StructFields() []*Vector {
	return v.children
}

// AppendArrayRow closes an array row made of every element appended to the
// element vector since the previous row.
func AppendArrayRow(vec *Vector, isNull bool, m *mpool.MPool) error {
	if vec.typ.Oid != types.T_array {
		return moerr.NewInternalErrorNoCtx("append array row to %s", vec.typ)
	}
	if err := vec.checkFlat(); err != nil {
		return err
	}
	if err := extend(vec, 1, m); err != nil {
		return err
	}
	vec.col.([]uint32)[vec.length] = uint32(vec.children[0].length)
	if isNull {
		nulls.Add(vec.nsp, uint64(vec.length))
	}
	vec.length++
	return nil
}

// AppendArrayRange appends one array row whose elements are
// src[offset, offset+cnt).
func AppendArrayRange(vec *Vector, src *Vector, offset int64, cnt int, m *mpool.MPool) error {
	if err := vec.children[0].UnionBatch(src, offset, cnt, nil, m); err != nil {
		return err
	}
	return AppendArrayRow(vec, false, m)
}

// AppendArrayElement appends one array row made of data followed by
// nullCount null elements.
func AppendArrayElement(vec *Vector, data *Vector, nullCount int, m *mpool.MPool) error {
	elems := vec.children[0]
	if data != nil && data.Length() > 0 {
		if err := elems.UnionBatch(data, 0, data.Length(), nil, m); err != nil {
			return err
		}
	}
	if err := AppendNulls(elems, nullCount, m); err != nil {
		return err
	}
	return AppendArrayRow(vec, false, m)
}

// AppendStructRow closes a struct row whose fields were appended by the
// caller.  A null row appends nulls to every field.
func AppendStructRow(vec *Vector, isNull bool, m *mpool.MPool) error {
	if vec.typ.Oid != types.T_struct {
		return moerr.NewInternalErrorNoCtx("append struct row to %s", vec.typ)
	}
	if isNull {
		return AppendNulls(vec, 1, m)
	}
	for _, f := range vec.children {
		if f.length != vec.length+1 {
			return moerr.NewSizeNotMatch(moerr.Context(), "struct field is not aligned with its row")
		}
	}
	vec.length++
	return nil
}
