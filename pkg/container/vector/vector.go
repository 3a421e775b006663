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
	"fmt"
	"unsafe"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/nulls"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
)

const (
	FLAT     = iota // flat vector represent a uncompressed vector
	CONSTANT        // const vector
)

// Vector represent a column
type Vector struct {
	// vector's class
	class int
	// type represent the type of column
	typ types.Type
	nsp *nulls.Nulls // nulls list

	// data of fixed length element, in case of varlen, the Varlena, in
	// case of array, the end offset of each row into the element vector.
	col  any
	data []byte

	// area for holding large strings.
	area []byte

	length int

	// element vector of an array, field vectors of a struct
	children []*Vector
}

// NewVec returns an empty flat vector of typ.  Nested types get their
// child vectors built recursively.
func NewVec(typ types.Type) *Vector {
	vec := &Vector{
		typ:   typ,
		class: FLAT,
		nsp:   &nulls.Nulls{},
	}
	switch typ.Oid {
	case types.T_array:
		vec.children = []*Vector{NewVec(typ.Elem())}
	case types.T_struct:
		fields := typ.Fields()
		vec.children = make([]*Vector, len(fields))
		for i := range fields {
			vec.children[i] = NewVec(fields[i])
		}
	}
	return vec
}

func NewConstNull(typ types.Type, length int, m *mpool.MPool) *Vector {
	vec := &Vector{
		typ:    typ,
		class:  CONSTANT,
		nsp:    &nulls.Nulls{},
		length: length,
	}
	nulls.Add(vec.nsp, 0)
	return vec
}

func NewConstFixed[T any](typ types.Type, val T, length int, m *mpool.MPool) (*Vector, error) {
	vec := NewVec(typ)
	vec.class = CONSTANT
	if err := extend(vec, 1, m); err != nil {
		return nil, err
	}
	vec.col.([]T)[0] = val
	vec.length = length
	return vec, nil
}

func NewConstBytes(typ types.Type, val []byte, length int, m *mpool.MPool) (*Vector, error) {
	vec := NewVec(typ)
	vec.class = CONSTANT
	if err := extend(vec, 1, m); err != nil {
		return nil, err
	}
	va, area, err := types.BuildVarlena(val, vec.area, m)
	if err != nil {
		return nil, err
	}
	vec.area = area
	vec.col.([]types.Varlena)[0] = va
	vec.length = length
	return vec, nil
}

func (v *Vector) Length() int {
	return v.length
}

func (v *Vector) GetType() *types.Type {
	return &v.typ
}

func (v *Vector) GetNulls() *nulls.Nulls {
	return v.nsp
}

func (v *Vector) IsConst() bool {
	return v.class == CONSTANT
}

func (v *Vector) IsConstNull() bool {
	return v.class == CONSTANT && nulls.Contains(v.nsp, 0)
}

// IsNull reports whether row i is null.  Constant vectors answer for
// every row with their single value.
func (v *Vector) IsNull(i uint64) bool {
	if v.class == CONSTANT {
		return nulls.Contains(v.nsp, 0)
	}
	return nulls.Contains(v.nsp, i)
}

// AllNull reports a vector that holds no value at all, the "only null"
// column of other engines.
func (v *Vector) AllNull() bool {
	if v.class == CONSTANT {
		return v.IsConstNull()
	}
	return v.length > 0 && nulls.Length(v.nsp) == v.length
}

// Size is the number of bytes held by the vector and its children.
func (v *Vector) Size() int {
	sz := cap(v.data) + cap(v.area) + nulls.Size(v.nsp)
	for _, c := range v.children {
		sz += c.Size()
	}
	return sz
}

// MustFixedCol returns the values of a fixed width vector.  A constant
// vector returns its single value.
func MustFixedCol[T any](v *Vector) []T {
	if v.col == nil {
		return nil
	}
	if v.class == CONSTANT {
		if v.IsConstNull() {
			return nil
		}
		return v.col.([]T)[:1]
	}
	return v.col.([]T)[:v.length]
}

func GetFixedAt[T any](v *Vector, idx int) T {
	if v.class == CONSTANT {
		idx = 0
	}
	return v.col.([]T)[idx]
}

func (v *Vector) GetBytesAt(i int) []byte {
	if v.class == CONSTANT {
		i = 0
	}
	return v.col.([]types.Varlena)[i].GetByteSlice(v.area)
}

func (v *Vector) GetStringAt(i int) string {
	return string(v.GetBytesAt(i))
}

// elemSize is the number of data bytes one row takes.
func (v *Vector) elemSize() int {
	switch {
	case v.typ.Oid == types.T_array:
		return 4
	case v.typ.IsVarlen():
		return types.VarlenaSize
	default:
		return v.typ.TypeSize()
	}
}

// rawAt returns the data bytes of row i of a fixed width or varlen vector.
func (v *Vector) rawAt(i int) []byte {
	sz := v.elemSize()
	return v.data[i*sz : (i+1)*sz]
}

func extend(v *Vector, rows int, m *mpool.MPool) error {
	sz := v.elemSize()
	if sz == 0 {
		return nil
	}
	need := (v.length + rows) * sz
	if need <= cap(v.data) && v.col != nil {
		return nil
	}
	data, err := m.Grow(v.data, need)
	if err != nil {
		return err
	}
	v.data = data[:cap(data)]
	v.setupCol()
	return nil
}

func (v *Vector) setupCol() {
	switch v.typ.Oid {
	case types.T_bool:
		v.col = toSlice[bool](v.data)
	case types.T_int8:
		v.col = toSlice[int8](v.data)
	case types.T_int16:
		v.col = toSlice[int16](v.data)
	case types.T_int32:
		v.col = toSlice[int32](v.data)
	case types.T_int64:
		v.col = toSlice[int64](v.data)
	case types.T_uint8:
		v.col = toSlice[uint8](v.data)
	case types.T_uint16:
		v.col = toSlice[uint16](v.data)
	case types.T_uint32, types.T_array:
		v.col = toSlice[uint32](v.data)
	case types.T_uint64:
		v.col = toSlice[uint64](v.data)
	case types.T_float32:
		v.col = toSlice[float32](v.data)
	case types.T_float64:
		v.col = toSlice[float64](v.data)
	case types.T_date:
		v.col = toSlice[types.Date](v.data)
	case types.T_datetime:
		v.col = toSlice[types.Datetime](v.data)
	case types.T_char, types.T_varchar, types.T_text:
		v.col = toSlice[types.Varlena](v.data)
	default:
		panic(fmt.Sprintf("unexpect type %s for function vector.setupCol", v.typ))
	}
}

func toSlice[T any](data []byte) []T {
	var zero T
	sz := int(unsafe.Sizeof(zero))
	if cap(data) < sz {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&data[:1][0])), cap(data)/sz)
}

func (v *Vector) checkFlat() error {
	if v.class != FLAT {
		return moerr.NewInternalErrorNoCtx("append to const vector of %s", v.typ)
	}
	return nil
}

// Reset empties the vector but keeps its buffers.
func (v *Vector) Reset() {
	if v.class == CONSTANT {
		v.class = FLAT
		v.col = nil
		v.data = v.data[:0]
	}
	v.length = 0
	v.area = v.area[:0]
	nulls.Reset(v.nsp)
	for _, c := range v.children {
		c.Reset()
	}
}

func (v *Vector) Free(m *mpool.MPool) {
	m.Free(v.data)
	m.Free(v.area)
	for _, c := range v.children {
		c.Free(m)
	}
	v.data = nil
	v.area = nil
	v.col = nil
	v.length = 0
	nulls.Reset(v.nsp)
}

func AppendFixed[T any](vec *Vector, val T, isNull bool, m *mpool.MPool) error {
	if err := vec.checkFlat(); err != nil {
		return err
	}
	if err := extend(vec, 1, m); err != nil {
		return err
	}
	length := vec.length
	vec.length++
	if isNull {
		nulls.Add(vec.nsp, uint64(length))
	} else {
		vec.col.([]T)[length] = val
	}
	return nil
}

func AppendBytes(vec *Vector, val []byte, isNull bool, m *mpool.MPool) error {
	if isNull {
		return AppendFixed(vec, types.Varlena{}, true, m)
	}
	va, area, err := types.BuildVarlena(val, vec.area, m)
	if err != nil {
		return err
	}
	vec.area = area
	return AppendFixed(vec, va, false, m)
}

func AppendMultiFixed[T any](vec *Vector, val T, isNull bool, cnt int, m *mpool.MPool) error {
	if err := vec.checkFlat(); err != nil {
		return err
	}
	if err := extend(vec, cnt, m); err != nil {
		return err
	}
	length := vec.length
	vec.length += cnt
	if isNull {
		nulls.AddRange(vec.nsp, uint64(length), uint64(length+cnt))
		return nil
	}
	col := vec.col.([]T)
	for i := 0; i < cnt; i++ {
		col[length+i] = val
	}
	return nil
}

func AppendFixedList[T any](vec *Vector, vals []T, isNulls []bool, m *mpool.MPool) error {
	if err := vec.checkFlat(); err != nil {
		return err
	}
	if err := extend(vec, len(vals), m); err != nil {
		return err
	}
	length := vec.length
	vec.length += len(vals)
	col := vec.col.([]T)
	for i, w := range vals {
		if len(isNulls) > 0 && isNulls[i] {
			nulls.Add(vec.nsp, uint64(length+i))
		} else {
			col[length+i] = w
		}
	}
	return nil
}

func AppendBytesList(vec *Vector, vals [][]byte, isNulls []bool, m *mpool.MPool) error {
	for i, w := range vals {
		if err := AppendBytes(vec, w, len(isNulls) > 0 && isNulls[i], m); err != nil {
			return err
		}
	}
	return nil
}

func AppendStringList(vec *Vector, vals []string, isNulls []bool, m *mpool.MPool) error {
	for i, w := range vals {
		if err := AppendBytes(vec, []byte(w), len(isNulls) > 0 && isNulls[i], m); err != nil {
			return err
		}
	}
	return nil
}

// AppendNulls appends cnt null rows to a vector of any type.
func AppendNulls(vec *Vector, cnt int, m *mpool.MPool) error {
	if cnt <= 0 {
		return nil
	}
	if err := vec.checkFlat(); err != nil {
		return err
	}
	length := vec.length
	switch vec.typ.Oid {
	case types.T_array:
		if err := extend(vec, cnt, m); err != nil {
			return err
		}
		ends := vec.col.([]uint32)
		end := uint32(vec.children[0].length)
		for i := 0; i < cnt; i++ {
			ends[length+i] = end
		}
	case types.T_struct:
		for _, f := range vec.children {
			if err := AppendNulls(f, cnt, m); err != nil {
				return err
			}
		}
	default:
		if err := extend(vec, cnt, m); err != nil {
			return err
		}
		if vec.typ.IsVarlen() {
			col := vec.col.([]types.Varlena)
			for i := 0; i < cnt; i++ {
				col[length+i] = types.Varlena{}
			}
		}
	}
	vec.length += cnt
	nulls.AddRange(vec.nsp, uint64(length), uint64(length+cnt))
	return nil
}

// AppendDefault appends the placeholder row used when a value could not
// be produced.
func AppendDefault(vec *Vector, m *mpool.MPool) error {
	return AppendNulls(vec, 1, m)
}
