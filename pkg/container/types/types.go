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

package types

import (
	"fmt"
	"strings"

	"golang.org/x/exp/constraints"
)

type T uint8

const (
	// any family
	T_any T = 0

	// bool family
	T_bool T = 10

	// numeric/integer family
	T_int8   T = 20
	T_int16  T = 21
	T_int32  T = 22
	T_int64  T = 23
	T_uint8  T = 25
	T_uint16 T = 26
	T_uint32 T = 27
	T_uint64 T = 28

	// numeric/float family
	T_float32 T = 30
	T_float64 T = 31

	// date family
	T_date     T = 50
	T_datetime T = 52

	// string family
	T_char    T = 60
	T_varchar T = 61
	T_text    T = 62

	// nested family
	T_array  T = 80
	T_struct T = 81
)

// Type describes a column.  Nested types carry their children: one element
// type for an array, one type per field for a struct.
type Type struct {
	Oid T

	// Size of a fixed width value, 0 for varlen and nested types.
	Size  int32
	Width int32
	Scale int32

	children []Type
}

// Ints are the fixed width numeric types a vector may hold.
type Ints interface {
	int8 | int16 | int32 | int64
}

type UInts interface {
	uint8 | uint16 | uint32 | uint64
}

type Floats interface {
	float32 | float64
}

type Number interface {
	Ints | UInts | Floats
}

// FixedSizeT is every Go type backing a fixed width column.
type FixedSizeT interface {
	bool | Number | Date | Datetime
}

// OrderedT is the subset of FixedSizeT with a native order, Date and
// Datetime included.
type OrderedT interface {
	constraints.Integer | constraints.Float
}

var Types = map[string]T{
	"bool": T_bool,

	"tinyint":  T_int8,
	"smallint": T_int16,
	"int":      T_int32,
	"integer":  T_int32,
	"bigint":   T_int64,

	"tinyint unsigned":  T_uint8,
	"smallint unsigned": T_uint16,
	"int unsigned":      T_uint32,
	"integer unsigned":  T_uint32,
	"bigint unsigned":   T_uint64,

	"float":  T_float32,
	"double": T_float64,

	"date":     T_date,
	"datetime": T_datetime,

	"char":    T_char,
	"varchar": T_varchar,
	"text":    T_text,
}

func New(oid T, width, scale int32) Type {
	return Type{
		Oid:   oid,
		Size:  int32(TypeSize(oid)),
		Width: width,
		Scale: scale,
	}
}

// NewArrayType returns array<elem>.
func NewArrayType(elem Type) Type {
	return Type{Oid: T_array, children: []Type{elem}}
}

// NewStructType returns struct<fields...>.
func NewStructType(fields ...Type) Type {
	return Type{Oid: T_struct, children: append([]Type(nil), fields...)}
}

func (t T) ToType() Type {
	return New(t, 0, 0)
}

// Elem is the element type of an array type.
func (t Type) Elem() Type {
	if t.Oid != T_array || len(t.children) != 1 {
		panic(fmt.Sprintf("Elem on non array type %s", t))
	}
	return t.children[0]
}

// Fields are the field types of a struct type.
func (t Type) Fields() []Type {
	if t.Oid != T_struct {
		panic(fmt.Sprintf("Fields on non struct type %s", t))
	}
	return t.children
}

func (t Type) IsFixedLen() bool {
	return TypeSize(t.Oid) > 0
}

func (t Type) IsVarlen() bool {
	return t.Oid.IsVarlen()
}

func (t Type) IsNested() bool {
	return t.Oid == T_array || t.Oid == T_struct
}

func (t Type) TypeSize() int {
	return TypeSize(t.Oid)
}

// Eq compares two types including their children.
func (t Type) Eq(b Type) bool {
	if t.Oid != b.Oid || t.Width != b.Width || t.Scale != b.Scale {
		return false
	}
	if len(t.children) != len(b.children) {
		return false
	}
	for i := range t.children {
		if !t.children[i].Eq(b.children[i]) {
			return false
		}
	}
	return true
}

func (t Type) String() string {
	switch t.Oid {
	case T_array:
		if len(t.children) == 1 {
			return fmt.Sprintf("ARRAY<%s>", t.children[0])
		}
		return "ARRAY"
	case T_struct:
		names := make([]string, len(t.children))
		for i := range t.children {
			names[i] = t.children[i].String()
		}
		return fmt.Sprintf("STRUCT<%s>", strings.Join(names, ", "))
	}
	return t.Oid.String()
}

func (t T) IsVarlen() bool {
	switch t {
	case T_char, T_varchar, T_text:
		return true
	}
	return false
}

func (t T) String() string {
	switch t {
	case T_any:
		return "ANY"
	case T_bool:
		return "BOOL"
	case T_int8:
		return "TINYINT"
	case T_int16:
		return "SMALLINT"
	case T_int32:
		return "INT"
	case T_int64:
		return "BIGINT"
	case T_uint8:
		return "TINYINT UNSIGNED"
	case T_uint16:
		return "SMALLINT UNSIGNED"
	case T_uint32:
		return "INT UNSIGNED"
	case T_uint64:
		return "BIGINT UNSIGNED"
	case T_float32:
		return "FLOAT"
	case T_float64:
		return "DOUBLE"
	case T_date:
		return "DATE"
	case T_datetime:
		return "DATETIME"
	case T_char:
		return "CHAR"
	case T_varchar:
		return "VARCHAR"
	case T_text:
		return "TEXT"
	case T_array:
		return "ARRAY"
	case T_struct:
		return "STRUCT"
	}
	return fmt.Sprintf("unexpected type: %d", t)
}

// TypeSize is the byte width of a fixed width value, 0 otherwise.
func TypeSize(oid T) int {
	switch oid {
	case T_bool, T_int8, T_uint8:
		return 1
	case T_int16, T_uint16:
		return 2
	case T_int32, T_uint32, T_float32, T_date:
		return 4
	case T_int64, T_uint64, T_float64, T_datetime:
		return 8
	}
	return 0
}
