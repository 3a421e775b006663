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
	"fmt"

	"github.com/matrixorigin/arrayagg/pkg/container/types"
)

// String function is used to visually display the vector,
// which is used to implement the Printf interface
func (v *Vector) String() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < v.length; i++ {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(v.RowString(i))
	}
	buf.WriteByte(']')
	return buf.String()
}

// RowString renders one cell.
func (v *Vector) RowString(i int) string {
	if v.IsNull(uint64(i)) {
		return "null"
	}
	switch v.typ.Oid {
	case types.T_bool:
		return types.FormatValue(GetFixedAt[bool](v, i))
	case types.T_int8:
		return types.FormatValue(GetFixedAt[int8](v, i))
	case types.T_int16:
		return types.FormatValue(GetFixedAt[int16](v, i))
	case types.T_int32:
		return types.FormatValue(GetFixedAt[int32](v, i))
	case types.T_int64:
		return types.FormatValue(GetFixedAt[int64](v, i))
	case types.T_uint8:
		return types.FormatValue(GetFixedAt[uint8](v, i))
	case types.T_uint16:
		return types.FormatValue(GetFixedAt[uint16](v, i))
	case types.T_uint32:
		return types.FormatValue(GetFixedAt[uint32](v, i))
	case types.T_uint64:
		return types.FormatValue(GetFixedAt[uint64](v, i))
	case types.T_float32:
		return types.FormatValue(GetFixedAt[float32](v, i))
	case types.T_float64:
		return types.FormatValue(GetFixedAt[float64](v, i))
	case types.T_date:
		return types.FormatValue(GetFixedAt[types.Date](v, i))
	case types.T_datetime:
		return types.FormatValue(GetFixedAt[types.Datetime](v, i))
	case types.T_char, types.T_varchar, types.T_text:
		return v.GetStringAt(i)
	case types.T_array:
		var buf bytes.Buffer
		start, end := v.ArrayRange(i)
		buf.WriteByte('[')
		for j := start; j < end; j++ {
			if j > start {
				buf.WriteByte(',')
			}
			buf.WriteString(v.children[0].RowString(j))
		}
		buf.WriteByte(']')
		return buf.String()
	case types.T_struct:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for k, f := range v.children {
			if k > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(f.RowString(i))
		}
		buf.WriteByte('}')
		return buf.String()
	}
	panic(fmt.Sprintf("unexpect type %s for function vector.String", v.typ))
}
