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
	"unsafe"

	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
)

// Varlena locates a variable length value inside a vector's area.
type Varlena struct {
	Offset uint32
	Length uint32
}

const VarlenaSize = int(unsafe.Sizeof(Varlena{}))

func (v Varlena) GetByteSlice(area []byte) []byte {
	end := v.Offset + v.Length
	return area[v.Offset:end:end]
}

func (v Varlena) GetString(area []byte) string {
	return string(v.GetByteSlice(area))
}

// BuildVarlena appends bs to area, growing it through m, and returns the
// descriptor together with the possibly moved area.
func BuildVarlena(bs []byte, area []byte, m *mpool.MPool) (Varlena, []byte, error) {
	var err error
	voff := len(area)
	if len(bs) > 0 {
		area, err = m.Grow(area, voff+len(bs))
		if err != nil {
			return Varlena{}, nil, err
		}
		copy(area[voff:], bs)
	}
	return Varlena{Offset: uint32(voff), Length: uint32(len(bs))}, area, nil
}
