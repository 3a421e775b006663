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

package batch

import (
	"bytes"
	"fmt"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

// Batch represents a part of a relationship
//
//	(Attrs) - list of attributes
//	(Vecs)  - columns
type Batch struct {
	// Attrs column name list
	Attrs []string
	// Vecs col data
	Vecs []*vector.Vector

	rowCount int
}

var EmptyBatch = &Batch{rowCount: 0}

func New(attrs []string) *Batch {
	return &Batch{
		Attrs: attrs,
		Vecs:  make([]*vector.Vector, len(attrs)),
	}
}

func NewWithSize(n int) *Batch {
	return &Batch{
		Vecs: make([]*vector.Vector, n),
	}
}

func (bat *Batch) RowCount() int {
	return bat.rowCount
}

func (bat *Batch) SetRowCount(n int) {
	bat.rowCount = n
}

func (bat *Batch) GetVector(pos int32) *vector.Vector {
	return bat.Vecs[pos]
}

func (bat *Batch) SetVector(pos int32, vec *vector.Vector) {
	bat.Vecs[pos] = vec
}

// Validate checks that every column holds RowCount rows.
func (bat *Batch) Validate() error {
	for i, vec := range bat.Vecs {
		if vec == nil {
			return moerr.NewInvalidStateNoCtx("column %d of batch is nil", i)
		}
		if vec.Length() != bat.rowCount {
			return moerr.NewSizeNotMatch(moerr.Context(),
				fmt.Sprintf("column %d has %d rows, batch has %d", i, vec.Length(), bat.rowCount))
		}
	}
	return nil
}

func (bat *Batch) Size() int {
	var size int
	for _, vec := range bat.Vecs {
		if vec != nil {
			size += vec.Size()
		}
	}
	return size
}

// Shrink keeps the rows in sels, in order, for every column.
func (bat *Batch) Shrink(sels []int64, m *mpool.MPool) error {
	for _, vec := range bat.Vecs {
		if err := vec.Shrink(sels, m); err != nil {
			return err
		}
	}
	bat.rowCount = len(sels)
	return nil
}

func (bat *Batch) Clean(m *mpool.MPool) {
	if bat == EmptyBatch {
		return
	}
	for _, vec := range bat.Vecs {
		if vec != nil {
			vec.Free(m)
		}
	}
	bat.Vecs = nil
	bat.rowCount = 0
}

func (bat *Batch) String() string {
	var buf bytes.Buffer

	for i, vec := range bat.Vecs {
		name := ""
		if i < len(bat.Attrs) {
			name = bat.Attrs[i]
		}
		buf.WriteString(fmt.Sprintf("%d %s: %s\n", i, name, vec))
	}
	return buf.String()
}
