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

// Package compare builds row comparators over vectors for sorting.
package compare

import (
	"bytes"
	"math"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

// Compare compares rows of up to two vectors registered with Set.  The
// result already accounts for direction and null placement, so callers
// only need to sort ascending by it.
type Compare interface {
	Vector() *vector.Vector
	Set(int, *vector.Vector)
	Compare(veci, vecj int, vi, vj int64) int
}

// New returns a comparator for typ.  Nulls sort before every value when
// nullsFirst is set and after every value otherwise, whatever desc says.
func New(typ types.Type, desc, nullsFirst bool) (Compare, error) {
	switch typ.Oid {
	case types.T_bool:
		return newCompare(desc, nullsFirst, boolCompare, vector.MustFixedCol[bool]), nil
	case types.T_int8:
		return newCompare(desc, nullsFirst, genericCompare[int8], vector.MustFixedCol[int8]), nil
	case types.T_int16:
		return newCompare(desc, nullsFirst, genericCompare[int16], vector.MustFixedCol[int16]), nil
	case types.T_int32:
		return newCompare(desc, nullsFirst, genericCompare[int32], vector.MustFixedCol[int32]), nil
	case types.T_int64:
		return newCompare(desc, nullsFirst, genericCompare[int64], vector.MustFixedCol[int64]), nil
	case types.T_uint8:
		return newCompare(desc, nullsFirst, genericCompare[uint8], vector.MustFixedCol[uint8]), nil
	case types.T_uint16:
		return newCompare(desc, nullsFirst, genericCompare[uint16], vector.MustFixedCol[uint16]), nil
	case types.T_uint32:
		return newCompare(desc, nullsFirst, genericCompare[uint32], vector.MustFixedCol[uint32]), nil
	case types.T_uint64:
		return newCompare(desc, nullsFirst, genericCompare[uint64], vector.MustFixedCol[uint64]), nil
	case types.T_float32:
		return newCompare(desc, nullsFirst, floatCompare[float32], vector.MustFixedCol[float32]), nil
	case types.T_float64:
		return newCompare(desc, nullsFirst, floatCompare[float64], vector.MustFixedCol[float64]), nil
	case types.T_date:
		return newCompare(desc, nullsFirst, genericCompare[types.Date], vector.MustFixedCol[types.Date]), nil
	case types.T_datetime:
		return newCompare(desc, nullsFirst, genericCompare[types.Datetime], vector.MustFixedCol[types.Datetime]), nil
	case types.T_char, types.T_varchar, types.T_text:
		return &strCompare{
			desc:       desc,
			nullsFirst: nullsFirst,
			vs:         make([]*vector.Vector, 2),
		}, nil
	}
	return nil, moerr.NewNotSupportedNoCtx("sort by %s", typ)
}

type compare[T any] struct {
	desc       bool
	nullsFirst bool
	cmp        func(T, T) int
	cols       func(*vector.Vector) []T
	xs         [][]T
	vs         []*vector.Vector
}

func newCompare[T any](desc, nullsFirst bool, cmp func(T, T) int, cols func(*vector.Vector) []T) *compare[T] {
	return &compare[T]{
		desc:       desc,
		nullsFirst: nullsFirst,
		cmp:        cmp,
		cols:       cols,
		xs:         make([][]T, 2),
		vs:         make([]*vector.Vector, 2),
	}
}

func (c *compare[T]) Vector() *vector.Vector {
	return c.vs[0]
}

func (c *compare[T]) Set(idx int, vec *vector.Vector) {
	c.vs[idx] = vec
	c.xs[idx] = c.cols(vec)
}

func (c *compare[T]) Compare(veci, vecj int, vi, vj int64) int {
	if r, ok := compareNulls(c.vs[veci], c.vs[vecj], vi, vj, c.nullsFirst); ok {
		return r
	}
	if c.vs[veci].IsConst() {
		vi = 0
	}
	if c.vs[vecj].IsConst() {
		vj = 0
	}
	r := c.cmp(c.xs[veci][vi], c.xs[vecj][vj])
	if c.desc {
		return -r
	}
	return r
}

type strCompare struct {
	desc       bool
	nullsFirst bool
	vs         []*vector.Vector
}

func (c *strCompare) Vector() *vector.Vector {
	return c.vs[0]
}

func (c *strCompare) Set(idx int, vec *vector.Vector) {
	c.vs[idx] = vec
}

func (c *strCompare) Compare(veci, vecj int, vi, vj int64) int {
	if r, ok := compareNulls(c.vs[veci], c.vs[vecj], vi, vj, c.nullsFirst); ok {
		return r
	}
	r := bytes.Compare(c.vs[veci].GetBytesAt(int(vi)), c.vs[vecj].GetBytesAt(int(vj)))
	if c.desc {
		return -r
	}
	return r
}

func compareNulls(v, w *vector.Vector, vi, vj int64, nullsFirst bool) (int, bool) {
	vnull, wnull := v.IsNull(uint64(vi)), w.IsNull(uint64(vj))
	switch {
	case vnull && wnull:
		return 0, true
	case vnull:
		if nullsFirst {
			return -1, true
		}
		return 1, true
	case wnull:
		if nullsFirst {
			return 1, true
		}
		return -1, true
	}
	return 0, false
}

func genericCompare[T types.OrderedT](a, b T) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// floatCompare orders NaN after every other value so the order is total.
func floatCompare[T types.Floats](a, b T) int {
	aNaN, bNaN := math.IsNaN(float64(a)), math.IsNaN(float64(b))
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	return genericCompare(a, b)
}

func boolCompare(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}
