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

package compare

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

func TestCompare_Set(t *testing.T) {
	c, err := New(types.T_date.ToType(), false, false)
	require.NoError(t, err)
	vec := vector.NewVec(types.T_date.ToType())
	c.Set(0, vec)
	require.Equal(t, vec, c.Vector())
}

func TestCompare_Compare(t *testing.T) {
	mp := mpool.MustNewZero()
	xs := vector.NewVec(types.T_date.ToType())
	require.NoError(t, vector.AppendFixedList(xs, []types.Date{5, 6, 0}, []bool{false, false, true}, mp))
	ys := vector.NewVec(types.T_date.ToType())
	require.NoError(t, vector.AppendFixedList(ys, []types.Date{7, 5, 3}, nil, mp))

	asc, err := New(types.T_date.ToType(), false, false)
	require.NoError(t, err)
	asc.Set(0, xs)
	asc.Set(1, ys)
	require.Equal(t, -1, asc.Compare(0, 1, 0, 0))
	require.Equal(t, 0, asc.Compare(0, 1, 0, 1))
	require.Equal(t, 1, asc.Compare(0, 1, 1, 2))
	// nulls last
	require.Equal(t, 1, asc.Compare(0, 1, 2, 0))
	require.Equal(t, 0, asc.Compare(0, 0, 2, 2))

	desc, err := New(types.T_date.ToType(), true, true)
	require.NoError(t, err)
	desc.Set(0, xs)
	desc.Set(1, ys)
	require.Equal(t, 1, desc.Compare(0, 1, 0, 0))
	// nulls first regardless of direction
	require.Equal(t, -1, desc.Compare(0, 1, 2, 0))
	require.Equal(t, 1, desc.Compare(1, 0, 0, 2))
}

func TestCompareStrings(t *testing.T) {
	mp := mpool.MustNewZero()
	v := vector.NewVec(types.T_varchar.ToType())
	require.NoError(t, vector.AppendStringList(v, []string{"apple", "banana", ""}, []bool{false, false, true}, mp))

	c, err := New(types.T_varchar.ToType(), false, true)
	require.NoError(t, err)
	c.Set(0, v)
	require.Equal(t, -1, c.Compare(0, 0, 0, 1))
	require.Equal(t, -1, c.Compare(0, 0, 2, 0))

	d, err := New(types.T_varchar.ToType(), true, false)
	require.NoError(t, err)
	d.Set(0, v)
	require.Equal(t, 1, d.Compare(0, 0, 0, 1))
	require.Equal(t, 1, d.Compare(0, 0, 2, 1))
}

func TestCompareFloatsAndConst(t *testing.T) {
	mp := mpool.MustNewZero()
	v := vector.NewVec(types.T_float64.ToType())
	require.NoError(t, vector.AppendFixedList(v, []float64{math.NaN(), 1, math.Inf(1)}, nil, mp))
	c, err := New(types.T_float64.ToType(), false, false)
	require.NoError(t, err)
	c.Set(0, v)
	require.Equal(t, 1, c.Compare(0, 0, 0, 2))
	require.Equal(t, -1, c.Compare(0, 0, 1, 0))
	require.Equal(t, 0, c.Compare(0, 0, 0, 0))

	k, err := vector.NewConstFixed(types.T_float64.ToType(), float64(1), 3, mp)
	require.NoError(t, err)
	c.Set(1, k)
	require.Equal(t, 0, c.Compare(0, 1, 1, 2))

	b, err := New(types.T_bool.ToType(), false, false)
	require.NoError(t, err)
	bv := vector.NewVec(types.T_bool.ToType())
	require.NoError(t, vector.AppendFixedList(bv, []bool{true, false}, nil, mp))
	b.Set(0, bv)
	require.Equal(t, 1, b.Compare(0, 0, 0, 1))

	_, err = New(types.NewArrayType(types.T_int8.ToType()), false, false)
	require.Error(t, err)
}
