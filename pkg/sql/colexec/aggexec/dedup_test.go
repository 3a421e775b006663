// Copyright 2024 Matrix Origin
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

package aggexec

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
	"github.com/matrixorigin/arrayagg/pkg/testutil"
)

func TestDedupStrategiesAgree(t *testing.T) {
	proc, mp := newTestProc(t)
	r := rand.New(rand.NewSource(11))

	n := 3000
	vs := make([]string, n)
	var nullRows []int
	for i := range vs {
		vs[i] = strings.Repeat("k", r.Intn(40))
		if r.Intn(50) == 0 {
			nullRows = append(nullRows, i)
		}
	}

	var results []string
	for _, threshold := range []int{1, n, defaultDedupHashIndexThreshold} {
		fc := newFunctionContext(proc, nameArrayAggOrdered,
			AggSpec{ArgTypes: []types.Type{varcharType}, Distinct: true, DedupHashIndexThreshold: threshold})
		vec := testutil.NewNullableStringVector(mp, vs, nullRows...)
		require.NoError(t, dedup(fc, vec, mp))
		results = append(results, vec.String())
		vec.Free(mp)
	}
	require.Equal(t, results[0], results[1])
	require.Equal(t, results[0], results[2])
}

func TestDedupFirstOccurrenceWins(t *testing.T) {
	proc, mp := newTestProc(t)
	for _, threshold := range []int{1, 100} {
		fc := newFunctionContext(proc, nameArrayAggOrdered,
			AggSpec{ArgTypes: []types.Type{int64Type}, Distinct: true, DedupHashIndexThreshold: threshold})
		vec := testutil.NewNullableInt64Vector(mp, []int64{3, 1, 0, 3, 2, 1, 0}, 2, 6)
		require.NoError(t, dedup(fc, vec, mp))
		require.Equal(t, "[3 1 null 2]", vec.String())
		vec.Free(mp)
	}
}

func TestSortAndDedupSingleColumn(t *testing.T) {
	proc, mp := newTestProc(t)
	fc := newFunctionContext(proc, nameArrayAggOrdered, AggSpec{ArgTypes: []types.Type{int64Type}})
	vec := testutil.NewInt64Vector(3, int64Type, mp, false, []int64{2, 2, 1})
	// without order by keys the arrival order is kept
	values, err := sortAndDedup(fc, []*vector.Vector{vec})
	require.NoError(t, err)
	require.Equal(t, "[2 2 1]", values.String())

	fc.isDistinct = true
	values, err = sortAndDedup(fc, []*vector.Vector{vec})
	require.NoError(t, err)
	require.Equal(t, "[2 1]", values.String())
	vec.Free(mp)
}

func TestDistinctSet(t *testing.T) {
	_, mp := newTestProc(t)

	fixed, err := newDistinctSet(types.T_float64.ToType(), mp)
	require.NoError(t, err)
	vec := testutil.NewFloat64Vector(4, types.T_float64.ToType(), mp, false, []float64{1.5, 2, 1.5, 0})
	for i, want := range []bool{true, true, false, true} {
		added, err := fixed.insert(vec, i)
		require.NoError(t, err)
		require.Equal(t, want, added)
	}
	require.Equal(t, 3, fixed.size())
	out := vector.NewVec(types.T_float64.ToType())
	require.NoError(t, fixed.materialize(out, 1, mp))
	require.Equal(t, "[2 0]", out.String())
	out.Free(mp)
	vec.Free(mp)
	fixed.free()

	// keys larger than a chunk live in their own chunk
	bs, err := newDistinctSet(varcharType, mp)
	require.NoError(t, err)
	big := strings.Repeat("x", distinctArenaChunkSize+1)
	strs := testutil.NewStringVector(4, varcharType, mp, false, []string{"a", big, "a", big})
	for i, want := range []bool{true, true, false, false} {
		added, err := bs.insert(strs, i)
		require.NoError(t, err)
		require.Equal(t, want, added)
	}
	require.True(t, bs.memSize() > int64(distinctArenaChunkSize))
	out = vector.NewVec(varcharType)
	require.NoError(t, bs.materialize(out, 0, mp))
	require.Equal(t, 2, out.Length())
	require.Equal(t, big, out.GetStringAt(1))
	out.Free(mp)
	strs.Free(mp)
	bs.free()
	require.Equal(t, int64(0), mp.CurrNB())

	_, err = newDistinctSet(types.NewArrayType(int64Type), mp)
	require.Error(t, err)
}
