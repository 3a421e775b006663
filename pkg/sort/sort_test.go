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

package sort

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

func TestSortSingleKey(t *testing.T) {
	mp := mpool.MustNewZero()
	key := vector.NewVec(types.T_int32.ToType())
	require.NoError(t, vector.AppendFixedList(key, []int32{3, 1, 0, 2, 1}, []bool{false, false, true, false, false}, mp))

	kases := []struct {
		desc SortDesc
		want Permutation
	}{
		{SortDesc{Asc: true}, Permutation{1, 4, 3, 0, 2}},
		{SortDesc{Asc: true, NullsFirst: true}, Permutation{2, 1, 4, 3, 0}},
		{SortDesc{Asc: false}, Permutation{0, 3, 1, 4, 2}},
		{SortDesc{Asc: false, NullsFirst: true}, Permutation{2, 0, 3, 1, 4}},
	}
	for _, kase := range kases {
		perm, err := SortAndTieColumns(context.Background(), []*vector.Vector{key}, SortDescs{kase.desc})
		require.NoError(t, err)
		require.Equal(t, kase.want, perm, "%+v", kase.desc)
	}
}

func TestSortMultiKey(t *testing.T) {
	mp := mpool.MustNewZero()
	k1 := vector.NewVec(types.T_varchar.ToType())
	require.NoError(t, vector.AppendStringList(k1, []string{"b", "a", "b", "a"}, nil, mp))
	k2 := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendFixedList(k2, []int64{1, 2, 2, 1}, nil, mp))

	perm, err := DefaultSorter{}.Sort(context.Background(), []*vector.Vector{k1, k2}, NewSortDescs([]bool{true, false}, nil))
	require.NoError(t, err)
	require.Equal(t, Permutation{1, 3, 2, 0}, perm)
	require.Equal(t, []int64{1, 3, 2, 0}, perm.ToSels())
}

func TestSortLargeIsStable(t *testing.T) {
	mp := mpool.MustNewZero()
	n := runSize*3 + 17
	vals := make([]int64, n)
	r := rand.New(rand.NewSource(42))
	for i := range vals {
		vals[i] = r.Int63n(50)
	}
	key := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendFixedList(key, vals, nil, mp))

	perm, err := SortAndTieColumns(context.Background(), []*vector.Vector{key}, SortDescs{{Asc: true}})
	require.NoError(t, err)
	require.Equal(t, n, len(perm))
	seen := make([]bool, n)
	for i := range perm {
		require.False(t, seen[perm[i]])
		seen[perm[i]] = true
		if i > 0 {
			a, b := vals[perm[i-1]], vals[perm[i]]
			require.True(t, a <= b)
			if a == b {
				require.True(t, perm[i-1] < perm[i], "ties must keep input order")
			}
		}
	}
}

func TestSortCancelled(t *testing.T) {
	mp := mpool.MustNewZero()
	key := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendFixedList(key, []int64{3, 2, 1}, nil, mp))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	perm, err := SortAndTieColumns(ctx, []*vector.Vector{key}, SortDescs{{Asc: true}})
	require.Nil(t, perm)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrQueryInterrupted))
}

func TestSortBadInput(t *testing.T) {
	mp := mpool.MustNewZero()
	k1 := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendFixedList(k1, []int64{3, 2, 1}, nil, mp))
	k2 := vector.NewVec(types.T_int64.ToType())
	require.NoError(t, vector.AppendFixedList(k2, []int64{3}, nil, mp))
	ctx := context.Background()

	_, err := SortAndTieColumns(ctx, nil, nil)
	require.Error(t, err)
	_, err = SortAndTieColumns(ctx, []*vector.Vector{k1}, nil)
	require.Error(t, err)
	_, err = SortAndTieColumns(ctx, []*vector.Vector{k1, k2}, SortDescs{{}, {}})
	require.Error(t, err)
	arr := vector.NewVec(types.NewArrayType(types.T_int64.ToType()))
	_, err = SortAndTieColumns(ctx, []*vector.Vector{arr}, SortDescs{{}})
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))

	empty := vector.NewVec(types.T_int64.ToType())
	perm, err := SortAndTieColumns(ctx, []*vector.Vector{empty}, SortDescs{{}})
	require.NoError(t, err)
	require.Equal(t, 0, len(perm))
}
