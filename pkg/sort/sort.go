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

// Package sort computes stable multi-key sort permutations over vectors.
package sort

import (
	"context"

	"golang.org/x/exp/slices"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/compare"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

const (
	// rows sorted per run before merging
	runSize = 4096
	// merged rows between two cancellation checks
	checkInterval = 4096
)

// SortDesc is the ordering directive of one sort key.
type SortDesc struct {
	Asc        bool
	NullsFirst bool
}

type SortDescs []SortDesc

func NewSortDescs(asc, nullsFirst []bool) SortDescs {
	descs := make(SortDescs, len(asc))
	for i := range asc {
		descs[i].Asc = asc[i]
		if i < len(nullsFirst) {
			descs[i].NullsFirst = nullsFirst[i]
		}
	}
	return descs
}

// Permutation lists source rows in output order.
type Permutation []uint32

// Sorter produces the permutation that orders rows by keys.
type Sorter interface {
	Sort(ctx context.Context, keys []*vector.Vector, descs SortDescs) (Permutation, error)
}

type DefaultSorter struct{}

func (DefaultSorter) Sort(ctx context.Context, keys []*vector.Vector, descs SortDescs) (Permutation, error) {
	return SortAndTieColumns(ctx, keys, descs)
}

// SortAndTieColumns returns the stable permutation ordering the rows of
// keys, key 0 first.  Rows equal on every key keep their input order.
// Cancellation of ctx is polled while sorting; a cancelled sort returns
// ErrQueryInterrupted and no permutation.
func SortAndTieColumns(ctx context.Context, keys []*vector.Vector, descs SortDescs) (Permutation, error) {
	if len(keys) == 0 {
		return nil, moerr.NewInternalError(ctx, "sort without keys")
	}
	if len(keys) != len(descs) {
		return nil, moerr.NewInternalError(ctx, "sort has %d keys but %d directives", len(keys), len(descs))
	}
	n := keys[0].Length()
	cmps := make([]compare.Compare, len(keys))
	for i, key := range keys {
		if key.Length() != n {
			return nil, moerr.NewInternalError(ctx, "sort key %d has %d rows, expect %d", i, key.Length(), n)
		}
		c, err := compare.New(*key.GetType(), !descs[i].Asc, descs[i].NullsFirst)
		if err != nil {
			return nil, err
		}
		c.Set(0, key)
		cmps[i] = c
	}

	less := func(a, b uint32) bool {
		for _, c := range cmps {
			if r := c.Compare(0, 0, int64(a), int64(b)); r != 0 {
				return r < 0
			}
		}
		return false
	}

	perm := make(Permutation, n)
	for i := range perm {
		perm[i] = uint32(i)
	}
	for start := 0; start < n; start += runSize {
		if err := ctx.Err(); err != nil {
			return nil, moerr.NewQueryInterrupted(ctx)
		}
		end := start + runSize
		if end > n {
			end = n
		}
		slices.SortStableFunc(perm[start:end], less)
	}
	if n <= runSize {
		if err := ctx.Err(); err != nil {
			return nil, moerr.NewQueryInterrupted(ctx)
		}
		return perm, nil
	}

	buf := make(Permutation, n)
	merged := 0
	for width := runSize; width < n; width *= 2 {
		for lo := 0; lo < n; lo += 2 * width {
			mid := lo + width
			if mid > n {
				mid = n
			}
			hi := lo + 2*width
			if hi > n {
				hi = n
			}
			i, j, k := lo, mid, lo
			for i < mid && j < hi {
				// take from the right run only when strictly smaller to
				// keep the merge stable
				if less(perm[j], perm[i]) {
					buf[k] = perm[j]
					j++
				} else {
					buf[k] = perm[i]
					i++
				}
				k++
				if merged++; merged%checkInterval == 0 {
					if err := ctx.Err(); err != nil {
						return nil, moerr.NewQueryInterrupted(ctx)
					}
				}
			}
			k += copy(buf[k:], perm[i:mid])
			copy(buf[k:], perm[j:hi])
		}
		perm, buf = buf, perm
	}
	if err := ctx.Err(); err != nil {
		return nil, moerr.NewQueryInterrupted(ctx)
	}
	return perm, nil
}

// ToSels converts a permutation into the selection list used by
// vector.Shuffle.
func (p Permutation) ToSels() []int64 {
	sels := make([]int64, len(p))
	for i, r := range p {
		sels[i] = int64(r)
	}
	return sels
}
