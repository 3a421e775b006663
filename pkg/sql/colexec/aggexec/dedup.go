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
	"go.uber.org/zap"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

// sortAndDedup orders columns[0] by the ORDER BY keys columns[1:] and,
// when the aggregate is distinct, drops every value equal to an earlier
// one.  The keys are freed and cleared from columns whatever happens;
// columns[0] is reordered in place and returned.
func sortAndDedup(fc *FunctionContext, columns []*vector.Vector) (*vector.Vector, error) {
	mp := fc.Mp()
	values := columns[0]

	if len(columns) > 1 {
		ctx := fc.Ctx()
		perm, sortErr := fc.sorter.Sort(ctx, columns[1:], fc.sortDescs())
		for i := 1; i < len(columns); i++ {
			columns[i].Free(mp)
			columns[i] = nil
		}
		if ctx.Err() != nil || moerr.IsMoErrCode(sortErr, moerr.ErrQueryInterrupted) {
			return nil, moerr.NewAggSortCancelled(ctx, fc.name)
		}
		if sortErr != nil {
			return nil, moerr.NewAggSortFailure(ctx, fc.name, sortErr)
		}
		if len(perm) != values.Length() {
			return nil, moerr.NewAggSortFailure(ctx, fc.name,
				moerr.NewInternalError(ctx, "permutation of %d rows for %d values", len(perm), values.Length()))
		}
		if err := values.Shuffle(perm.ToSels(), mp); err != nil {
			return nil, err
		}
	}

	if fc.isDistinct {
		if err := dedup(fc, values, mp); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// dedup keeps the first occurrence of every value.  Small groups compare
// each row with the kept rows of the same hash; larger ones look those
// rows up in a hash index.  Both keep the same rows.
func dedup(fc *FunctionContext, values *vector.Vector, mp *mpool.MPool) error {
	n := values.Length()
	if n < 2 {
		return nil
	}
	hashes := values.Hashes()
	sels := make([]int64, 0, n)

	if n <= fc.dedupHashIndexThreshold {
		for i := 0; i < n; i++ {
			dup := false
			for _, j := range sels {
				if hashes[j] == hashes[i] && vector.EqualAt(values, int(j), values, i) {
					dup = true
					break
				}
			}
			if !dup {
				sels = append(sels, int64(i))
			}
		}
	} else {
		fc.proc.Debug("dedup through hash index",
			zap.String("agg", fc.name),
			zap.Int("rows", n))
		index := make(map[uint64][]int64, n)
		for i := 0; i < n; i++ {
			h := hashes[i]
			dup := false
			for _, j := range index[h] {
				if vector.EqualAt(values, int(j), values, i) {
					dup = true
					break
				}
			}
			if !dup {
				index[h] = append(index[h], int64(i))
				sels = append(sels, int64(i))
			}
		}
	}

	if len(sels) == n {
		return nil
	}
	return values.Shrink(sels, mp)
}
