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
	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
	"github.com/matrixorigin/arrayagg/pkg/vm/process"
)

// MakeArrayAgg returns the executor of one ARRAY_AGG call: the ordered one
// when the call has ORDER BY keys, the simple one otherwise.
func MakeArrayAgg(proc *process.Process, spec AggSpec) (AggFuncExec, error) {
	ctx := proc.Context()
	if len(spec.ArgTypes) == 0 {
		return nil, moerr.NewInvalidInput(ctx, "%s needs an argument", nameArrayAgg)
	}

	if spec.ordered() {
		keys := len(spec.ArgTypes) - 1
		if len(spec.IsAsc) > keys || len(spec.NullsFirst) > keys {
			return nil, moerr.NewInvalidInput(ctx,
				"%s has %d order by keys but %d directions", nameArrayAggOrdered, keys, len(spec.IsAsc))
		}
		for _, typ := range spec.ArgTypes[1:] {
			if typ.IsNested() {
				return nil, moerr.NewNotSupported(ctx, "%s order by %s", nameArrayAggOrdered, typ)
			}
		}
		return newArrayAggOrderedExec(newFunctionContext(proc, nameArrayAggOrdered, spec)), nil
	}

	if spec.Distinct {
		if spec.ArgTypes[0].IsNested() {
			return nil, moerr.NewNotSupported(ctx, "%s of %s", nameArrayAggDistinct, spec.ArgTypes[0])
		}
		return newArrayAggExec(newFunctionContext(proc, nameArrayAggDistinct, spec)), nil
	}
	return newArrayAggExec(newFunctionContext(proc, nameArrayAgg, spec)), nil
}

// Serialize returns the partial results of every group.
func Serialize(exec AggFuncExec, mp *mpool.MPool) (*vector.Vector, error) {
	vec := vector.NewVec(exec.IntermediateType())
	for i, n := 0, exec.GroupCount(); i < n; i++ {
		if err := exec.SerializeToColumn(i, vec); err != nil {
			vec.Free(mp)
			return nil, err
		}
	}
	return vec, nil
}

// Flush returns the final results of every group.
func Flush(exec AggFuncExec, mp *mpool.MPool) (*vector.Vector, error) {
	_, retType := exec.TypesInfo()
	vec := vector.NewVec(retType)
	for i, n := 0, exec.GroupCount(); i < n; i++ {
		if err := exec.FinalizeToColumn(i, vec); err != nil {
			vec.Free(mp)
			return nil, err
		}
	}
	return vec, nil
}
