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
	"context"

	"go.uber.org/zap"

	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/sort"
	"github.com/matrixorigin/arrayagg/pkg/vm/process"
)

const defaultDedupHashIndexThreshold = 1024

// FunctionContext is shared by every group state of one aggregate.  It
// owns the immutable call information and the first error raised.
type FunctionContext struct {
	proc *process.Process

	name       string
	argTypes   []types.Type
	isDistinct bool
	isAsc      []bool
	nullsFirst []bool

	// groups holding more elements remove duplicates through a hash index.
	dedupHashIndexThreshold int

	sorter sort.Sorter

	err error
}

func newFunctionContext(proc *process.Process, name string, spec AggSpec) *FunctionContext {
	keys := len(spec.ArgTypes) - 1
	if keys < 0 {
		keys = 0
	}
	isAsc := make([]bool, keys)
	nullsFirst := make([]bool, keys)
	for i := 0; i < keys; i++ {
		isAsc[i] = true
		if i < len(spec.IsAsc) {
			isAsc[i] = spec.IsAsc[i]
		}
		if i < len(spec.NullsFirst) {
			nullsFirst[i] = spec.NullsFirst[i]
		}
	}
	threshold := spec.DedupHashIndexThreshold
	if threshold <= 0 {
		threshold = defaultDedupHashIndexThreshold
	}
	return &FunctionContext{
		proc:                    proc,
		name:                    name,
		argTypes:                spec.ArgTypes,
		isDistinct:              spec.Distinct,
		isAsc:                   isAsc,
		nullsFirst:              nullsFirst,
		dedupHashIndexThreshold: threshold,
		sorter:                  sort.DefaultSorter{},
	}
}

func (fc *FunctionContext) Name() string {
	return fc.name
}

func (fc *FunctionContext) Ctx() context.Context {
	return fc.proc.Context()
}

func (fc *FunctionContext) Mp() *mpool.MPool {
	return fc.proc.Mp()
}

func (fc *FunctionContext) sortDescs() sort.SortDescs {
	return sort.NewSortDescs(fc.isAsc, fc.nullsFirst)
}

// SetError records err unless an earlier error is already recorded.
func (fc *FunctionContext) SetError(err error) {
	if err == nil || fc.err != nil {
		return
	}
	fc.err = err
	fc.proc.Debug("aggregate failed", zap.String("agg", fc.name), zap.Error(err))
}

func (fc *FunctionContext) HasError() bool {
	return fc.err != nil
}

func (fc *FunctionContext) Err() error {
	return fc.err
}

func (fc *FunctionContext) fail(err error) error {
	fc.SetError(err)
	return err
}
