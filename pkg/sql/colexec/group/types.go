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

package group

import (
	"fmt"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/container/batch"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
	"github.com/matrixorigin/arrayagg/pkg/sql/colexec/aggexec"
	"github.com/matrixorigin/arrayagg/pkg/vm/process"
)

const (
	defaultBatchSize                = 8192
	defaultStreamingPreAggThreshold = 0.9
)

// Spec describes a hash group by with ARRAY_AGG aggregates.
//
// Every input batch holds the group by columns first, then the argument
// columns of each aggregate in order.
type Spec struct {
	KeyTypes []types.Type
	Aggs     []aggexec.AggSpec

	// number of partial aggregation workers, at least one.
	Workers int
	// rows a worker consumes at a time.  0 takes the default.
	BatchSize int
	// a worker whose groups/rows ratio is above the threshold stops
	// aggregating and forwards its rows to the merger.  0 takes the
	// default, 1 never streams.
	StreamingPreAggThreshold float64
}

func (spec *Spec) fill() {
	if spec.Workers <= 0 {
		spec.Workers = 1
	}
	if spec.BatchSize <= 0 {
		spec.BatchSize = defaultBatchSize
	}
	if spec.StreamingPreAggThreshold <= 0 {
		spec.StreamingPreAggThreshold = defaultStreamingPreAggThreshold
	}
}

// columnCount is the width of an input batch.
func (spec *Spec) columnCount() int {
	n := len(spec.KeyTypes)
	for _, agg := range spec.Aggs {
		n += len(agg.ArgTypes)
	}
	return n
}

// argOffsets returns the position of the first argument column of each
// aggregate.
func (spec *Spec) argOffsets() []int {
	offsets := make([]int, len(spec.Aggs))
	pos := len(spec.KeyTypes)
	for i, agg := range spec.Aggs {
		offsets[i] = pos
		pos += len(agg.ArgTypes)
	}
	return offsets
}

func (spec *Spec) validate(proc *process.Process) error {
	if len(spec.Aggs) == 0 {
		return moerr.NewInvalidInput(proc.Context(), "group by without aggregate")
	}
	if spec.StreamingPreAggThreshold > 1 {
		return moerr.NewInvalidInput(proc.Context(),
			"streaming pre-aggregation threshold %v is out of (0, 1]", spec.StreamingPreAggThreshold)
	}
	for _, typ := range spec.KeyTypes {
		if typ.IsNested() {
			return moerr.NewNotSupported(proc.Context(), "group by %s", typ)
		}
	}
	return nil
}

// checkInput makes sure that bat has the layout of spec.
func (spec *Spec) checkInput(proc *process.Process, idx int, bat *batch.Batch) error {
	if err := bat.Validate(); err != nil {
		return err
	}
	if len(bat.Vecs) != spec.columnCount() {
		return moerr.NewInvalidInput(proc.Context(),
			"batch %d has %d columns, expect %d", idx, len(bat.Vecs), spec.columnCount())
	}
	pos := 0
	check := func(typ types.Type) error {
		if got := bat.Vecs[pos].GetType(); !got.Eq(typ) {
			return moerr.NewInvalidInput(proc.Context(),
				"batch %d column %d is %s, expect %s", idx, pos, got, typ)
		}
		pos++
		return nil
	}
	for _, typ := range spec.KeyTypes {
		if err := check(typ); err != nil {
			return err
		}
	}
	for _, agg := range spec.Aggs {
		for _, typ := range agg.ArgTypes {
			if err := check(typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// unit is a window of at most BatchSize rows of one input batch.
type unit struct {
	bat    *batch.Batch
	offset int
	count  int
}

func splitUnits(inputs []*batch.Batch, size int) []unit {
	var units []unit
	for _, bat := range inputs {
		rows := bat.RowCount()
		for off := 0; off < rows; off += size {
			cnt := size
			if off+cnt > rows {
				cnt = rows - off
			}
			units = append(units, unit{bat: bat, offset: off, count: cnt})
		}
	}
	return units
}

// window copies rows [offset, offset+count) of vecs into new vectors.
func (u unit) window(proc *process.Process, vecs []*vector.Vector) ([]*vector.Vector, error) {
	mp := proc.Mp()
	ws := make([]*vector.Vector, len(vecs))
	for i, vec := range vecs {
		ws[i] = vector.NewVec(*vec.GetType())
		if err := ws[i].UnionBatch(vec, int64(u.offset), u.count, nil, mp); err != nil {
			freeVectors(ws, proc)
			return nil, err
		}
	}
	return ws, nil
}

func freeVectors(vecs []*vector.Vector, proc *process.Process) {
	for _, vec := range vecs {
		if vec != nil {
			vec.Free(proc.Mp())
		}
	}
}

func makeExecs(proc *process.Process, spec *Spec) ([]aggexec.AggFuncExec, error) {
	execs := make([]aggexec.AggFuncExec, len(spec.Aggs))
	for i := range spec.Aggs {
		exec, err := aggexec.MakeArrayAgg(proc, spec.Aggs[i])
		if err != nil {
			freeExecs(execs)
			return nil, err
		}
		execs[i] = exec
	}
	return execs, nil
}

func freeExecs(execs []aggexec.AggFuncExec) {
	for _, exec := range execs {
		if exec != nil {
			exec.Free()
		}
	}
}

func resultAttrs(spec *Spec, execs []aggexec.AggFuncExec) []string {
	attrs := make([]string, 0, len(spec.KeyTypes)+len(execs))
	for i := range spec.KeyTypes {
		attrs = append(attrs, fmt.Sprintf("key_%d", i))
	}
	for i, exec := range execs {
		attrs = append(attrs, fmt.Sprintf("%s_%d", exec.Name(), i))
	}
	return attrs
}
