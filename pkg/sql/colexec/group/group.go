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
	"errors"
	"sync"

	"github.com/axiomhq/hyperloglog"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/container/batch"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
	"github.com/matrixorigin/arrayagg/pkg/sql/colexec/aggexec"
	"github.com/matrixorigin/arrayagg/pkg/vm/process"
)

var newWorkerPool = func(size int) (*ants.Pool, error) {
	return ants.NewPool(size)
}

// Run groups the rows of inputs and returns one row per distinct key: the
// key columns followed by the ARRAY_AGG result of each aggregate.
//
// Rows are aggregated in two phases.  Partial workers run in parallel, each
// over its own share of the input with its own states.  A single merger then
// folds the partial results together and finalizes every group.
func Run(proc *process.Process, spec Spec, inputs []*batch.Batch) (*batch.Batch, error) {
	spec.fill()
	if err := spec.validate(proc); err != nil {
		return nil, err
	}
	for i, bat := range inputs {
		if err := spec.checkInput(proc, i, bat); err != nil {
			return nil, err
		}
	}

	units := splitUnits(inputs, spec.BatchSize)
	workers := spec.Workers
	if workers > len(units) {
		workers = len(units)
	}

	partials, err := runPartial(proc, &spec, units, workers)
	if err != nil {
		proc.Error("partial aggregation failed", zap.Error(err))
		return nil, err
	}

	bat, err := runMerge(proc, &spec, partials)
	if err != nil {
		proc.Error("merge aggregation failed", zap.Error(err))
		return nil, err
	}
	return bat, nil
}

// partialGroup is shared by the partial workers of one Run.  The first
// worker that fails records its error and cancels the others.
type partialGroup struct {
	proc *process.Process
	once sync.Once
	err  error
}

func (pg *partialGroup) fail(err error) {
	pg.once.Do(func() {
		pg.err = err
		pg.proc.Cancel()
	})
}

// runPartial hands unit i to worker i % workers.
func runPartial(proc *process.Process, spec *Spec, units []unit, workers int) ([]*partialWorker, error) {
	if workers == 0 {
		return nil, nil
	}
	pool, err := newWorkerPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	pg := &partialGroup{proc: process.NewFromProc(proc)}
	defer pg.proc.Cancel()

	partials := make([]*partialWorker, workers)
	for i := range partials {
		if partials[i], err = newPartialWorker(pg.proc, spec, i); err != nil {
			freePartials(partials)
			return nil, err
		}
	}

	var wg sync.WaitGroup
	for i := range partials {
		w := partials[i]
		wg.Add(1)
		if err = pool.Submit(func() {
			defer wg.Done()
			if err := w.run(units, workers); err != nil {
				pg.fail(err)
			}
		}); err != nil {
			wg.Done()
			pg.fail(err)
		}
	}
	wg.Wait()

	err = pg.err
	if err == nil && proc.Cancelled() {
		err = moerr.NewQueryInterrupted(proc.Context())
	}
	if err != nil {
		freePartials(partials)
		return nil, err
	}
	return partials, nil
}

func runMerge(proc *process.Process, spec *Spec, partials []*partialWorker) (*batch.Batch, error) {
	defer freePartials(partials)

	sketch := hyperloglog.New16()
	for _, w := range partials {
		if err := sketch.Merge(w.sketch); err != nil {
			return nil, err
		}
	}
	estimate := sketch.Estimate()
	proc.Debug("merge aggregation",
		zap.Int("partials", len(partials)),
		zap.Uint64("estimated-groups", estimate))

	m, err := newMerger(proc, spec, estimate)
	if err != nil {
		return nil, err
	}
	defer m.free()

	for _, w := range partials {
		for _, bat := range w.results {
			if err = m.merge(bat); err != nil {
				return nil, err
			}
		}
	}
	return m.flush()
}

// failed tags err with the name of the aggregate that raised it.
func failed(proc *process.Process, exec aggexec.AggFuncExec, err error) error {
	proc.Error("aggregate failed", zap.String("agg", exec.Name()), zap.Error(err))
	var me *moerr.Error
	if errors.As(err, &me) && me.Detail() == "" {
		me.WithDetail(exec.Name())
	}
	return err
}

type merger struct {
	proc  *process.Process
	spec  *Spec
	table *groupTable
	execs []aggexec.AggFuncExec
}

func newMerger(proc *process.Process, spec *Spec, estimate uint64) (*merger, error) {
	execs, err := makeExecs(proc, spec)
	if err != nil {
		return nil, err
	}
	return &merger{
		proc:  proc,
		spec:  spec,
		table: newGroupTable(spec.KeyTypes, estimate),
		execs: execs,
	}, nil
}

// merge folds one intermediate batch: key columns then one partial
// result column per aggregate.
func (m *merger) merge(bat *batch.Batch) error {
	if m.proc.Cancelled() {
		return moerr.NewQueryInterrupted(m.proc.Context())
	}
	nkeys := len(m.spec.KeyTypes)
	groups, more, err := m.table.insert(m.proc, bat.Vecs[:nkeys], 0, bat.RowCount(), nil)
	if err != nil {
		return err
	}
	for i, exec := range m.execs {
		if err = exec.GroupGrow(more); err != nil {
			return failed(m.proc, exec, err)
		}
		if err = exec.BatchMerge(0, groups, bat.Vecs[nkeys+i]); err != nil {
			return failed(m.proc, exec, err)
		}
	}
	return nil
}

func (m *merger) flush() (*batch.Batch, error) {
	mp := m.proc.Mp()
	nkeys := len(m.spec.KeyTypes)
	res := batch.New(resultAttrs(m.spec, m.execs))
	rows := m.table.groupCount()
	for i, exec := range m.execs {
		vec, err := aggexec.Flush(exec, mp)
		if err != nil {
			res.Clean(mp)
			return nil, failed(m.proc, exec, err)
		}
		res.Vecs[nkeys+i] = vec
	}
	copy(res.Vecs, m.table.popKeys())
	res.SetRowCount(rows)
	return res, nil
}

func (m *merger) free() {
	freeExecs(m.execs)
	m.execs = nil
	m.table.free(m.proc)
}

func freePartials(partials []*partialWorker) {
	for _, w := range partials {
		if w != nil {
			w.free()
		}
	}
}

// partialWorker aggregates its share of the input.  It owns its table and
// states, nothing else touches them while it runs.
type partialWorker struct {
	id    int
	proc  *process.Process
	spec  *Spec
	table *groupTable
	execs []aggexec.AggFuncExec
	args  []int

	sketch *hyperloglog.Sketch

	rows      int
	streaming bool

	results []*batch.Batch
}

func newPartialWorker(proc *process.Process, spec *Spec, id int) (*partialWorker, error) {
	wproc := process.NewFromProc(proc)
	execs, err := makeExecs(wproc, spec)
	if err != nil {
		wproc.Cancel()
		return nil, err
	}
	return &partialWorker{
		id:     id,
		proc:   wproc,
		spec:   spec,
		table:  newGroupTable(spec.KeyTypes, 0),
		execs:  execs,
		args:   spec.argOffsets(),
		sketch: hyperloglog.New16(),
	}, nil
}

func (w *partialWorker) run(units []unit, step int) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = moerr.ConvertPanicError(w.proc.Context(), e)
			w.proc.Error("partial aggregation panic",
				zap.Int("worker", w.id), zap.Error(err))
		}
	}()

	for i := w.id; i < len(units); i += step {
		if err = w.consume(units[i]); err != nil {
			return err
		}
	}
	if w.streaming {
		return nil
	}
	return w.flush()
}

func (w *partialWorker) consume(u unit) error {
	if w.proc.Cancelled() {
		return moerr.NewQueryInterrupted(w.proc.Context())
	}
	if w.streaming {
		return w.stream(u)
	}

	keys := u.bat.Vecs[:len(w.spec.KeyTypes)]
	groups, more, err := w.table.insert(w.proc, keys, u.offset, u.count, w.sketch)
	if err != nil {
		return err
	}
	for i, exec := range w.execs {
		if err = exec.GroupGrow(more); err != nil {
			return failed(w.proc, exec, err)
		}
		if err = exec.BatchFill(u.offset, groups, w.argVectors(u.bat, i)); err != nil {
			return failed(w.proc, exec, err)
		}
	}

	w.rows += u.count
	if w.rows >= w.spec.BatchSize &&
		float64(w.table.groupCount())/float64(w.rows) > w.spec.StreamingPreAggThreshold {
		w.streaming = true
		w.proc.Debug("partial aggregation switches to streaming",
			zap.Int("worker", w.id),
			zap.Int("rows", w.rows),
			zap.Int("groups", w.table.groupCount()))
		// the groups so far go out before any streamed row
		return w.flush()
	}
	return nil
}

func (w *partialWorker) argVectors(bat *batch.Batch, agg int) []*vector.Vector {
	start := w.args[agg]
	return bat.Vecs[start : start+len(w.spec.Aggs[agg].ArgTypes)]
}

// flush turns the aggregated groups into one intermediate batch.
func (w *partialWorker) flush() error {
	rows := w.table.groupCount()
	if rows == 0 {
		return nil
	}
	mp := w.proc.Mp()
	bat := batch.NewWithSize(0)
	for _, exec := range w.execs {
		vec, err := aggexec.Serialize(exec, mp)
		if err != nil {
			bat.Clean(mp)
			return failed(w.proc, exec, err)
		}
		bat.Vecs = append(bat.Vecs, vec)
	}
	bat.Vecs = append(w.table.popKeys(), bat.Vecs...)
	bat.SetRowCount(rows)
	w.results = append(w.results, bat)
	return nil
}

func (w *partialWorker) free() {
	for _, bat := range w.results {
		bat.Clean(w.proc.Mp())
	}
	w.results = nil
	freeExecs(w.execs)
	w.execs = nil
	w.table.free(w.proc)
	w.proc.Cancel()
}
