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
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/lni/goutils/leaktest"
	"github.com/panjf2000/ants/v2"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/batch"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
	"github.com/matrixorigin/arrayagg/pkg/sql/colexec/aggexec"
	"github.com/matrixorigin/arrayagg/pkg/testutil"
	"github.com/matrixorigin/arrayagg/pkg/vm/process"
)

var (
	tInt64   = types.T_int64.ToType()
	tVarchar = types.T_varchar.ToType()
)

// results maps the key of every output row to its aggregate.
func results(t *testing.T, res *batch.Batch) map[string]string {
	require.NoError(t, res.Validate())
	m := make(map[string]string, res.RowCount())
	for i := 0; i < res.RowCount(); i++ {
		m[res.Vecs[0].RowString(i)] = res.Vecs[1].RowString(i)
	}
	return m
}

func cleanInputs(inputs []*batch.Batch, mp *mpool.MPool) {
	for _, bat := range inputs {
		bat.Clean(mp)
	}
}

func TestRun(t *testing.T) {
	mp := mpool.MustNewZero()
	proc := testutil.NewProcessWithMPool(mp)

	inputs := []*batch.Batch{
		testutil.NewBatchWithVectors([]*vector.Vector{
			testutil.NewNullableInt64Vector(mp, []int64{1, 2, 1, 3}),
			testutil.NewNullableInt64Vector(mp, []int64{10, 20, 30, 40}),
		}),
		testutil.NewBatchWithVectors([]*vector.Vector{
			testutil.NewNullableInt64Vector(mp, []int64{2, 1}),
			testutil.NewNullableInt64Vector(mp, []int64{50, 60}),
		}),
	}
	spec := Spec{
		KeyTypes: []types.Type{tInt64},
		Aggs:     []aggexec.AggSpec{{ArgTypes: []types.Type{tInt64}}},
		Workers:  1,
	}
	res, err := Run(proc, spec, inputs)
	require.NoError(t, err)

	require.Equal(t, 3, res.RowCount())
	require.Equal(t, []string{"key_0", "array_agg_0"}, res.Attrs)
	require.Equal(t, "[1 2 3]", res.Vecs[0].String())
	require.Equal(t, "[10,30,60]", res.Vecs[1].RowString(0))
	require.Equal(t, "[20,50]", res.Vecs[1].RowString(1))
	require.Equal(t, "[40]", res.Vecs[1].RowString(2))

	res.Clean(mp)
	cleanInputs(inputs, mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestRunNullKeys(t *testing.T) {
	mp := mpool.MustNewZero()
	proc := testutil.NewProcessWithMPool(mp)

	inputs := []*batch.Batch{
		testutil.NewBatchWithVectors([]*vector.Vector{
			testutil.NewNullableInt64Vector(mp, []int64{0, 1, 0, 1}, 0, 2),
			testutil.NewNullableStringVector(mp, []string{"a", "b", "c", ""}, 3),
		}),
	}
	spec := Spec{
		KeyTypes: []types.Type{tInt64},
		Aggs:     []aggexec.AggSpec{{ArgTypes: []types.Type{tVarchar}}},
	}
	res, err := Run(proc, spec, inputs)
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"null": "[a,c]",
		"1":    "[b,null]",
	}, results(t, res))

	res.Clean(mp)
	cleanInputs(inputs, mp)
}

// orderedInputs builds n rows keyed by i % groups, each row aggregating
// value i % mod ordered by the same value.
func orderedInputs(mp *mpool.MPool, n, groups, mod, perBatch int) []*batch.Batch {
	var inputs []*batch.Batch
	for start := 0; start < n; start += perBatch {
		end := start + perBatch
		if end > n {
			end = n
		}
		keys := make([]int64, 0, end-start)
		vals := make([]int64, 0, end-start)
		for i := start; i < end; i++ {
			keys = append(keys, int64(i%groups))
			vals = append(vals, int64(i%mod))
		}
		inputs = append(inputs, testutil.NewBatchWithVectors([]*vector.Vector{
			testutil.NewNullableInt64Vector(mp, keys),
			testutil.NewNullableInt64Vector(mp, vals),
			testutil.NewNullableInt64Vector(mp, vals),
		}))
	}
	return inputs
}

func orderedSpec(workers, batchSize int, threshold float64, distinct bool) Spec {
	return Spec{
		KeyTypes: []types.Type{tInt64},
		Aggs: []aggexec.AggSpec{{
			ArgTypes: []types.Type{tInt64, tInt64},
			Distinct: distinct,
			IsAsc:    []bool{false},
		}},
		Workers:                  workers,
		BatchSize:                batchSize,
		StreamingPreAggThreshold: threshold,
	}
}

func TestRunParallel(t *testing.T) {
	defer leaktest.AfterTest(t)()

	mp := mpool.MustNewZero()
	proc := testutil.NewProcessWithMPool(mp)
	inputs := orderedInputs(mp, 1000, 7, 1000, 300)

	expected := make(map[string]string)
	for k := 0; k < 7; k++ {
		var vals []string
		for i := 999; i >= 0; i-- {
			if i%7 == k {
				vals = append(vals, fmt.Sprint(i))
			}
		}
		expected[fmt.Sprint(k)] = "[" + strings.Join(vals, ",") + "]"
	}

	for _, workers := range []int{1, 3, 4, 16} {
		res, err := Run(proc, orderedSpec(workers, 64, 1, false), inputs)
		require.NoError(t, err)
		require.Equal(t, 7, res.RowCount())
		require.Equal(t, expected, results(t, res), "workers %d", workers)
		res.Clean(mp)
	}

	cleanInputs(inputs, mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestRunStreaming(t *testing.T) {
	mp := mpool.MustNewZero()
	proc := testutil.NewProcessWithMPool(mp)
	inputs := orderedInputs(mp, 200, 100, 3, 50)

	spec := orderedSpec(1, 16, 0.5, true)
	spec.fill()
	units := splitUnits(inputs, spec.BatchSize)
	require.Equal(t, 16, len(units))
	partials, err := runPartial(proc, &spec, units, 1)
	require.NoError(t, err)
	require.True(t, partials[0].streaming)
	// the first unit is aggregated and flushed before the streamed ones
	require.Equal(t, len(units), len(partials[0].results))
	require.Equal(t, 16, partials[0].results[0].RowCount())
	require.Equal(t, 2, partials[0].results[len(units)-1].RowCount())
	freePartials(partials)

	streamed, err := Run(proc, orderedSpec(1, 16, 0.5, true), inputs)
	require.NoError(t, err)
	aggregated, err := Run(proc, orderedSpec(1, 16, 1, true), inputs)
	require.NoError(t, err)

	require.Equal(t, 100, streamed.RowCount())
	require.Equal(t, results(t, aggregated), results(t, streamed))
	require.Equal(t, "[1,0]", results(t, streamed)["0"])

	streamed.Clean(mp)
	aggregated.Clean(mp)
	cleanInputs(inputs, mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestRunStreamingKeepsInputOrder(t *testing.T) {
	mp := mpool.MustNewZero()
	proc := testutil.NewProcessWithMPool(mp)

	inputs := []*batch.Batch{
		testutil.NewBatchWithVectors([]*vector.Vector{
			testutil.NewNullableInt64Vector(mp, []int64{1, 2, 1, 1, 1, 2}),
			testutil.NewNullableInt64Vector(mp, []int64{3, 4, 1, 3, 2, 4}),
		}),
	}
	simple := func(threshold float64, distinct bool) Spec {
		return Spec{
			KeyTypes:                 []types.Type{tInt64},
			Aggs:                     []aggexec.AggSpec{{ArgTypes: []types.Type{tInt64}, Distinct: distinct}},
			Workers:                  1,
			BatchSize:                2,
			StreamingPreAggThreshold: threshold,
		}
	}

	for _, c := range []struct {
		distinct bool
		expected map[string]string
	}{
		{false, map[string]string{"1": "[3,1,3,2]", "2": "[4,4]"}},
		{true, map[string]string{"1": "[3,1,2]", "2": "[4]"}},
	} {
		// 0.9 streams every unit after the first one, 1 never streams
		for _, threshold := range []float64{0.9, 1} {
			res, err := Run(proc, simple(threshold, c.distinct), inputs)
			require.NoError(t, err)
			require.Equal(t, c.expected, results(t, res), "distinct %v threshold %v", c.distinct, threshold)
			res.Clean(mp)
		}
	}

	cleanInputs(inputs, mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestRunEmpty(t *testing.T) {
	proc := testutil.NewProcess()
	spec := Spec{
		KeyTypes: []types.Type{tInt64},
		Aggs:     []aggexec.AggSpec{{ArgTypes: []types.Type{tInt64}}},
		Workers:  4,
	}
	res, err := Run(proc, spec, nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.RowCount())
	require.Equal(t, 2, len(res.Vecs))
	res.Clean(proc.Mp())
}

func TestRunCancelled(t *testing.T) {
	mp := mpool.MustNewZero()
	proc := testutil.NewProcessWithMPool(mp)
	inputs := orderedInputs(mp, 100, 10, 100, 100)

	proc.Cancel()
	_, err := Run(proc, orderedSpec(2, 16, 1, false), inputs)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrQueryInterrupted))

	cleanInputs(inputs, mp)
	require.Equal(t, int64(0), mp.CurrNB())
}

func TestRunWorkerPoolError(t *testing.T) {
	stubs := gostub.Stub(&newWorkerPool, func(int) (*ants.Pool, error) {
		return nil, moerr.NewInternalErrorNoCtx("no worker")
	})
	defer stubs.Reset()

	mp := mpool.MustNewZero()
	proc := testutil.NewProcessWithMPool(mp)
	inputs := orderedInputs(mp, 10, 2, 10, 10)

	_, err := Run(proc, orderedSpec(2, 0, 0, false), inputs)
	require.Error(t, err)
	require.Equal(t, "internal error: no worker", err.Error())

	cleanInputs(inputs, mp)
}

func TestPartialGroupFirstErrorWins(t *testing.T) {
	proc := testutil.NewProcess()
	pg := &partialGroup{proc: process.NewFromProc(proc)}

	first := moerr.NewOOMNoCtx()
	pg.fail(first)
	pg.fail(moerr.NewQueryInterrupted(pg.proc.Context()))

	require.Equal(t, first, pg.err)
	require.True(t, pg.proc.Cancelled())
	require.False(t, proc.Cancelled())
}

func TestRunWorkerFailure(t *testing.T) {
	defer leaktest.AfterTest(t)()

	mp := mpool.MustNewZero()
	inputs := orderedInputs(mp, 1000, 50, 1000, 100)
	defer cleanInputs(inputs, mp)

	// too small for any group key
	capped, err := mpool.NewMPool("capped", 1, mpool.NoFixed)
	require.NoError(t, err)
	proc := testutil.NewProcessWithMPool(capped)

	_, err = Run(proc, orderedSpec(4, 16, 1, false), inputs)
	require.Error(t, err)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrOOM), err.Error())
	require.False(t, proc.Cancelled())
}

func TestFailedTagsAggName(t *testing.T) {
	proc := testutil.NewProcess()
	exec, err := aggexec.MakeArrayAgg(proc, aggexec.AggSpec{ArgTypes: []types.Type{tInt64}})
	require.NoError(t, err)
	defer exec.Free()

	cause := moerr.NewInternalErrorNoCtx("broken")
	wrapped := failed(proc, exec, fmt.Errorf("fill: %w", cause))
	var me *moerr.Error
	require.True(t, errors.As(wrapped, &me))
	require.Equal(t, "array_agg", me.Detail())
	require.Equal(t, "internal error: broken: array_agg", me.Display())

	// an error already tagged keeps its first aggregate
	tagged := moerr.NewInternalErrorNoCtx("sort").WithDetail("array_agg_ordered")
	require.Equal(t, error(tagged), failed(proc, exec, tagged))
	require.Equal(t, "array_agg_ordered", tagged.Detail())

	plain := failed(proc, exec, io.EOF)
	require.Equal(t, io.EOF, plain)
}

func TestRunBadSpec(t *testing.T) {
	mp := mpool.MustNewZero()
	proc := testutil.NewProcessWithMPool(mp)
	inputs := orderedInputs(mp, 10, 2, 10, 10)
	defer cleanInputs(inputs, mp)

	_, err := Run(proc, Spec{KeyTypes: []types.Type{tInt64}}, inputs)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	spec := orderedSpec(1, 0, 1.5, false)
	_, err = Run(proc, spec, inputs)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	spec = orderedSpec(1, 0, 0, false)
	spec.KeyTypes = []types.Type{types.NewArrayType(tInt64)}
	_, err = Run(proc, spec, inputs)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrNotSupported))

	// the order by column is missing
	spec = Spec{
		KeyTypes: []types.Type{tInt64},
		Aggs:     []aggexec.AggSpec{{ArgTypes: []types.Type{tInt64}}},
	}
	_, err = Run(proc, spec, inputs)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))

	// the value column has the wrong type
	spec = orderedSpec(1, 0, 0, false)
	spec.Aggs[0].ArgTypes[0] = tVarchar
	_, err = Run(proc, spec, inputs)
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrInvalidInput))
}
