// Copyright 2022 Matrix Origin
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

package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/batch"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
	"github.com/matrixorigin/arrayagg/pkg/sql/colexec/aggexec"
	"github.com/matrixorigin/arrayagg/pkg/vm/process"
)

// column holds the raw fields of one csv column, an empty field is null.
type column struct {
	fields []string
	typ    types.Type
}

// inferType picks int64 when every non null field is an integer.
func (c *column) inferType() {
	c.typ = types.T_int64.ToType()
	for _, f := range c.fields {
		if f == "" {
			continue
		}
		if _, err := strconv.ParseInt(f, 10, 64); err != nil {
			c.typ = types.T_varchar.ToType()
			return
		}
	}
}

func (c *column) toVector(start, end int, mp *mpool.MPool) (*vector.Vector, error) {
	vec := vector.NewVec(c.typ)
	fields := c.fields[start:end]
	isNulls := make([]bool, len(fields))
	for i, f := range fields {
		isNulls[i] = f == ""
	}

	var err error
	if c.typ.Oid == types.T_int64 {
		vals := make([]int64, len(fields))
		for i, f := range fields {
			if !isNulls[i] {
				if vals[i], err = strconv.ParseInt(f, 10, 64); err != nil {
					return nil, moerr.NewInvalidInputNoCtx("row %d: %q is not an integer", start+i, f)
				}
			}
		}
		err = vector.AppendFixedList(vec, vals, isNulls, mp)
	} else {
		err = vector.AppendStringList(vec, fields, isNulls, mp)
	}
	if err != nil {
		vec.Free(mp)
		return nil, err
	}
	return vec, nil
}

// input is the csv file cut into batches of key, value and order by
// columns.
type input struct {
	columns []*column
	batches []*batch.Batch
	rows    int
}

func readInput(proc *process.Process, opts options, batchSize int) (*input, error) {
	f, err := os.Open(opts.input)
	if err != nil {
		return nil, moerr.NewInvalidInputNoCtx("open %s: %v", opts.input, err)
	}
	defer f.Close()

	positions := []int{opts.key, opts.value}
	for _, o := range opts.orders {
		positions = append(positions, o.col)
	}
	in := &input{columns: make([]*column, len(positions))}
	for i := range in.columns {
		in.columns[i] = &column{}
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	for line := 1; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, moerr.NewInvalidInputNoCtx("read %s: %v", opts.input, err)
		}
		if line == 1 && opts.header {
			continue
		}
		for i, pos := range positions {
			if pos >= len(record) {
				return nil, moerr.NewInvalidInputNoCtx("line %d has %d columns, no column %d", line, len(record), pos)
			}
			in.columns[i].fields = append(in.columns[i].fields, record[pos])
		}
		in.rows++
	}

	for _, c := range in.columns {
		c.inferType()
	}
	if in.columns[0].typ.Oid != types.T_int64 {
		return nil, moerr.NewInvalidInputNoCtx("key column %d is not an integer column", opts.key)
	}
	proc.Debug("input loaded",
		zap.String("file", opts.input),
		zap.Int("rows", in.rows),
		zap.String("value-type", in.columns[1].typ.String()))

	if batchSize <= 0 {
		batchSize = in.rows
	}
	mp := proc.Mp()
	for start := 0; start < in.rows; start += batchSize {
		if proc.Cancelled() {
			in.free(mp)
			return nil, moerr.NewQueryInterrupted(proc.Context())
		}
		end := start + batchSize
		if end > in.rows {
			end = in.rows
		}
		bat := batch.NewWithSize(len(in.columns))
		in.batches = append(in.batches, bat)
		for i, c := range in.columns {
			if bat.Vecs[i], err = c.toVector(start, end, mp); err != nil {
				in.free(mp)
				return nil, err
			}
		}
		bat.SetRowCount(end - start)
	}
	return in, nil
}

func (in *input) keyTypes() []types.Type {
	return []types.Type{in.columns[0].typ}
}

func (in *input) aggSpec(opts options, dedupThreshold int) aggexec.AggSpec {
	spec := aggexec.AggSpec{
		Distinct:                opts.distinct,
		DedupHashIndexThreshold: dedupThreshold,
	}
	for _, c := range in.columns[1:] {
		spec.ArgTypes = append(spec.ArgTypes, c.typ)
	}
	for _, o := range opts.orders {
		spec.IsAsc = append(spec.IsAsc, o.asc)
		spec.NullsFirst = append(spec.NullsFirst, o.nullsFirst)
	}
	return spec
}

func (in *input) free(mp *mpool.MPool) {
	for _, bat := range in.batches {
		bat.Clean(mp)
	}
	in.batches = nil
}
