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
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

// orderedState keeps the value and every ORDER BY key of one group as row
// aligned columns, columns[0] being the value.  The number of columns is
// fixed at creation.  Finalize frees the columns.
type orderedState struct {
	columns   []*vector.Vector
	finalized bool
}

func newOrderedState(argTypes []types.Type) *orderedState {
	s := &orderedState{columns: make([]*vector.Vector, len(argTypes))}
	for i, typ := range argTypes {
		s.columns[i] = vector.NewVec(typ)
	}
	return s
}

// update appends row of every input.  A null or const null source appends
// a null, a const source appends its single value.
func (s *orderedState) update(vectors []*vector.Vector, row int, mp *mpool.MPool) error {
	for i, vec := range vectors {
		if err := s.columns[i].UnionOne(vec, int64(row), mp); err != nil {
			return err
		}
	}
	return nil
}

// merge appends the runs of record[row], a struct of one array per column.
func (s *orderedState) merge(fc *FunctionContext, record *vector.Vector, row int, mp *mpool.MPool) error {
	if record.IsNull(uint64(row)) {
		return nil
	}
	if record.IsConst() {
		row = 0
	}
	fields := record.StructFields()
	count := -1
	for _, f := range fields {
		start, end := f.ArrayRange(row)
		if count >= 0 && end-start != count {
			return moerr.NewSizeNotMatch(fc.Ctx(), fc.name+" partial result has arrays of different length")
		}
		count = end - start
	}
	for i, f := range fields {
		start, end := f.ArrayRange(row)
		if err := s.columns[i].UnionBatch(f.ArrayElements(), int64(start), end-start, nil, mp); err != nil {
			return err
		}
	}
	return nil
}

func (s *orderedState) length() int {
	return s.columns[0].Length()
}

func (s *orderedState) reset(argTypes []types.Type) {
	for i, c := range s.columns {
		if c == nil {
			s.columns[i] = vector.NewVec(argTypes[i])
		} else {
			c.Reset()
		}
	}
	s.finalized = false
}

func (s *orderedState) size() int64 {
	var sz int64
	for _, c := range s.columns {
		if c != nil {
			sz += int64(c.Size())
		}
	}
	return sz
}

func (s *orderedState) free(mp *mpool.MPool) {
	for i, c := range s.columns {
		if c != nil {
			c.Free(mp)
			s.columns[i] = nil
		}
	}
}

// arrayAggOrderedExec is array_agg([distinct] x order by k1, ..., kn).
// Its partial result is struct<array<x>, array<k1>, ..., array<kn>>.
type arrayAggOrderedExec struct {
	fc        *FunctionContext
	retType   types.Type
	interType types.Type
	groups    []*orderedState
}

func newArrayAggOrderedExec(fc *FunctionContext) *arrayAggOrderedExec {
	fields := make([]types.Type, len(fc.argTypes))
	for i, typ := range fc.argTypes {
		fields[i] = types.NewArrayType(typ)
	}
	return &arrayAggOrderedExec{
		fc:        fc,
		retType:   types.NewArrayType(fc.argTypes[0]),
		interType: types.NewStructType(fields...),
	}
}

func (exec *arrayAggOrderedExec) Name() string {
	return exec.fc.name
}

func (exec *arrayAggOrderedExec) TypesInfo() ([]types.Type, types.Type) {
	return exec.fc.argTypes, exec.retType
}

func (exec *arrayAggOrderedExec) IntermediateType() types.Type {
	return exec.interType
}

func (exec *arrayAggOrderedExec) GroupGrow(more int) error {
	for i := 0; i < more; i++ {
		exec.groups = append(exec.groups, newOrderedState(exec.fc.argTypes))
	}
	return nil
}

func (exec *arrayAggOrderedExec) GroupCount() int {
	return len(exec.groups)
}

func (exec *arrayAggOrderedExec) checkInputs(vectors []*vector.Vector, row int) error {
	if len(vectors) != len(exec.fc.argTypes) {
		return exec.fc.fail(moerr.NewInvalidInput(exec.fc.Ctx(),
			"%s gets %d columns, want %d", exec.fc.name, len(vectors), len(exec.fc.argTypes)))
	}
	for _, vec := range vectors {
		if err := checkRow(exec.fc, vec, row); err != nil {
			return err
		}
	}
	return nil
}

func (exec *arrayAggOrderedExec) Fill(groupIndex int, row int, vectors []*vector.Vector) error {
	if err := exec.checkInputs(vectors, row); err != nil {
		return err
	}
	return exec.fc.fail(exec.groups[groupIndex].update(vectors, row, exec.fc.Mp()))
}

func (exec *arrayAggOrderedExec) BatchFill(offset int, groups []uint64, vectors []*vector.Vector) error {
	if len(groups) > 0 {
		if err := exec.checkInputs(vectors, offset+len(groups)-1); err != nil {
			return err
		}
	}
	mp := exec.fc.Mp()
	for i, group := range groups {
		if group == GroupNotMatched {
			continue
		}
		if err := exec.groups[group-1].update(vectors, offset+i, mp); err != nil {
			return exec.fc.fail(err)
		}
	}
	return nil
}

func (exec *arrayAggOrderedExec) Merge(groupIndex int, row int, partial *vector.Vector) error {
	if err := checkIntermediate(exec.fc, partial, exec.interType, row); err != nil {
		return err
	}
	s := exec.groups[groupIndex]
	return exec.fc.fail(s.merge(exec.fc, partial, row, exec.fc.Mp()))
}

func (exec *arrayAggOrderedExec) BatchMerge(offset int, groups []uint64, partial *vector.Vector) error {
	for i, group := range groups {
		if group == GroupNotMatched {
			continue
		}
		if err := exec.Merge(int(group)-1, offset+i, partial); err != nil {
			return err
		}
	}
	return nil
}

// SerializeToColumn appends the record of one array per column.
func (exec *arrayAggOrderedExec) SerializeToColumn(groupIndex int, to *vector.Vector) error {
	if !to.GetType().Eq(exec.interType) {
		return exec.fc.fail(moerr.NewInvalidInput(exec.fc.Ctx(),
			"%s serializes to %s, want %s", exec.fc.name, to.GetType(), exec.interType))
	}
	s := exec.groups[groupIndex]
	if s.finalized {
		return exec.fc.fail(moerr.NewInvalidState(exec.fc.Ctx(),
			"%s serializes finalized group %d", exec.fc.name, groupIndex))
	}
	mp := exec.fc.Mp()
	for i, f := range to.StructFields() {
		if err := vector.AppendArrayRange(f, s.columns[i], 0, s.columns[i].Length(), mp); err != nil {
			return exec.fc.fail(err)
		}
	}
	return exec.fc.fail(vector.AppendStructRow(to, false, mp))
}

func (exec *arrayAggOrderedExec) FinalizeToColumn(groupIndex int, to *vector.Vector) error {
	s := exec.groups[groupIndex]
	if s.finalized {
		return finalizeFailed(exec.fc, to,
			moerr.NewInvalidState(exec.fc.Ctx(), "%s finalizes group %d twice", exec.fc.name, groupIndex))
	}
	s.finalized = true
	if err := checkDestination(exec.fc, to, exec.fc.argTypes[0]); err != nil {
		s.free(exec.fc.Mp())
		return finalizeFailed(exec.fc, to, err)
	}

	mp := exec.fc.Mp()
	defer s.free(mp)
	values, err := sortAndDedup(exec.fc, s.columns)
	if err != nil {
		return finalizeFailed(exec.fc, to, err)
	}
	if err = vector.AppendArrayRange(to, values, 0, values.Length(), mp); err != nil {
		return finalizeFailed(exec.fc, to, err)
	}
	return nil
}

// ConvertToSerializeFormat writes every row as a record of one element
// arrays.
func (exec *arrayAggOrderedExec) ConvertToSerializeFormat(src []*vector.Vector, rows int, dst *vector.Vector) error {
	if rows > 0 {
		if err := exec.checkInputs(src, rows-1); err != nil {
			return err
		}
	}
	if !dst.GetType().Eq(exec.interType) {
		return exec.fc.fail(moerr.NewInvalidInput(exec.fc.Ctx(),
			"%s serializes to %s, want %s", exec.fc.name, dst.GetType(), exec.interType))
	}
	mp := exec.fc.Mp()
	fields := dst.StructFields()
	for r := 0; r < rows; r++ {
		for i, f := range fields {
			if err := vector.AppendArrayRange(f, src[i], int64(r), 1, mp); err != nil {
				return exec.fc.fail(err)
			}
		}
		if err := vector.AppendStructRow(dst, false, mp); err != nil {
			return exec.fc.fail(err)
		}
	}
	return nil
}

func (exec *arrayAggOrderedExec) Reset(groupIndex int) error {
	exec.groups[groupIndex].reset(exec.fc.argTypes)
	return nil
}

func (exec *arrayAggOrderedExec) Size() int64 {
	var sz int64
	for _, s := range exec.groups {
		sz += s.size()
	}
	return sz
}

func (exec *arrayAggOrderedExec) Free() {
	for _, s := range exec.groups {
		s.free(exec.fc.Mp())
	}
	exec.groups = nil
}
