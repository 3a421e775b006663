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
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

// arrayAggState is the array_agg state of one group.
//
// Without distinct, elems holds every not null value in arrival order and
// len(elems) + nullCount is the number of rows applied.  With distinct the
// values live in set, elems is filled from it when read, and nullCount is
// 0 or 1.
type arrayAggState struct {
	elems     *vector.Vector
	nullCount int
	set       distinctSet
	finalized bool
}

func newArrayAggState(typ types.Type, distinct bool, mp *mpool.MPool) (*arrayAggState, error) {
	s := &arrayAggState{elems: vector.NewVec(typ)}
	if distinct {
		set, err := newDistinctSet(typ, mp)
		if err != nil {
			return nil, err
		}
		s.set = set
	}
	return s, nil
}

// update appends values[offset, offset+count), which are all not null.
func (s *arrayAggState) update(values *vector.Vector, offset, count int, mp *mpool.MPool) error {
	if s.set == nil {
		return s.elems.UnionBatch(values, int64(offset), count, nil, mp)
	}
	for i := offset; i < offset+count; i++ {
		if _, err := s.set.insert(values, i); err != nil {
			return err
		}
	}
	return nil
}

func (s *arrayAggState) appendNull(count int) {
	if count <= 0 {
		return
	}
	if s.set != nil {
		s.nullCount = 1
		return
	}
	s.nullCount += count
}

// dataColumn returns the not null elements.  In distinct mode the values
// added to the set since the last read are appended first.
func (s *arrayAggState) dataColumn(mp *mpool.MPool) (*vector.Vector, error) {
	if s.set != nil {
		if err := s.set.materialize(s.elems, s.elems.Length(), mp); err != nil {
			return nil, err
		}
	}
	return s.elems, nil
}

// merge folds the array cell partial[row] into the state: runs of not null
// elements go to update and null elements to appendNull.
func (s *arrayAggState) merge(partial *vector.Vector, row int, mp *mpool.MPool) error {
	if partial.IsNull(uint64(row)) {
		return nil
	}
	if partial.IsConst() {
		row = 0
	}
	start, end := partial.ArrayRange(row)
	elems := partial.ArrayElements()
	for i := start; i < end; {
		j := i
		if elems.IsNull(uint64(i)) {
			for j < end && elems.IsNull(uint64(j)) {
				j++
			}
			s.appendNull(j - i)
		} else {
			for j < end && !elems.IsNull(uint64(j)) {
				j++
			}
			if err := s.update(elems, i, j-i, mp); err != nil {
				return err
			}
		}
		i = j
	}
	return nil
}

// writeCell appends one array cell: the elements then nullCount nulls.
func (s *arrayAggState) writeCell(to *vector.Vector, mp *mpool.MPool) error {
	data, err := s.dataColumn(mp)
	if err != nil {
		return err
	}
	return vector.AppendArrayElement(to, data, s.nullCount, mp)
}

func (s *arrayAggState) size() int64 {
	sz := int64(s.elems.Size())
	if s.set != nil {
		sz += s.set.memSize()
	}
	return sz
}

func (s *arrayAggState) reset(mp *mpool.MPool) error {
	s.elems.Reset()
	s.nullCount = 0
	s.finalized = false
	if s.set != nil {
		s.set.free()
		set, err := newDistinctSet(*s.elems.GetType(), mp)
		if err != nil {
			return err
		}
		s.set = set
	}
	return nil
}

func (s *arrayAggState) free(mp *mpool.MPool) {
	s.elems.Free(mp)
	if s.set != nil {
		s.set.free()
	}
}

// arrayAggExec is array_agg(x) and array_agg(distinct x).
type arrayAggExec struct {
	fc      *FunctionContext
	argType types.Type
	retType types.Type
	groups  []*arrayAggState
}

func newArrayAggExec(fc *FunctionContext) *arrayAggExec {
	return &arrayAggExec{
		fc:      fc,
		argType: fc.argTypes[0],
		retType: types.NewArrayType(fc.argTypes[0]),
	}
}

func (exec *arrayAggExec) Name() string {
	return exec.fc.name
}

func (exec *arrayAggExec) TypesInfo() ([]types.Type, types.Type) {
	return []types.Type{exec.argType}, exec.retType
}

// IntermediateType is the final type, a partial result is already an
// array of elements.
func (exec *arrayAggExec) IntermediateType() types.Type {
	return exec.retType
}

func (exec *arrayAggExec) GroupGrow(more int) error {
	for i := 0; i < more; i++ {
		s, err := newArrayAggState(exec.argType, exec.fc.isDistinct, exec.fc.Mp())
		if err != nil {
			return exec.fc.fail(err)
		}
		exec.groups = append(exec.groups, s)
	}
	return nil
}

func (exec *arrayAggExec) GroupCount() int {
	return len(exec.groups)
}

func (exec *arrayAggExec) Fill(groupIndex int, row int, vectors []*vector.Vector) error {
	vec := vectors[0]
	if err := checkRow(exec.fc, vec, row); err != nil {
		return err
	}
	s := exec.groups[groupIndex]
	if vec.IsNull(uint64(row)) {
		s.appendNull(1)
		return nil
	}
	return exec.fc.fail(s.update(vec, row, 1, exec.fc.Mp()))
}

func (exec *arrayAggExec) BatchFill(offset int, groups []uint64, vectors []*vector.Vector) error {
	for i, group := range groups {
		if group == GroupNotMatched {
			continue
		}
		if err := exec.Fill(int(group)-1, offset+i, vectors); err != nil {
			return err
		}
	}
	return nil
}

func (exec *arrayAggExec) Merge(groupIndex int, row int, partial *vector.Vector) error {
	if err := checkIntermediate(exec.fc, partial, exec.retType, row); err != nil {
		return err
	}
	return exec.fc.fail(exec.groups[groupIndex].merge(partial, row, exec.fc.Mp()))
}

func (exec *arrayAggExec) BatchMerge(offset int, groups []uint64, partial *vector.Vector) error {
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

func (exec *arrayAggExec) SerializeToColumn(groupIndex int, to *vector.Vector) error {
	if err := checkDestination(exec.fc, to, exec.argType); err != nil {
		return err
	}
	return exec.fc.fail(exec.groups[groupIndex].writeCell(to, exec.fc.Mp()))
}

func (exec *arrayAggExec) FinalizeToColumn(groupIndex int, to *vector.Vector) error {
	s := exec.groups[groupIndex]
	if s.finalized {
		return finalizeFailed(exec.fc, to,
			moerr.NewInvalidState(exec.fc.Ctx(), "%s finalizes group %d twice", exec.fc.name, groupIndex))
	}
	s.finalized = true
	if err := checkDestination(exec.fc, to, exec.argType); err != nil {
		return finalizeFailed(exec.fc, to, err)
	}
	if err := s.writeCell(to, exec.fc.Mp()); err != nil {
		return finalizeFailed(exec.fc, to, err)
	}
	return nil
}

// ConvertToSerializeFormat wraps every row into a one element array.
func (exec *arrayAggExec) ConvertToSerializeFormat(src []*vector.Vector, rows int, dst *vector.Vector) error {
	vec := src[0]
	if rows > 0 {
		if err := checkRow(exec.fc, vec, rows-1); err != nil {
			return err
		}
	}
	if err := checkDestination(exec.fc, dst, exec.argType); err != nil {
		return err
	}
	mp := exec.fc.Mp()
	for i := 0; i < rows; i++ {
		var err error
		if vec.IsNull(uint64(i)) {
			err = vector.AppendArrayElement(dst, nil, 1, mp)
		} else {
			err = vector.AppendArrayRange(dst, vec, int64(i), 1, mp)
		}
		if err != nil {
			return exec.fc.fail(err)
		}
	}
	return nil
}

func (exec *arrayAggExec) Reset(groupIndex int) error {
	return exec.fc.fail(exec.groups[groupIndex].reset(exec.fc.Mp()))
}

func (exec *arrayAggExec) Size() int64 {
	var sz int64
	for _, s := range exec.groups {
		sz += s.size()
	}
	return sz
}

func (exec *arrayAggExec) Free() {
	for _, s := range exec.groups {
		s.free(exec.fc.Mp())
	}
	exec.groups = nil
}

func checkRow(fc *FunctionContext, vec *vector.Vector, row int) error {
	if row < 0 || row >= vec.Length() {
		return fc.fail(moerr.NewAggRowIndexOutOfRange(fc.Ctx(), fc.name, row, vec.Length()))
	}
	return nil
}

// checkDestination requires an array column of elem.
func checkDestination(fc *FunctionContext, to *vector.Vector, elem types.Type) error {
	typ := to.GetType()
	if typ.Oid != types.T_array || !typ.Elem().Eq(elem) {
		return fc.fail(moerr.NewAggDestinationShape(fc.Ctx(), fc.name, typ.String()))
	}
	return nil
}

func checkIntermediate(fc *FunctionContext, partial *vector.Vector, typ types.Type, row int) error {
	if !partial.GetType().Eq(typ) {
		return fc.fail(moerr.NewInvalidInput(fc.Ctx(), "%s merges %s, want %s", fc.name, partial.GetType(), typ))
	}
	return checkRow(fc, partial, row)
}

// finalizeFailed appends the placeholder row and reports err.
func finalizeFailed(fc *FunctionContext, to *vector.Vector, err error) error {
	fc.SetError(err)
	if e := vector.AppendDefault(to, fc.Mp()); e != nil {
		fc.proc.Error("append placeholder failed", zap.String("agg", fc.name), zap.Error(e))
	}
	return err
}
