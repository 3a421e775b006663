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
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

const (
	// GroupNotMatched is the group number BatchFill and BatchMerge skip.
	// Matched groups are numbered from 1.
	GroupNotMatched = 0
)

const (
	nameArrayAgg         = "array_agg"
	nameArrayAggDistinct = "array_agg_distinct"
	nameArrayAggOrdered  = "array_agg_ordered"
)

// AggFuncExec holds the states of one aggregate for many groups.  Groups
// are addressed by index and created by GroupGrow.
type AggFuncExec interface {
	Name() string

	// TypesInfo return the argument types and return type of the function.
	TypesInfo() ([]types.Type, types.Type)

	// IntermediateType is the type SerializeToColumn and
	// ConvertToSerializeFormat write, and Merge reads.
	IntermediateType() types.Type

	GroupGrow(more int) error
	GroupCount() int

	// Fill and BatchFill add the value to the aggregation.
	Fill(groupIndex int, row int, vectors []*vector.Vector) error
	BatchFill(offset int, groups []uint64, vectors []*vector.Vector) error

	// Merge and BatchMerge fold rows of an intermediate column into groups.
	Merge(groupIndex int, row int, partial *vector.Vector) error
	BatchMerge(offset int, groups []uint64, partial *vector.Vector) error

	SerializeToColumn(groupIndex int, to *vector.Vector) error
	// FinalizeToColumn appends the result of one group to an array column.
	// It is called at most once per group; on failure a placeholder row is
	// still appended to keep the column aligned with the groups.
	FinalizeToColumn(groupIndex int, to *vector.Vector) error

	// ConvertToSerializeFormat writes every input row as its own partial
	// result, for rows that skip the local aggregation.
	ConvertToSerializeFormat(src []*vector.Vector, rows int, dst *vector.Vector) error

	Reset(groupIndex int) error
	Size() int64
	Free()
}

// AggSpec describes one ARRAY_AGG call.  ArgTypes[0] is the aggregated
// value, the rest are ORDER BY keys.
type AggSpec struct {
	ArgTypes []types.Type
	Distinct bool
	// per ORDER BY key, IsAsc defaults to ascending when nil.
	IsAsc      []bool
	NullsFirst []bool

	// 0 takes the default.
	DedupHashIndexThreshold int
}

func (spec AggSpec) ordered() bool {
	return len(spec.ArgTypes) > 1
}
