// Copyright 2021 - 2022 Matrix Origin
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

package testutil

import (
	"context"
	"math/rand"
	"strconv"

	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/container/batch"
	"github.com/matrixorigin/arrayagg/pkg/container/types"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
	"github.com/matrixorigin/arrayagg/pkg/vm/process"
)

func NewProcess() *process.Process {
	mp := mpool.MustNewZero()
	return NewProcessWithMPool(mp)
}

func NewProcessWithMPool(mp *mpool.MPool) *process.Process {
	return process.New(context.Background(), "test", mp)
}

func NewBatch(ts []types.Type, random bool, n int, m *mpool.MPool) *batch.Batch {
	bat := batch.NewWithSize(len(ts))
	for i := range bat.Vecs {
		bat.Vecs[i] = NewVector(n, ts[i], m, random, nil)
	}
	bat.SetRowCount(n)
	return bat
}

func NewBatchWithVectors(vs []*vector.Vector) *batch.Batch {
	bat := batch.NewWithSize(len(vs))
	copy(bat.Vecs, vs)
	if len(vs) > 0 {
		bat.SetRowCount(vs[0].Length())
	}
	return bat
}

// NewVector builds a vector of n rows, or of Values when it is not nil.
func NewVector(n int, typ types.Type, m *mpool.MPool, random bool, Values interface{}) *vector.Vector {
	switch typ.Oid {
	case types.T_int32:
		if vs, ok := Values.([]int32); ok {
			return NewInt32Vector(n, typ, m, random, vs)
		}
		return NewInt32Vector(n, typ, m, random, nil)
	case types.T_int64:
		if vs, ok := Values.([]int64); ok {
			return NewInt64Vector(n, typ, m, random, vs)
		}
		return NewInt64Vector(n, typ, m, random, nil)
	case types.T_float64:
		if vs, ok := Values.([]float64); ok {
			return NewFloat64Vector(n, typ, m, random, vs)
		}
		return NewFloat64Vector(n, typ, m, random, nil)
	case types.T_char, types.T_varchar, types.T_text:
		if vs, ok := Values.([]string); ok {
			return NewStringVector(n, typ, m, random, vs)
		}
		return NewStringVector(n, typ, m, random, nil)
	}
	panic("unsupported vector type " + typ.String())
}

func NewInt32Vector(n int, typ types.Type, m *mpool.MPool, random bool, vs []int32) *vector.Vector {
	return newFixedVector(n, typ, m, vs, func(i int) int32 {
		if random {
			return rand.Int31()
		}
		return int32(i)
	})
}

func NewInt64Vector(n int, typ types.Type, m *mpool.MPool, random bool, vs []int64) *vector.Vector {
	return newFixedVector(n, typ, m, vs, func(i int) int64 {
		if random {
			return rand.Int63()
		}
		return int64(i)
	})
}

func NewFloat64Vector(n int, typ types.Type, m *mpool.MPool, random bool, vs []float64) *vector.Vector {
	return newFixedVector(n, typ, m, vs, func(i int) float64 {
		if random {
			return rand.Float64()
		}
		return float64(i)
	})
}

func newFixedVector[T any](n int, typ types.Type, m *mpool.MPool, vs []T, gen func(int) T) *vector.Vector {
	vec := vector.NewVec(typ)
	if vs == nil {
		vs = make([]T, n)
		for i := range vs {
			vs[i] = gen(i)
		}
	}
	if err := vector.AppendFixedList(vec, vs, nil, m); err != nil {
		vec.Free(m)
		return nil
	}
	return vec
}

func NewStringVector(n int, typ types.Type, m *mpool.MPool, random bool, vs []string) *vector.Vector {
	vec := vector.NewVec(typ)
	if vs != nil {
		if err := vector.AppendStringList(vec, vs, nil, m); err != nil {
			vec.Free(m)
			return nil
		}
		return vec
	}
	for i := 0; i < n; i++ {
		v := i
		if random {
			v = rand.Int()
		}
		if err := vector.AppendBytes(vec, []byte(strconv.Itoa(v)), false, m); err != nil {
			vec.Free(m)
			return nil
		}
	}
	return vec
}

// NewNullableInt64Vector builds an int64 vector whose rows listed in
// nullRows are null.
func NewNullableInt64Vector(m *mpool.MPool, vs []int64, nullRows ...int) *vector.Vector {
	isNulls := make([]bool, len(vs))
	for _, r := range nullRows {
		isNulls[r] = true
	}
	vec := vector.NewVec(types.T_int64.ToType())
	if err := vector.AppendFixedList(vec, vs, isNulls, m); err != nil {
		vec.Free(m)
		return nil
	}
	return vec
}

// NewNullableStringVector is NewNullableInt64Vector for varchar.
func NewNullableStringVector(m *mpool.MPool, vs []string, nullRows ...int) *vector.Vector {
	isNulls := make([]bool, len(vs))
	for _, r := range nullRows {
		isNulls[r] = true
	}
	vec := vector.NewVec(types.T_varchar.ToType())
	if err := vector.AppendStringList(vec, vs, isNulls, m); err != nil {
		vec.Free(m)
		return nil
	}
	return vec
}
