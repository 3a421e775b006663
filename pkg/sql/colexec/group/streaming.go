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
	"github.com/matrixorigin/arrayagg/pkg/container/batch"
	"github.com/matrixorigin/arrayagg/pkg/container/vector"
)

// stream forwards a unit to the merger without aggregating it: every row
// becomes its own partial result.  Used once a worker sees mostly distinct
// keys, where the local table would hold one group per row anyway.
func (w *partialWorker) stream(u unit) error {
	mp := w.proc.Mp()
	nkeys := len(w.spec.KeyTypes)

	bat := batch.NewWithSize(nkeys + len(w.execs))
	keys, err := u.window(w.proc, u.bat.Vecs[:nkeys])
	if err != nil {
		return err
	}
	copy(bat.Vecs, keys)
	for row := 0; row < u.count; row++ {
		w.sketch.Insert(hashBytes(keyHash(keys, row)))
	}

	for i, exec := range w.execs {
		args, err := u.window(w.proc, w.argVectors(u.bat, i))
		if err != nil {
			bat.Clean(mp)
			return err
		}
		dst := vector.NewVec(exec.IntermediateType())
		err = exec.ConvertToSerializeFormat(args, u.count, dst)
		freeVectors(args, w.proc)
		if err != nil {
			dst.Free(mp)
			bat.Clean(mp)
			return failed(w.proc, exec, err)
		}
		bat.Vecs[nkeys+i] = dst
	}
	bat.SetRowCount(u.count)
	w.results = append(w.results, bat)
	w.rows += u.count
	return nil
}
