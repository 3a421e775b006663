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

package arena

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
)

func TestArenaCopy(t *testing.T) {
	convey.Convey("arena keeps copies stable across chunk switches", t, func() {
		mp := mpool.MustNewZero()
		defer mpool.DeleteMPool(mp)
		a := New(mp, 16)

		var spans []Span
		var want [][]byte
		for i := 0; i < 100; i++ {
			key := []byte(fmt.Sprintf("key-%d", i))
			s, err := a.Copy(key)
			convey.So(err, convey.ShouldBeNil)
			spans = append(spans, s)
			want = append(want, key)
			// mutate the source to prove the arena copied it
			key[0] = 'X'
		}
		for i, s := range spans {
			convey.So(s.Len(), convey.ShouldEqual, len(want[i]))
			got := a.Bytes(s)
			convey.So(got[1:], convey.ShouldResemble, want[i][1:])
			convey.So(got[0], convey.ShouldEqual, byte('k'))
		}
		convey.So(a.Size(), convey.ShouldEqual, mp.CurrNB())

		a.Free()
		convey.So(mp.CurrNB(), convey.ShouldEqual, 0)
		convey.So(a.Size(), convey.ShouldEqual, 0)
	})
}

func TestArenaOversized(t *testing.T) {
	convey.Convey("keys larger than a chunk get their own chunk", t, func() {
		mp := mpool.MustNewZero()
		defer mpool.DeleteMPool(mp)
		a := New(mp, 8)

		small, err := a.Copy([]byte("abc"))
		convey.So(err, convey.ShouldBeNil)
		big := bytes.Repeat([]byte("z"), 100)
		bigSpan, err := a.Copy(big)
		convey.So(err, convey.ShouldBeNil)
		after, err := a.Copy([]byte("def"))
		convey.So(err, convey.ShouldBeNil)

		convey.So(string(a.Bytes(small)), convey.ShouldEqual, "abc")
		convey.So(a.Bytes(bigSpan), convey.ShouldResemble, big)
		convey.So(string(a.Bytes(after)), convey.ShouldEqual, "def")
		convey.So(a.Size(), convey.ShouldEqual, 8+100+8)
		a.Free()
	})

	convey.Convey("empty keys need no memory", t, func() {
		a := New(nil, 0)
		s, err := a.Copy(nil)
		convey.So(err, convey.ShouldBeNil)
		convey.So(s.Len(), convey.ShouldEqual, 0)
		convey.So(a.Bytes(s), convey.ShouldBeNil)
		convey.So(a.Size(), convey.ShouldEqual, 0)
	})
}

func TestArenaOOM(t *testing.T) {
	convey.Convey("arena surfaces pool exhaustion", t, func() {
		mp, err := mpool.NewMPool("arena-oom", 16, 0)
		convey.So(err, convey.ShouldBeNil)
		defer mpool.DeleteMPool(mp)
		a := New(mp, 16)
		_, err = a.Copy([]byte("0123456789"))
		convey.So(err, convey.ShouldBeNil)
		_, err = a.Copy([]byte("0123456789"))
		convey.So(err, convey.ShouldNotBeNil)
		a.Free()
	})
}
