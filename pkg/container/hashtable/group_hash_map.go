// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hashtable

// GroupHashMapCell maps a key hash to a group number.  Group numbers start
// from 1, a zero Mapped marks an empty bucket.
type GroupHashMapCell struct {
	Hash   uint64
	Mapped uint64
}

// GroupHashMap is an open addressing table from composite keys to dense
// group numbers.  It stores only hashes; the caller owns the keys and
// resolves collisions through the equal callback, which receives the
// candidate group number.
type GroupHashMap struct {
	bucketCntBits uint8
	bucketCnt     uint64
	elemCnt       uint64
	maxElemCnt    uint64
	bucketData    []GroupHashMapCell
}

func (ht *GroupHashMap) Init() {
	ht.bucketCntBits = kInitialBucketCntBits
	ht.bucketCnt = kInitialBucketCnt
	ht.elemCnt = 0
	ht.maxElemCnt = maxElemCnt(kInitialBucketCnt)
	ht.bucketData = make([]GroupHashMapCell, kInitialBucketCnt)
}

// PreAlloc grows the table so that n more groups fit without rehashing.
func (ht *GroupHashMap) PreAlloc(n uint64) {
	ht.resizeOnDemand(n)
}

// Insert returns the group of the key with this hash, creating a new one
// when no stored group is equal.
func (ht *GroupHashMap) Insert(hash uint64, equal func(group uint64) bool) (group uint64, inserted bool) {
	ht.resizeOnDemand(1)

	cell := ht.findBucket(hash, equal)
	if cell.Mapped == 0 {
		ht.elemCnt++
		cell.Hash = hash
		cell.Mapped = ht.elemCnt
		return cell.Mapped, true
	}
	return cell.Mapped, false
}

// Find returns the group of the key, or 0 when it was never inserted.
func (ht *GroupHashMap) Find(hash uint64, equal func(group uint64) bool) uint64 {
	return ht.findBucket(hash, equal).Mapped
}

func (ht *GroupHashMap) Cardinality() uint64 {
	return ht.elemCnt
}

func (ht *GroupHashMap) BucketCount() uint64 {
	return ht.bucketCnt
}

func (ht *GroupHashMap) Free() {
	ht.bucketData = nil
	ht.bucketCnt = 0
	ht.elemCnt = 0
	ht.maxElemCnt = 0
}

func (ht *GroupHashMap) findBucket(hash uint64, equal func(group uint64) bool) *GroupHashMapCell {
	mask := ht.bucketCnt - 1
	for idx := hash & mask; true; idx = (idx + 1) & mask {
		cell := &ht.bucketData[idx]
		if cell.Mapped == 0 {
			return cell
		}
		if cell.Hash == hash && equal(cell.Mapped) {
			return cell
		}
	}
	return nil
}

func (ht *GroupHashMap) resizeOnDemand(n uint64) {
	if ht.bucketData == nil {
		ht.Init()
	}
	targetCnt := ht.elemCnt + n
	if targetCnt <= ht.maxElemCnt {
		return
	}

	newBucketCntBits := ht.bucketCntBits + 2
	newBucketCnt := uint64(1) << newBucketCntBits
	newMaxElemCnt := maxElemCnt(newBucketCnt)
	for newMaxElemCnt < targetCnt {
		newBucketCntBits++
		newBucketCnt <<= 1
		newMaxElemCnt = maxElemCnt(newBucketCnt)
	}

	oldBucketData := ht.bucketData

	ht.bucketCntBits = newBucketCntBits
	ht.bucketCnt = newBucketCnt
	ht.maxElemCnt = newMaxElemCnt
	ht.bucketData = make([]GroupHashMapCell, newBucketCnt)

	mask := newBucketCnt - 1
	for i := range oldBucketData {
		cell := &oldBucketData[i]
		if cell.Mapped == 0 {
			continue
		}
		for idx := cell.Hash & mask; true; idx = (idx + 1) & mask {
			if ht.bucketData[idx].Mapped == 0 {
				ht.bucketData[idx] = *cell
				break
			}
		}
	}
}
