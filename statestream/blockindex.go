// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package statestream

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/replayfmt/rply/stats"

	"github.com/zeebo/xxh3"
	"golang.org/x/exp/slices"
)

// Element is the set of object element types a
// BlockIndex can store: raw state bytes, or the
// block IDs that make up a superblock.
type Element interface {
	~uint8 | ~uint32
}

// BlockIndex is a content-addressed store of fixed-size
// objects. Objects are assigned dense uint32 IDs in
// insertion order; ID 0 is always the all-zero object.
type BlockIndex[T Element] struct {
	index      map[uint64][]uint32 // content hash -> IDs sharing it
	objects    [][]T
	hashes     []uint64
	objectSize int
}

// rawBytes reinterprets obj as its little-endian
// byte representation for hashing.
func rawBytes[T Element](obj []T) []byte {
	if len(obj) == 0 {
		return nil
	}
	n := len(obj) * int(unsafe.Sizeof(obj[0]))
	return unsafe.Slice((*byte)(unsafe.Pointer(&obj[0])), n)
}

func contentHash[T Element](obj []T) uint64 {
	return xxh3.Hash(rawBytes(obj))
}

// NewBlockIndex constructs an index over objects of
// exactly objectSize elements, pre-populated with the
// all-zero object at ID 0.
func NewBlockIndex[T Element](objectSize int) *BlockIndex[T] {
	zeros := make([]T, objectSize)
	h := contentHash(zeros)
	b := &BlockIndex[T]{
		index:      make(map[uint64][]uint32, 4096),
		objects:    [][]T{zeros},
		hashes:     []uint64{h},
		objectSize: objectSize,
	}
	b.index[h] = []uint32{0}
	return b
}

// Len returns the number of stored objects, which is
// also the next ID to be assigned.
func (b *BlockIndex[T]) Len() int { return len(b.objects) }

// Insert stores obj if no equal object is already
// present and returns its ID plus whether it was new.
// len(obj) must equal the index's object size, and the
// ID space must not be exhausted; either violation is a
// caller bug and panics.
func (b *BlockIndex[T]) Insert(obj []T, frame uint64) (uint32, bool) {
	if len(obj) != b.objectSize {
		panic(fmt.Sprintf("statestream: Insert of %d-element object into %d-element index", len(obj), b.objectSize))
	}
	stats.Count(stats.EncHashes, 1)
	h := contentHash(obj)
	for _, id := range b.index[h] {
		stats.Count(stats.EncMemCmps, 1)
		if slices.Equal(obj, b.objects[id]) {
			return id, false
		}
	}
	if uint64(len(b.objects)) > math.MaxUint32 {
		panic("statestream: block index overflow")
	}
	id := uint32(len(b.objects))
	b.objects = append(b.objects, slices.Clone(obj))
	b.hashes = append(b.hashes, h)
	b.index[h] = append(b.index[h], id)
	return id, true
}

// InsertExact appends obj at the given ID, which must be
// the next ID the index would assign. It is used by the
// decoder to rebuild the table in the exact order the
// encoder assigned IDs; no deduplication is performed
// (a well-formed stream only declares genuinely new
// objects). It reports whether the insert happened.
func (b *BlockIndex[T]) InsertExact(id uint32, obj []T, frame uint64) bool {
	if len(obj) != b.objectSize {
		return false
	}
	if uint64(len(b.objects)) != uint64(id) {
		return false
	}
	h := contentHash(obj)
	b.objects = append(b.objects, slices.Clone(obj))
	b.hashes = append(b.hashes, h)
	b.index[h] = append(b.index[h], id)
	return true
}

// Get returns the object stored at id. The returned
// slice aliases the index's storage and must not be
// modified. Out-of-range IDs are a caller bug and panic.
func (b *BlockIndex[T]) Get(id uint32) []T {
	return b.objects[id]
}
