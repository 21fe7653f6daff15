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

// Package statestream implements the block/superblock
// deduplicating encoding for checkpoint state snapshots.
//
// A state is cut into fixed-size blocks, blocks are grouped
// into fixed-size superblocks of block IDs, and both levels
// are deduplicated through content-addressed indexes that
// assign dense integer IDs. Successive checkpoints of a
// deterministic session are highly similar, so most blocks
// and superblocks resolve to IDs that are already known and
// a whole checkpoint shrinks to a short sequence of
// superblock IDs.
//
// The wire format is a stream of MessagePack-framed tokens:
//
//	Start(0) frame
//	NewBlock(1) id bin(blockSize)
//	NewSuperblock(2) id array(superblockSize × uint)
//	SuperblockSeq(3) array(K × uint)
//
// Every ID is declared before it is referenced. Encoder and
// Decoder share a long-lived Context so that IDs remain
// stable across all checkpoints of one replay.
package statestream

import (
	"errors"
)

// Tokens of the state-stream wire format, carried as
// msgpack uints.
const (
	tokenStart         = 0
	tokenNewBlock      = 1
	tokenNewSuperblock = 2
	tokenSuperblockSeq = 3
)

var (
	// ErrTooManyStarts indicates a Start token inside an
	// already-started record.
	ErrTooManyStarts = errors.New("statestream: too many start tokens in stream")
	// ErrInvalidToken indicates a token byte outside the
	// defined set.
	ErrInvalidToken = errors.New("statestream: invalid token")
	// ErrUnexpectedToken indicates a defined token arriving
	// in a state that does not accept it.
	ErrUnexpectedToken = errors.New("statestream: unexpected token")
	// ErrBlockSize indicates a NewBlock payload whose length
	// is not the context's block size.
	ErrBlockSize = errors.New("statestream: block is the wrong size")
	// ErrSuperblockSize indicates a NewSuperblock array whose
	// length is not the context's superblock size.
	ErrSuperblockSize = errors.New("statestream: superblock is the wrong size")
	// ErrBadInsert indicates a NewBlock or NewSuperblock
	// declaration whose ID is not the next dense ID.
	ErrBadInsert = errors.New("statestream: out-of-order index insert")
	// ErrUnknownID indicates a reference to a block or
	// superblock ID that has not been declared.
	ErrUnknownID = errors.New("statestream: reference to undeclared id")
)

// Context is the long-lived state shared by every
// checkpoint of one replay: the two content-addressed
// indexes plus the most recently materialized state.
// One Context belongs to exactly one encoder or decoder
// side; the per-checkpoint Encoder and Decoder objects
// borrow it.
type Context struct {
	blockSize      int
	superblockSize int

	lastState    []byte
	lastSuperseq []uint32

	blocks      *BlockIndex[byte]
	superblocks *BlockIndex[uint32]
}

// NewContext returns a Context for the given block size
// (bytes per block) and superblock size (blocks per
// superblock). Both must be positive.
func NewContext(blockSize, superblockSize int) *Context {
	return &Context{
		blockSize:      blockSize,
		superblockSize: superblockSize,
		blocks:         NewBlockIndex[byte](blockSize),
		superblocks:    NewBlockIndex[uint32](superblockSize),
	}
}

// BlockSize returns the context's bytes-per-block.
func (c *Context) BlockSize() int { return c.blockSize }

// SuperblockSize returns the context's blocks-per-superblock.
func (c *Context) SuperblockSize() int { return c.superblockSize }

// LastState returns the most recently materialized
// checkpoint bytes. Decoder-side only; the returned slice
// aliases the context and is overwritten by the next
// checkpoint.
func (c *Context) LastState() []byte { return c.lastState }

// resizeState adjusts lastState to n bytes, zero-filling
// any extension and preserving the existing prefix.
func (c *Context) resizeState(n int) {
	if n <= len(c.lastState) {
		c.lastState = c.lastState[:n]
		return
	}
	if n <= cap(c.lastState) {
		old := len(c.lastState)
		c.lastState = c.lastState[:n]
		for i := old; i < n; i++ {
			c.lastState[i] = 0
		}
		return
	}
	grown := make([]byte, n)
	copy(grown, c.lastState)
	c.lastState = grown
}
