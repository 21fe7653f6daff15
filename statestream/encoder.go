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
	"io"

	"github.com/replayfmt/rply/stats"

	"github.com/vmihailenco/msgpack/v5"
)

// countWriter tracks the number of bytes passed through
// to the underlying writer.
type countWriter struct {
	w io.Writer
	n int
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// Encoder writes one checkpoint as a state-stream record.
// It is short-lived: it borrows the replay's Context and
// the output stream for the duration of one
// EncodeCheckpoint call.
type Encoder struct {
	ctx *Context
	w   io.Writer
}

// NewEncoder returns an Encoder writing to w using the
// replay-wide ctx.
func NewEncoder(w io.Writer, ctx *Context) *Encoder {
	return &Encoder{ctx: ctx, w: w}
}

// EncodeCheckpoint encodes state as one state-stream
// record and returns the number of bytes written.
//
// Blocks are visited in address order; each block that is
// not already present in the block index is declared with
// a NewBlock token, then new superblocks are declared, and
// finally the superblock sequence covering the whole state
// is emitted. The trailing block is zero-padded to the
// block size; trailing all-zero padding blocks in the last
// superblock resolve to ID 0 without being hashed.
func (e *Encoder) EncodeCheckpoint(state []byte, frame uint64) (int, error) {
	defer stats.Time(stats.EncodeStatestream).Stop()
	cw := &countWriter{w: e.w}
	enc := msgpack.NewEncoder(cw)

	if err := enc.EncodeUint(tokenStart); err != nil {
		return cw.n, err
	}
	if err := enc.EncodeUint(frame); err != nil {
		return cw.n, err
	}

	bs := e.ctx.blockSize
	sbs := e.ctx.superblockSize
	nblocks := (len(state) + bs - 1) / bs
	nsuper := (nblocks + sbs - 1) / sbs

	// block IDs in address order, padded with the zero
	// block out to a whole number of superblocks
	ids := make([]uint32, nsuper*sbs)
	var pad []byte
	for i := 0; i < nblocks; i++ {
		off := i * bs
		var blk []byte
		if off+bs <= len(state) {
			blk = state[off : off+bs]
		} else {
			if pad == nil {
				pad = make([]byte, bs)
			}
			n := copy(pad, state[off:])
			for j := n; j < bs; j++ {
				pad[j] = 0
			}
			blk = pad
		}
		id, isNew := e.ctx.blocks.Insert(blk, frame)
		stats.Count(stats.EncTotalBlocks, 1)
		if isNew {
			if err := enc.EncodeUint(tokenNewBlock); err != nil {
				return cw.n, err
			}
			if err := enc.EncodeUint(uint64(id)); err != nil {
				return cw.n, err
			}
			if err := enc.EncodeBytes(blk); err != nil {
				return cw.n, err
			}
		} else {
			stats.Count(stats.EncReusedBlocks, 1)
		}
		ids[i] = id
	}
	stats.Count(stats.EncSkippedBlocks, uint64(nsuper*sbs-nblocks))

	superseq := make([]uint32, nsuper)
	for i := 0; i < nsuper; i++ {
		sb := ids[i*sbs : (i+1)*sbs]
		id, isNew := e.ctx.superblocks.Insert(sb, frame)
		stats.Count(stats.EncTotalSuperblocks, 1)
		if isNew {
			if err := enc.EncodeUint(tokenNewSuperblock); err != nil {
				return cw.n, err
			}
			if err := enc.EncodeUint(uint64(id)); err != nil {
				return cw.n, err
			}
			if err := enc.EncodeArrayLen(sbs); err != nil {
				return cw.n, err
			}
			for _, bid := range sb {
				if err := enc.EncodeUint(uint64(bid)); err != nil {
					return cw.n, err
				}
			}
		} else {
			stats.Count(stats.EncReusedSuperblocks, 1)
		}
		superseq[i] = id
	}

	if err := enc.EncodeUint(tokenSuperblockSeq); err != nil {
		return cw.n, err
	}
	if err := enc.EncodeArrayLen(nsuper); err != nil {
		return cw.n, err
	}
	for _, id := range superseq {
		if err := enc.EncodeUint(uint64(id)); err != nil {
			return cw.n, err
		}
	}
	e.ctx.lastSuperseq = superseq

	stats.Count(stats.EncTotalKBsIn, uint64(len(state))/1024)
	stats.Count(stats.EncTotalKBsOut, uint64(cw.n)/1024)
	return cw.n, nil
}
