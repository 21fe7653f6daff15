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
	"io"
	"math"

	"github.com/replayfmt/rply/stats"

	"github.com/vmihailenco/msgpack/v5"
)

// decoder parse states
const (
	waitForStart = iota
	waitForSuperblockSeq
)

// Decoder reads one state-stream record and materializes
// the checkpoint it describes. It is short-lived, borrowing
// the replay's Context and the input stream.
//
// Decoder is a slightly degenerate io.Reader: the first
// Read pulls tokens from the inner reader until the record
// is complete, then Reads drain the materialized state;
// once drained, Read returns io.EOF.
type Decoder struct {
	ctx       *Context
	dec       *msgpack.Decoder
	stateSize int
	finished  bool
	cursor    int
}

// NewDecoder returns a Decoder reading one record from r
// into ctx. stateSize is the externally supplied length of
// the checkpoint being reconstructed.
func NewDecoder(r io.Reader, ctx *Context, stateSize int) *Decoder {
	return &Decoder{ctx: ctx, dec: msgpack.NewDecoder(r), stateSize: stateSize}
}

func (d *Decoder) Read(p []byte) (int, error) {
	if !d.finished {
		defer stats.Time(stats.DecodeStatestream).Stop()
		if err := d.decode(); err != nil {
			return 0, err
		}
		d.finished = true
		stats.Count(stats.DecTotalKBsOut, uint64(d.stateSize)/1024)
	}
	return d.readout(p)
}

func (d *Decoder) readout(p []byte) (int, error) {
	if d.cursor >= d.stateSize {
		return 0, io.EOF
	}
	n := copy(p, d.ctx.lastState[d.cursor:d.stateSize])
	d.cursor += n
	return n, nil
}

// eof inside a record is always unexpected
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (d *Decoder) readID() (uint32, error) {
	u, err := d.dec.DecodeUint64()
	if err != nil {
		return 0, noEOF(err)
	}
	if u > math.MaxUint32 {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownID, u)
	}
	return uint32(u), nil
}

func (d *Decoder) decode() error {
	state := waitForStart
	var frame uint64
	for {
		tok, err := d.dec.DecodeUint64()
		if err != nil {
			return noEOF(err)
		}
		if tok > tokenSuperblockSeq {
			return fmt.Errorf("%w: %d", ErrInvalidToken, tok)
		}
		if tok == tokenStart {
			if state != waitForStart {
				return ErrTooManyStarts
			}
			frame, err = d.dec.DecodeUint64()
			if err != nil {
				return noEOF(err)
			}
			state = waitForSuperblockSeq
			continue
		}
		if state != waitForSuperblockSeq {
			return fmt.Errorf("%w: token %d before start", ErrUnexpectedToken, tok)
		}
		switch tok {
		case tokenNewBlock:
			if err := d.newBlock(frame); err != nil {
				return err
			}
		case tokenNewSuperblock:
			if err := d.newSuperblock(frame); err != nil {
				return err
			}
		case tokenSuperblockSeq:
			return d.superblockSeq()
		}
	}
}

func (d *Decoder) newBlock(frame uint64) error {
	id, err := d.readID()
	if err != nil {
		return err
	}
	blk, err := d.dec.DecodeBytes()
	if err != nil {
		return noEOF(err)
	}
	if len(blk) != d.ctx.blockSize {
		return fmt.Errorf("%w: block %d has %d bytes, want %d",
			ErrBlockSize, id, len(blk), d.ctx.blockSize)
	}
	if !d.ctx.blocks.InsertExact(id, blk, frame) {
		return fmt.Errorf("%w: block %d on frame %d", ErrBadInsert, id, frame)
	}
	stats.Count(stats.DecNewBlocks, 1)
	return nil
}

func (d *Decoder) newSuperblock(frame uint64) error {
	id, err := d.readID()
	if err != nil {
		return err
	}
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return noEOF(err)
	}
	if n != d.ctx.superblockSize {
		return fmt.Errorf("%w: superblock %d has %d entries, want %d",
			ErrSuperblockSize, id, n, d.ctx.superblockSize)
	}
	sb := make([]uint32, n)
	for i := range sb {
		bid, err := d.readID()
		if err != nil {
			return err
		}
		if int64(bid) >= int64(d.ctx.blocks.Len()) {
			return fmt.Errorf("%w: block %d in superblock %d", ErrUnknownID, bid, id)
		}
		sb[i] = bid
	}
	if !d.ctx.superblocks.InsertExact(id, sb, frame) {
		return fmt.Errorf("%w: superblock %d on frame %d", ErrBadInsert, id, frame)
	}
	stats.Count(stats.DecNewSuperblocks, 1)
	return nil
}

func (d *Decoder) superblockSeq() error {
	k, err := d.dec.DecodeArrayLen()
	if err != nil {
		return noEOF(err)
	}
	bs := d.ctx.blockSize
	sbBytes := d.ctx.superblockSize * bs
	d.ctx.resizeState(d.stateSize)
	superseq := make([]uint32, k)
	for i := 0; i < k; i++ {
		id, err := d.readID()
		if err != nil {
			return err
		}
		if int64(id) >= int64(d.ctx.superblocks.Len()) {
			return fmt.Errorf("%w: superblock %d in sequence", ErrUnknownID, id)
		}
		superseq[i] = id
		stats.Count(stats.DecTotalSuperblocks, 1)
		sb := d.ctx.superblocks.Get(id)
		for j, bid := range sb {
			start := i*sbBytes + j*bs
			if start > d.stateSize {
				start = d.stateSize
			}
			end := start + bs
			if end > d.stateSize {
				end = d.stateSize
			}
			if end <= start {
				// trailing padding in the last superblock
				break
			}
			if int64(bid) >= int64(d.ctx.blocks.Len()) {
				return fmt.Errorf("%w: block %d in superblock %d", ErrUnknownID, bid, id)
			}
			copy(d.ctx.lastState[start:end], d.ctx.blocks.Get(bid)[:end-start])
		}
	}
	d.ctx.lastSuperseq = superseq
	return nil
}
