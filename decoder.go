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

package rply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/replayfmt/rply/statestream"
	"github.com/replayfmt/rply/stats"
)

// Decoder reads a replay sequentially: the header and
// initial state are parsed at construction, then ReadFrame
// yields frame records in order. There is no seeking; a
// read error leaves the stream position undefined.
type Decoder struct {
	r            *bufio.Reader
	header       Header
	initialState []byte
	frameNumber  int
	ctx          *statestream.Context
}

// NewDecoder parses the header and the initial-state
// checkpoint from r.
func NewDecoder(r io.Reader) (*Decoder, error) {
	br := bufio.NewReader(r)
	h, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	d := &Decoder{r: br, header: *h}
	if h.Version >= 2 && h.BlockSize > 0 && h.SuperblockSize > 0 {
		d.ctx = statestream.NewContext(int(h.BlockSize), int(h.SuperblockSize))
	}
	if h.Version < 2 {
		d.initialState = make([]byte, h.InitialStateSize)
		if _, err := io.ReadFull(br, d.initialState); err != nil {
			return nil, noEOF(err)
		}
		return d, nil
	}
	if h.InitialStateSize > 0 {
		var f Frame
		if err := d.readCheckpoint(&f); err != nil {
			return nil, err
		}
		d.initialState = f.Checkpoint
	}
	return d, nil
}

// Header returns a copy of the parsed header.
func (d *Decoder) Header() Header { return d.header }

// InitialState returns the uncompressed, unencoded initial
// state bytes.
func (d *Decoder) InitialState() []byte { return d.initialState }

// FrameNumber returns the number of frames read so far.
func (d *Decoder) FrameNumber() int { return d.frameNumber }

// ReadFrame reads the next frame record into f. It returns
// io.EOF when the stream ends cleanly on a record
// boundary, and io.ErrUnexpectedEOF when it ends inside a
// record.
func (d *Decoder) ReadFrame(f *Frame) error {
	defer stats.Time(stats.DecodeFrame).Stop()
	if d.header.Version == 0 {
		return ErrNoCoreRead
	}
	if d.header.Version > 1 {
		// skip over the backref
		var backref [4]byte
		if _, err := io.ReadFull(d.r, backref[:]); err != nil {
			return err
		}
	}
	if err := readFrameEvents(d.r, f); err != nil {
		if d.header.Version > 1 {
			// the backref already started this record
			return noEOF(err)
		}
		return err
	}
	tok, err := d.r.ReadByte()
	if err != nil {
		return noEOF(err)
	}
	switch tok {
	case frameTokenRegular:
		f.Checkpoint = f.Checkpoint[:0]
		f.CheckpointCompression = CompressionNone
		f.CheckpointEncoding = EncodingRaw
	case frameTokenCheckpoint:
		var sz [8]byte
		if _, err := io.ReadFull(d.r, sz[:]); err != nil {
			return noEOF(err)
		}
		cpSize := binary.LittleEndian.Uint64(sz[:])
		if cpSize > math.MaxInt {
			return fmt.Errorf("%w: %d bytes", ErrCheckpointTooBig, cpSize)
		}
		if uint64(cap(f.Checkpoint)) < cpSize {
			f.Checkpoint = make([]byte, cpSize)
		}
		f.Checkpoint = f.Checkpoint[:cpSize]
		if _, err := io.ReadFull(d.r, f.Checkpoint); err != nil {
			return noEOF(err)
		}
		f.CheckpointCompression = CompressionNone
		f.CheckpointEncoding = EncodingRaw
	case frameTokenCheckpoint2:
		if err := d.readCheckpoint(f); err != nil {
			return err
		}
	default:
		return FrameTokenError(tok)
	}
	d.frameNumber++
	return nil
}
