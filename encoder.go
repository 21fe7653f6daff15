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
	"encoding/binary"
	"io"
	"math"

	"github.com/replayfmt/rply/statestream"
	"github.com/replayfmt/rply/stats"
)

// Encoder writes a version-2 replay to a seekable sink.
//
// Construction writes the header and the initial-state
// checkpoint; WriteFrame appends frame records; Finish
// rewrites the header with the final frame count. Callers
// must call Finish (or its alias Close) before discarding
// the Encoder; both are idempotent and further writes
// after either are invalid.
type Encoder struct {
	w        io.WriteSeeker
	header   Header
	ctx      *statestream.Context
	lastPos  int64
	frames   uint32
	finished bool
}

// NewEncoder begins a replay with the given header
// (version must be 2) and initial state. The header's
// frame count and initial-state size are filled in by the
// encoder. A non-seekable sink cannot carry the format:
// the header and checkpoint sizes are back-patched in
// place.
func NewEncoder(h *Header, initial []byte, w io.WriteSeeker) (*Encoder, error) {
	if h.Version != CurrentVersion {
		return nil, VersionError(h.Version)
	}
	e := &Encoder{w: w, header: *h}
	e.header.FrameCount = 0
	e.header.InitialStateSize = 0
	if e.header.BlockSize > 0 && e.header.SuperblockSize > 0 {
		e.ctx = statestream.NewContext(int(e.header.BlockSize), int(e.header.SuperblockSize))
	}
	if _, err := w.Write(e.header.marshal()); err != nil {
		return nil, err
	}
	if len(initial) > 0 {
		if err := e.writeCheckpoint(initial, 0); err != nil {
			return nil, err
		}
		end, err := e.pos()
		if err != nil {
			return nil, err
		}
		if end-headerV2Len > math.MaxUint32 {
			return nil, ErrCheckpointTooBig
		}
		e.header.InitialStateSize = uint32(end - headerV2Len)
		if err := e.rewriteHeader(end); err != nil {
			return nil, err
		}
	}
	pos, err := e.pos()
	if err != nil {
		return nil, err
	}
	e.lastPos = pos
	return e, nil
}

// Header returns a copy of the header as it would be
// written on Finish, with the current frame count.
func (e *Encoder) Header() Header {
	h := e.header
	h.FrameCount = e.frames
	return h
}

// FrameNumber returns the number of frames written so far.
func (e *Encoder) FrameNumber() int { return int(e.frames) }

func (e *Encoder) pos() (int64, error) {
	return e.w.Seek(0, io.SeekCurrent)
}

// rewriteHeader rewrites the header in place and returns
// the stream to resume.
func (e *Encoder) rewriteHeader(resume int64) error {
	if _, err := e.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := e.w.Write(e.header.marshal()); err != nil {
		return err
	}
	_, err := e.w.Seek(resume, io.SeekStart)
	return err
}

// WriteFrame appends one frame record. A frame with a
// non-empty Checkpoint is written as a Checkpoint2 record
// using the header's compression setting and the
// statestream encoding whenever the header carries
// state-stream parameters.
func (e *Encoder) WriteFrame(f *Frame) error {
	defer stats.Time(stats.EncodeFrame).Stop()
	if e.frames == math.MaxUint32 {
		return ErrTooManyFrames
	}
	cur, err := e.pos()
	if err != nil {
		return err
	}
	backref := cur - e.lastPos
	if backref < 0 || backref > math.MaxUint32 {
		return ErrFrameTooLong
	}
	buf := make([]byte, 4, 4+1+len(f.KeyEvents)*keyEventLen+2+len(f.InputEvents)*inputEventLen+1)
	binary.LittleEndian.PutUint32(buf, uint32(backref))
	buf, err = appendFrameEvents(buf, f)
	if err != nil {
		return err
	}
	if !f.HasCheckpoint() {
		buf = append(buf, frameTokenRegular)
		if _, err := e.w.Write(buf); err != nil {
			return err
		}
	} else {
		buf = append(buf, frameTokenCheckpoint2)
		if _, err := e.w.Write(buf); err != nil {
			return err
		}
		if err := e.writeCheckpoint(f.Checkpoint, uint64(e.frames)); err != nil {
			return err
		}
	}
	e.lastPos = cur
	e.frames++
	return nil
}

// Finish rewrites the header with the final frame count.
// It is safe to call more than once.
func (e *Encoder) Finish() error {
	if e.finished {
		return nil
	}
	end, err := e.pos()
	if err != nil {
		return err
	}
	e.header.FrameCount = e.frames
	if err := e.rewriteHeader(end); err != nil {
		return err
	}
	e.finished = true
	return nil
}

// Close finishes the replay; it is an alias for Finish.
func (e *Encoder) Close() error { return e.Finish() }
