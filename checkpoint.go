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
	"fmt"
	"io"
	"math"

	"github.com/replayfmt/rply/compr"
	"github.com/replayfmt/rply/statestream"
	"github.com/replayfmt/rply/stats"
)

// checkpoint record header: compression (u8), encoding
// (u8), uncompressed unencoded size, uncompressed encoded
// size, compressed encoded size (all LE u32)
const checkpointHeaderLen = 14

// writeCheckpoint writes one checkpoint record for state.
// The two trailing size fields are not known until the
// payload has been written, so they are back-patched
// through the seekable sink.
func (e *Encoder) writeCheckpoint(state []byte, frame uint64) error {
	defer stats.Time(stats.EncodeCheckpoint).Stop()
	if int64(len(state)) > math.MaxUint32 {
		return fmt.Errorf("%w: state is %d bytes", ErrCheckpointTooBig, len(state))
	}
	comp := e.header.CheckpointCompression
	enc := EncodingRaw
	if e.ctx != nil {
		enc = EncodingStatestream
	}
	start, err := e.pos()
	if err != nil {
		return err
	}
	var hdr [checkpointHeaderLen]byte
	hdr[0] = byte(comp)
	hdr[1] = byte(enc)
	binary.LittleEndian.PutUint32(hdr[2:], uint32(len(state)))
	// sizes at offsets 6 and 10 are patched below
	if _, err := e.w.Write(hdr[:]); err != nil {
		return err
	}

	var sink io.Writer = e.w
	var comprCloser io.WriteCloser
	if comp != CompressionNone {
		comprCloser, err = compr.NewWriter(comp.String(), e.w)
		if err != nil {
			return err
		}
		sink = comprCloser
	}
	var encoded int
	if enc == EncodingStatestream {
		encoded, err = statestream.NewEncoder(sink, e.ctx).EncodeCheckpoint(state, frame)
	} else {
		_, err = sink.Write(state)
		encoded = len(state)
	}
	if err != nil {
		return err
	}
	if comprCloser != nil {
		if err := comprCloser.Close(); err != nil {
			return err
		}
	}
	end, err := e.pos()
	if err != nil {
		return err
	}
	compressed := end - (start + checkpointHeaderLen)
	if int64(encoded) > math.MaxUint32 || compressed > math.MaxUint32 {
		return fmt.Errorf("%w: encoded %d, compressed %d", ErrCheckpointTooBig, encoded, compressed)
	}
	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[0:], uint32(encoded))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(compressed))
	if _, err := e.w.Seek(start+6, io.SeekStart); err != nil {
		return err
	}
	if _, err := e.w.Write(sizes[:]); err != nil {
		return err
	}
	_, err = e.w.Seek(end, io.SeekStart)
	return err
}

// readCheckpoint reads one checkpoint record into
// f.Checkpoint. The payload is bounded by the record's
// compressed size so buffered decompressors cannot consume
// bytes belonging to the next frame; any residue inside
// the bound (e.g. a compressor's final frame marker) is
// drained before returning.
func (d *Decoder) readCheckpoint(f *Frame) error {
	defer stats.Time(stats.DecodeCheckpoint).Stop()
	var hdr [checkpointHeaderLen]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return noEOF(err)
	}
	comp := Compression(hdr[0])
	if !comp.valid() {
		return CompressionError(hdr[0])
	}
	enc := Encoding(hdr[1])
	if !enc.valid() {
		return EncodingError(hdr[1])
	}
	ucUeSize := binary.LittleEndian.Uint32(hdr[2:])
	// the uncompressed encoded size at offset 6 is advisory
	compSize := binary.LittleEndian.Uint32(hdr[10:])
	stats.Count(stats.DecTotalKBsIn, uint64(compSize)/1024)

	lim := &io.LimitedReader{R: d.r, N: int64(compSize)}
	var src io.Reader = lim
	var comprCloser io.ReadCloser
	if comp != CompressionNone {
		var err error
		comprCloser, err = compr.NewReader(comp.String(), lim)
		if err != nil {
			return err
		}
		src = comprCloser
	}
	if enc == EncodingStatestream {
		if d.ctx == nil {
			return fmt.Errorf("rply: statestream checkpoint in a replay with no statestream parameters")
		}
		src = statestream.NewDecoder(src, d.ctx, int(ucUeSize))
	}
	if cap(f.Checkpoint) < int(ucUeSize) {
		f.Checkpoint = make([]byte, ucUeSize)
	}
	f.Checkpoint = f.Checkpoint[:ucUeSize]
	if _, err := io.ReadFull(src, f.Checkpoint); err != nil {
		return noEOF(err)
	}
	if comprCloser != nil {
		if err := comprCloser.Close(); err != nil {
			return err
		}
	}
	if _, err := io.Copy(io.Discard, lim); err != nil {
		return err
	}
	f.CheckpointCompression = comp
	f.CheckpointEncoding = enc
	return nil
}
