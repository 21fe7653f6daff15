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

// Package rply reads and writes replay files for
// deterministic interactive sessions: an initial opaque
// state plus per-frame input events, interleaved with
// periodic full-state checkpoints.
//
// Checkpoints are typically megabytes and highly similar
// frame-to-frame, so they are run through the statestream
// block-deduplicating encoding and optionally a byte
// compressor (zlib or zstd) before hitting the container.
//
// Readers are sequential: open a Decoder, then call
// ReadFrame until io.EOF or the header's frame count is
// reached. Writers need a seekable sink because the header
// and checkpoint size fields are back-patched after their
// contents are known.
package rply

// Compression selects the byte compressor applied to
// checkpoint payloads.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZlib
	CompressionZstd
)

func (c Compression) valid() bool { return c <= CompressionZstd }

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZlib:
		return "zlib"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Encoding selects the payload encoding applied to
// checkpoint state beneath byte compression.
type Encoding uint8

const (
	EncodingRaw Encoding = iota
	EncodingStatestream
)

func (e Encoding) valid() bool { return e <= EncodingStatestream }

func (e Encoding) String() string {
	switch e {
	case EncodingRaw:
		return "raw"
	case EncodingStatestream:
		return "statestream"
	default:
		return "unknown"
	}
}

// KeyEvent is one keyboard event recorded on a frame.
type KeyEvent struct {
	Down uint8
	Mod  uint16
	Code uint32
	Char uint32
}

// InputEvent is one controller input recorded on a frame.
type InputEvent struct {
	Port   uint8
	Device uint8
	Index  uint8
	ID     uint16
	Value  int16
}

// Frame is the semantic content of one frame record.
//
// Checkpoint always holds the final, uncompressed,
// unencoded state snapshot; an empty Checkpoint means the
// frame carries none. CheckpointCompression and
// CheckpointEncoding describe how the checkpoint was
// stored on disk (decoder outputs; the encoder chooses its
// own storage per the header configuration).
type Frame struct {
	KeyEvents   []KeyEvent
	InputEvents []InputEvent

	Checkpoint            []byte
	CheckpointCompression Compression
	CheckpointEncoding    Encoding
}

// Reset clears f for reuse, retaining allocated capacity.
func (f *Frame) Reset() {
	f.KeyEvents = f.KeyEvents[:0]
	f.InputEvents = f.InputEvents[:0]
	f.Checkpoint = f.Checkpoint[:0]
	f.CheckpointCompression = CompressionNone
	f.CheckpointEncoding = EncodingRaw
}

// HasCheckpoint reports whether f carries a checkpoint.
func (f *Frame) HasCheckpoint() bool { return len(f.Checkpoint) > 0 }
