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
)

// Magic is the constant leading every replay file, stored
// as a little-endian u32. Its hex digits spell "BSV2" in
// ASCII, so the file's first four bytes read "2VSB".
const Magic = 0x4253_5632

// CurrentVersion is the container version this codec
// writes. Versions 0 and 1 are read-compatible (v0 frames
// require a live core and are rejected by ReadFrame).
const CurrentVersion = 2

const (
	headerBaseLen = 24 // v0/v1 header
	headerV2Len   = 40
)

// Header is the fixed-length container header.
//
// FrameCount, BlockSize, SuperblockSize, the two
// checkpoint-commit policy bytes and CheckpointCompression
// are meaningful only for Version >= 2; they are zero on
// parsed v0/v1 headers. The commit policy bytes are
// persisted but not consulted by this codec.
type Header struct {
	Version          uint32
	ContentCRC       uint32
	InitialStateSize uint32
	Identifier       uint64

	FrameCount                uint32
	BlockSize                 uint32
	SuperblockSize            uint32
	CheckpointCommitInterval  uint8
	CheckpointCommitThreshold uint8
	CheckpointCompression     Compression
}

func (h *Header) length() int {
	if h.Version >= 2 {
		return headerV2Len
	}
	return headerBaseLen
}

// marshal produces the on-disk header bytes.
func (h *Header) marshal() []byte {
	buf := make([]byte, h.length())
	binary.LittleEndian.PutUint32(buf[0:], Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint32(buf[8:], h.ContentCRC)
	binary.LittleEndian.PutUint32(buf[12:], h.InitialStateSize)
	binary.LittleEndian.PutUint64(buf[16:], h.Identifier)
	if h.Version >= 2 {
		binary.LittleEndian.PutUint32(buf[24:], h.FrameCount)
		binary.LittleEndian.PutUint32(buf[28:], h.BlockSize)
		binary.LittleEndian.PutUint32(buf[32:], h.SuperblockSize)
		cfg := uint32(h.CheckpointCommitInterval)<<24 |
			uint32(h.CheckpointCommitThreshold)<<16 |
			uint32(h.CheckpointCompression)<<8
		binary.LittleEndian.PutUint32(buf[36:], cfg)
	}
	return buf
}

// ReadHeader parses a replay header from r, consuming 24
// bytes for v0/v1 files and 40 bytes for v2 files.
func ReadHeader(r io.Reader) (*Header, error) {
	var buf [headerV2Len]byte
	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return nil, err
	}
	if m := binary.LittleEndian.Uint32(buf[0:]); m != Magic {
		return nil, MagicError(m)
	}
	if _, err := io.ReadFull(r, buf[4:8]); err != nil {
		return nil, noEOF(err)
	}
	version := binary.LittleEndian.Uint32(buf[4:])
	if version > CurrentVersion {
		return nil, VersionError(version)
	}
	if _, err := io.ReadFull(r, buf[8:headerBaseLen]); err != nil {
		return nil, noEOF(err)
	}
	h := &Header{
		Version:          version,
		ContentCRC:       binary.LittleEndian.Uint32(buf[8:]),
		InitialStateSize: binary.LittleEndian.Uint32(buf[12:]),
		Identifier:       binary.LittleEndian.Uint64(buf[16:]),
	}
	if h.Version < 2 {
		return h, nil
	}
	if _, err := io.ReadFull(r, buf[headerBaseLen:]); err != nil {
		return nil, noEOF(err)
	}
	h.FrameCount = binary.LittleEndian.Uint32(buf[24:])
	h.BlockSize = binary.LittleEndian.Uint32(buf[28:])
	h.SuperblockSize = binary.LittleEndian.Uint32(buf[32:])
	cfg := binary.LittleEndian.Uint32(buf[36:])
	h.CheckpointCommitInterval = uint8(cfg >> 24)
	h.CheckpointCommitThreshold = uint8(cfg >> 16)
	comp := uint8(cfg >> 8)
	if !Compression(comp).valid() {
		return nil, CompressionError(comp)
	}
	h.CheckpointCompression = Compression(comp)
	return h, nil
}

// Upgrade prepares a v0/v1 header for re-encoding under
// the v2 field set: the v2-only fields are zeroed so the
// caller can fill them in. The version is left at its
// original value; callers producing a v2 file set Version
// themselves. Upgrade is a no-op on v2 headers.
func (h *Header) Upgrade() {
	if h.Version >= 2 {
		return
	}
	h.FrameCount = 0
	h.BlockSize = 0
	h.SuperblockSize = 0
	h.CheckpointCommitInterval = 0
	h.CheckpointCommitThreshold = 0
	h.CheckpointCompression = CompressionNone
}
