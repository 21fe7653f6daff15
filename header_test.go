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
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestHeaderRoundtrip(t *testing.T) {
	h := Header{
		Version:                   2,
		ContentCRC:                2199475946,
		Identifier:                1761326589,
		InitialStateSize:          2531,
		FrameCount:                6383,
		BlockSize:                 128,
		SuperblockSize:            16,
		CheckpointCommitInterval:  4,
		CheckpointCommitThreshold: 2,
		CheckpointCompression:     CompressionNone,
	}
	buf := h.marshal()
	if len(buf) != headerV2Len {
		t.Fatalf("v2 header is %d bytes", len(buf))
	}
	got, err := ReadHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	if *got != h {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", *got, h)
	}
}

func TestHeaderV1Roundtrip(t *testing.T) {
	h := Header{
		Version:          1,
		ContentCRC:       0xdeadbeef,
		Identifier:       0x1122334455667788,
		InitialStateSize: 77,
	}
	buf := h.marshal()
	if len(buf) != headerBaseLen {
		t.Fatalf("v1 header is %d bytes", len(buf))
	}
	got, err := ReadHeader(bytes.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	if *got != h {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", *got, h)
	}
}

func TestHeaderBadMagic(t *testing.T) {
	buf := make([]byte, headerBaseLen)
	binary.LittleEndian.PutUint32(buf, 0x12345678)
	_, err := ReadHeader(bytes.NewReader(buf))
	var magic MagicError
	if !errors.As(err, &magic) || uint32(magic) != 0x12345678 {
		t.Fatalf("expected MagicError(0x12345678), got %v", err)
	}
}

func TestHeaderBadVersion(t *testing.T) {
	h := Header{Version: 2}
	buf := h.marshal()
	binary.LittleEndian.PutUint32(buf[4:], 3)
	_, err := ReadHeader(bytes.NewReader(buf))
	var vsn VersionError
	if !errors.As(err, &vsn) || uint32(vsn) != 3 {
		t.Fatalf("expected VersionError(3), got %v", err)
	}
}

func TestHeaderBadCompression(t *testing.T) {
	h := Header{Version: 2}
	buf := h.marshal()
	binary.LittleEndian.PutUint32(buf[36:], uint32(9)<<8)
	_, err := ReadHeader(bytes.NewReader(buf))
	var comp CompressionError
	if !errors.As(err, &comp) || uint8(comp) != 9 {
		t.Fatalf("expected CompressionError(9), got %v", err)
	}
}

func TestHeaderUpgrade(t *testing.T) {
	h := Header{
		Version:          0,
		ContentCRC:       1,
		Identifier:       2,
		InitialStateSize: 3,
		// garbage in the v2 fields
		FrameCount:            9,
		BlockSize:             9,
		SuperblockSize:        9,
		CheckpointCompression: CompressionZstd,
	}
	h.Upgrade()
	if h.Version != 0 {
		t.Fatalf("upgrade changed version to %d", h.Version)
	}
	if h.FrameCount != 0 || h.BlockSize != 0 || h.SuperblockSize != 0 ||
		h.CheckpointCommitInterval != 0 || h.CheckpointCommitThreshold != 0 ||
		h.CheckpointCompression != CompressionNone {
		t.Fatalf("v2 fields not zeroed: %+v", h)
	}
	if h.ContentCRC != 1 || h.Identifier != 2 || h.InitialStateSize != 3 {
		t.Fatalf("base fields changed: %+v", h)
	}
	// v2 headers are untouched
	v2 := Header{Version: 2, BlockSize: 128}
	v2.Upgrade()
	if v2.BlockSize != 128 {
		t.Fatal("upgrade clobbered a v2 header")
	}
}
