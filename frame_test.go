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
	"errors"
	"testing"
)

func TestFrameEventsRoundtrip(t *testing.T) {
	f := Frame{
		KeyEvents: []KeyEvent{
			{Down: 1, Mod: 0x0102, Code: 0xdeadbeef, Char: 'q'},
			{Down: 0, Mod: 0, Code: 42, Char: 0},
		},
		InputEvents: []InputEvent{
			{Port: 0, Device: 1, Index: 0, ID: 0, Value: 1},
			{Port: 3, Device: 2, Index: 1, ID: 0x1234, Value: -20000},
		},
	}
	buf, err := appendFrameEvents(nil, &f)
	if err != nil {
		t.Fatal(err)
	}
	want := 1 + 2*keyEventLen + 2 + 2*inputEventLen
	if len(buf) != want {
		t.Fatalf("event section is %d bytes, want %d", len(buf), want)
	}
	var got Frame
	if err := readFrameEvents(bytes.NewReader(buf), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.KeyEvents) != 2 || got.KeyEvents[0] != f.KeyEvents[0] || got.KeyEvents[1] != f.KeyEvents[1] {
		t.Fatalf("key events: %+v", got.KeyEvents)
	}
	if len(got.InputEvents) != 2 || got.InputEvents[0] != f.InputEvents[0] || got.InputEvents[1] != f.InputEvents[1] {
		t.Fatalf("input events: %+v", got.InputEvents)
	}
}

func TestFrameEventsEmpty(t *testing.T) {
	var f Frame
	buf, err := appendFrameEvents(nil, &f)
	if err != nil {
		t.Fatal(err)
	}
	// key count (1) + input count (2); with the backref and
	// token an empty frame record totals 8 bytes
	if len(buf) != 3 {
		t.Fatalf("empty event section is %d bytes", len(buf))
	}
}

func TestFrameEventsOverflow(t *testing.T) {
	f := Frame{KeyEvents: make([]KeyEvent, 256)}
	if _, err := appendFrameEvents(nil, &f); !errors.Is(err, ErrTooManyKeyEvents) {
		t.Fatalf("expected ErrTooManyKeyEvents, got %v", err)
	}
	f = Frame{InputEvents: make([]InputEvent, 65536)}
	if _, err := appendFrameEvents(nil, &f); !errors.Is(err, ErrTooManyInputEvents) {
		t.Fatalf("expected ErrTooManyInputEvents, got %v", err)
	}
}

func TestFrameReset(t *testing.T) {
	f := Frame{
		KeyEvents:             []KeyEvent{{Down: 1}},
		InputEvents:           []InputEvent{{Port: 1}},
		Checkpoint:            []byte{1, 2, 3},
		CheckpointCompression: CompressionZstd,
		CheckpointEncoding:    EncodingStatestream,
	}
	f.Reset()
	if len(f.KeyEvents) != 0 || len(f.InputEvents) != 0 || f.HasCheckpoint() {
		t.Fatalf("reset left %+v", f)
	}
	if f.CheckpointCompression != CompressionNone || f.CheckpointEncoding != EncodingRaw {
		t.Fatalf("reset left %+v", f)
	}
}
