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
)

// frame tokens
const (
	frameTokenRegular     = 'f'
	frameTokenCheckpoint  = 'c' // legacy v1 raw checkpoint
	frameTokenCheckpoint2 = 'C'
)

const (
	keyEventLen   = 12
	inputEventLen = 8
)

// appendFrameEvents appends the event section of a frame
// record: key count (u8), key events, input count (u16),
// input events.
func appendFrameEvents(buf []byte, f *Frame) ([]byte, error) {
	if len(f.KeyEvents) > math.MaxUint8 {
		return nil, ErrTooManyKeyEvents
	}
	if len(f.InputEvents) > math.MaxUint16 {
		return nil, ErrTooManyInputEvents
	}
	buf = append(buf, uint8(len(f.KeyEvents)))
	for i := range f.KeyEvents {
		k := &f.KeyEvents[i]
		var tmp [keyEventLen]byte
		tmp[0] = k.Down
		// tmp[1] is padding
		binary.LittleEndian.PutUint16(tmp[2:], k.Mod)
		binary.LittleEndian.PutUint32(tmp[4:], k.Code)
		binary.LittleEndian.PutUint32(tmp[8:], k.Char)
		buf = append(buf, tmp[:]...)
	}
	var cnt [2]byte
	binary.LittleEndian.PutUint16(cnt[:], uint16(len(f.InputEvents)))
	buf = append(buf, cnt[:]...)
	for i := range f.InputEvents {
		in := &f.InputEvents[i]
		var tmp [inputEventLen]byte
		tmp[0] = in.Port
		tmp[1] = in.Device
		tmp[2] = in.Index
		// tmp[3] is padding
		binary.LittleEndian.PutUint16(tmp[4:], in.ID)
		binary.LittleEndian.PutUint16(tmp[6:], uint16(in.Value))
		buf = append(buf, tmp[:]...)
	}
	return buf, nil
}

// readFrameEvents reads the event section of a frame
// record into f.
func readFrameEvents(r io.Reader, f *Frame) error {
	var cnt [2]byte
	if _, err := io.ReadFull(r, cnt[:1]); err != nil {
		return err
	}
	keyCount := int(cnt[0])
	if cap(f.KeyEvents) < keyCount {
		f.KeyEvents = make([]KeyEvent, keyCount)
	}
	f.KeyEvents = f.KeyEvents[:keyCount]
	var tmp [keyEventLen]byte
	for i := 0; i < keyCount; i++ {
		if _, err := io.ReadFull(r, tmp[:keyEventLen]); err != nil {
			return noEOF(err)
		}
		f.KeyEvents[i] = KeyEvent{
			Down: tmp[0],
			Mod:  binary.LittleEndian.Uint16(tmp[2:]),
			Code: binary.LittleEndian.Uint32(tmp[4:]),
			Char: binary.LittleEndian.Uint32(tmp[8:]),
		}
	}
	if _, err := io.ReadFull(r, cnt[:2]); err != nil {
		return noEOF(err)
	}
	inputCount := int(binary.LittleEndian.Uint16(cnt[:]))
	if cap(f.InputEvents) < inputCount {
		f.InputEvents = make([]InputEvent, inputCount)
	}
	f.InputEvents = f.InputEvents[:inputCount]
	for i := 0; i < inputCount; i++ {
		if _, err := io.ReadFull(r, tmp[:inputEventLen]); err != nil {
			return noEOF(err)
		}
		f.InputEvents[i] = InputEvent{
			Port:   tmp[0],
			Device: tmp[1],
			Index:  tmp[2],
			ID:     binary.LittleEndian.Uint16(tmp[4:]),
			Value:  int16(binary.LittleEndian.Uint16(tmp[6:])),
		}
	}
	return nil
}

// noEOF converts a clean EOF into io.ErrUnexpectedEOF for
// reads that happen after a record has started.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
