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
	"errors"
	"fmt"
)

// MagicError is returned when a file does not begin with
// the replay magic number.
type MagicError uint32

func (e MagicError) Error() string {
	return fmt.Sprintf("rply: invalid replay magic %#08x", uint32(e))
}

// VersionError is returned when a file's version is newer
// than this codec understands, or when an Encoder is
// constructed with a header whose version is not 2.
type VersionError uint32

func (e VersionError) Error() string {
	return fmt.Sprintf("rply: unsupported version %d", uint32(e))
}

// CompressionError is returned for an unrecognized
// checkpoint compression discriminant byte.
type CompressionError uint8

func (e CompressionError) Error() string {
	return fmt.Sprintf("rply: unsupported compression scheme %d", uint8(e))
}

// EncodingError is returned for an unrecognized checkpoint
// encoding discriminant byte.
type EncodingError uint8

func (e EncodingError) Error() string {
	return fmt.Sprintf("rply: unsupported encoding scheme %d", uint8(e))
}

// FrameTokenError is returned for a frame token byte
// outside {'f', 'c', 'C'}.
type FrameTokenError uint8

func (e FrameTokenError) Error() string {
	return fmt.Sprintf("rply: invalid frame token %#02x", uint8(e))
}

var (
	// ErrNoCoreRead is returned when reading frames from a
	// version 0 replay, whose inputs can only be
	// reconstructed by replaying through an emulator core.
	ErrNoCoreRead = errors.New("rply: coreless frame read for version 0 not possible")
	// ErrCheckpointTooBig indicates a checkpoint size that
	// does not fit its on-disk size field.
	ErrCheckpointTooBig = errors.New("rply: checkpoint too big")
	// ErrFrameTooLong indicates a frame record whose backref
	// would exceed 32 bits.
	ErrFrameTooLong = errors.New("rply: frame record too long")
	// ErrTooManyFrames indicates the 32-bit frame count is
	// exhausted.
	ErrTooManyFrames = errors.New("rply: too many frames")
	// ErrTooManyKeyEvents indicates more key events on one
	// frame than the 8-bit count can carry.
	ErrTooManyKeyEvents = errors.New("rply: too many key events")
	// ErrTooManyInputEvents indicates more input events on
	// one frame than the 16-bit count can carry.
	ErrTooManyInputEvents = errors.New("rply: too many input events")
)
