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

// Package compr provides a unified streaming interface
// wrapping third-party compression libraries.
package compr

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// NewWriter wraps w in a streaming compressor selected by
// algorithm name. The returned WriteCloser must be closed
// to flush the final compressed frame; closing it does not
// close w.
//
// Valid names are "zlib" and "zstd".
func NewWriter(algo string, w io.Writer) (io.WriteCloser, error) {
	switch algo {
	case "zlib":
		return zlib.NewWriter(w), nil
	case "zstd":
		z, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return z, nil
	default:
		return nil, fmt.Errorf("compr: no compressor %q", algo)
	}
}

// zstdReader adapts *zstd.Decoder to io.ReadCloser;
// Decoder.Close releases the decoder but has no error.
type zstdReader struct {
	*zstd.Decoder
}

func (z zstdReader) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader wraps r in a streaming decompressor selected
// by algorithm name. The returned ReadCloser may buffer
// reads past the end of the compressed frame; callers that
// need exact stream positioning should bound r themselves.
// Closing it does not close r.
func NewReader(algo string, r io.Reader) (io.ReadCloser, error) {
	switch algo {
	case "zlib":
		return zlib.NewReader(r)
	case "zstd":
		z, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return zstdReader{z}, nil
	default:
		return nil, fmt.Errorf("compr: no decompressor %q", algo)
	}
}
