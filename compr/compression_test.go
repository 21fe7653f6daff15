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

package compr

import (
	"bytes"
	"io"
	"testing"
)

func TestRoundtrip(t *testing.T) {
	src := bytes.Repeat([]byte("state bytes "), 4000)
	for _, algo := range []string{"zlib", "zstd"} {
		t.Run(algo, func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(algo, &buf)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := w.Write(src); err != nil {
				t.Fatal(err)
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}
			if buf.Len() >= len(src) {
				t.Fatalf("%s did not compress: %d bytes", algo, buf.Len())
			}
			r, err := NewReader(algo, bytes.NewReader(buf.Bytes()))
			if err != nil {
				t.Fatal(err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatal(err)
			}
			if err := r.Close(); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, src) {
				t.Fatalf("%s roundtrip mismatch", algo)
			}
		})
	}
}

// closing the compressor must not close the sink; the
// container keeps writing frames after a checkpoint
func TestCloseLeavesSinkOpen(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter("zstd", &buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	n := buf.Len()
	if _, err := buf.Write([]byte("trailer")); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != n+7 {
		t.Fatal("sink unusable after Close")
	}
}

func TestUnknownAlgo(t *testing.T) {
	if _, err := NewWriter("lz5", io.Discard); err == nil {
		t.Fatal("expected error for unknown compressor")
	}
	if _, err := NewReader("lz5", bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for unknown decompressor")
	}
}
