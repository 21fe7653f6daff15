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

// rplydump prints the structure of a replay file: the
// header, one line per frame, and, with -s, the codec
// stats accumulated while reading.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/replayfmt/rply"
	"github.com/replayfmt/rply/stats"

	"github.com/dchest/siphash"
)

var (
	dashn = flag.Int("n", -1, "max frames to dump (-1 for all)")
	dashq = flag.Bool("q", false, "only print the header and totals")
	dashs = flag.Bool("s", false, "print codec stats after dumping")
)

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

// fingerprint is a short content hash used to eyeball
// checkpoint identity across frames
func fingerprint(buf []byte) uint64 {
	return siphash.Hash(0, 0, buf)
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		exitf("usage: rplydump [-n frames] [-q] [-s] <file.replay>\n")
	}
	in, err := os.Open(flag.Arg(0))
	if err != nil {
		exitf("can't open %q: %s\n", flag.Arg(0), err)
	}
	defer in.Close()
	dec, err := rply.NewDecoder(bufio.NewReader(in))
	if err != nil {
		exitf("reading header: %s\n", err)
	}
	h := dec.Header()
	fmt.Printf("version:     %d\n", h.Version)
	fmt.Printf("content-crc: %#08x\n", h.ContentCRC)
	fmt.Printf("identifier:  %#016x\n", h.Identifier)
	fmt.Printf("frames:      %d\n", h.FrameCount)
	if h.Version >= 2 {
		fmt.Printf("block-size:  %d x %d\n", h.BlockSize, h.SuperblockSize)
		fmt.Printf("compression: %s\n", h.CheckpointCompression)
	}
	fmt.Printf("initial:     %d bytes (sum=%016x)\n",
		len(dec.InitialState()), fingerprint(dec.InitialState()))

	var frame rply.Frame
	for *dashn < 0 || dec.FrameNumber() < *dashn {
		err := dec.ReadFrame(&frame)
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, rply.ErrNoCoreRead) {
				exitf("v0 frames need a live core; use the upgrade driver\n")
			}
			exitf("frame %d: %s\n", dec.FrameNumber(), err)
		}
		if *dashq {
			if uint32(dec.FrameNumber()) == h.FrameCount {
				break
			}
			continue
		}
		mark := " "
		detail := ""
		if frame.HasCheckpoint() {
			mark = "*"
			detail = fmt.Sprintf(" cp=%d (%s/%s sum=%016x)",
				len(frame.Checkpoint),
				frame.CheckpointCompression, frame.CheckpointEncoding,
				fingerprint(frame.Checkpoint))
		}
		fmt.Printf(" %s%08d keys=%d inputs=%d%s\n",
			mark, dec.FrameNumber()-1, len(frame.KeyEvents), len(frame.InputEvents), detail)
		if uint32(dec.FrameNumber()) == h.FrameCount {
			break
		}
	}
	fmt.Printf("read %d frames\n", dec.FrameNumber())
	if *dashs {
		for _, t := range []stats.Timer{
			stats.DecodeFrame, stats.DecodeCheckpoint, stats.DecodeStatestream,
		} {
			s := stats.Stats(t)
			fmt.Printf("%-20s %8d calls %10d us\n", t, s.Count, s.Micros)
		}
		for _, c := range []stats.Counter{
			stats.DecNewBlocks, stats.DecNewSuperblocks, stats.DecTotalSuperblocks,
			stats.DecTotalKBsIn, stats.DecTotalKBsOut,
		} {
			fmt.Printf("%-20s %10d\n", c, stats.Counts(c))
		}
	}
}
