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

// rplyreencode rewrites a replay with different
// state-stream parameters and/or checkpoint compression.
// The output is written to a temporary file next to the
// destination and renamed into place only after the frame
// counts have been verified.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/replayfmt/rply"
	"github.com/replayfmt/rply/stats"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"
)

// Config is the YAML re-encoding configuration; flags
// override any values set here.
type Config struct {
	BlockSize      uint32 `json:"block_size"`
	SuperblockSize uint32 `json:"superblock_size"`
	Compression    string `json:"compression"`
}

var (
	dashc     = flag.String("c", "", "YAML config file")
	dasho     = flag.String("o", "", "output file (default <input>.reenc.replay)")
	dashblock = flag.Uint("block", 0, "new block size in bytes")
	dashsuper = flag.Uint("super", 0, "new superblock size in blocks")
	dashcomp  = flag.String("compress", "", "checkpoint compression (none, zlib, zstd)")
	dashv     = flag.Bool("v", false, "verbose")
)

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func compression(name string) rply.Compression {
	switch name {
	case "", "none":
		return rply.CompressionNone
	case "zlib":
		return rply.CompressionZlib
	case "zstd":
		return rply.CompressionZstd
	default:
		exitf("unknown compression %q\n", name)
		return rply.CompressionNone
	}
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		exitf("usage: rplyreencode [-c config] [-o out] [-block n] [-super n] [-compress algo] <file.replay>\n")
	}
	infile := flag.Arg(0)
	outfile := *dasho
	if outfile == "" {
		outfile = infile + ".reenc.replay"
	}

	var conf Config
	if *dashc != "" {
		buf, err := os.ReadFile(*dashc)
		if err != nil {
			exitf("reading config: %s\n", err)
		}
		if err := yaml.Unmarshal(buf, &conf); err != nil {
			exitf("parsing config: %s\n", err)
		}
	}
	if *dashblock != 0 {
		conf.BlockSize = uint32(*dashblock)
	}
	if *dashsuper != 0 {
		conf.SuperblockSize = uint32(*dashsuper)
	}
	if *dashcomp != "" {
		conf.Compression = *dashcomp
	}

	in, err := os.Open(infile)
	if err != nil {
		exitf("can't open %q: %s\n", infile, err)
	}
	defer in.Close()
	dec, err := rply.NewDecoder(in)
	if err != nil {
		exitf("reading %q: %s\n", infile, err)
	}
	h := dec.Header()
	if h.Version == 0 {
		exitf("v0 replays need a live core; use the upgrade driver\n")
	}
	h.Upgrade()
	h.Version = rply.CurrentVersion
	if conf.BlockSize != 0 {
		h.BlockSize = conf.BlockSize
	}
	if conf.SuperblockSize != 0 {
		h.SuperblockSize = conf.SuperblockSize
	}
	if conf.Compression != "" {
		h.CheckpointCompression = compression(conf.Compression)
	}

	tmpname := filepath.Join(filepath.Dir(outfile),
		fmt.Sprintf(".%s.%s.tmp", filepath.Base(outfile), uuid.NewString()))
	out, err := os.Create(tmpname)
	if err != nil {
		exitf("can't create %q: %s\n", tmpname, err)
	}
	defer os.Remove(tmpname)

	enc, err := rply.NewEncoder(&h, dec.InitialState(), out)
	if err != nil {
		exitf("starting %q: %s\n", tmpname, err)
	}
	var frame rply.Frame
	for {
		err := dec.ReadFrame(&frame)
		if err == io.EOF {
			break
		}
		if err != nil {
			exitf("frame %d: %s\n", dec.FrameNumber(), err)
		}
		if *dashv {
			mark := " "
			if frame.HasCheckpoint() {
				mark = "*"
			}
			fmt.Printf(" %s%08d keys=%d inputs=%d\n",
				mark, dec.FrameNumber()-1, len(frame.KeyEvents), len(frame.InputEvents))
		}
		if err := enc.WriteFrame(&frame); err != nil {
			exitf("writing frame %d: %s\n", dec.FrameNumber()-1, err)
		}
		if uint32(dec.FrameNumber()) == dec.Header().FrameCount {
			break
		}
	}
	if err := enc.Finish(); err != nil {
		exitf("finishing: %s\n", err)
	}
	if err := out.Close(); err != nil {
		exitf("closing %q: %s\n", tmpname, err)
	}
	if enc.FrameNumber() != dec.FrameNumber() {
		exitf("frame count mismatch: read %d, wrote %d\n", dec.FrameNumber(), enc.FrameNumber())
	}
	if err := os.Rename(tmpname, outfile); err != nil {
		exitf("renaming output: %s\n", err)
	}
	if *dashv {
		for _, t := range []stats.Timer{stats.EncodeFrame, stats.EncodeCheckpoint, stats.EncodeStatestream} {
			s := stats.Stats(t)
			fmt.Printf("%-20s %8d calls %10d us\n", t, s.Count, s.Micros)
		}
		fmt.Printf("blocks: %d total, %d reused, %d skipped; %d superblocks, %d reused\n",
			stats.Counts(stats.EncTotalBlocks), stats.Counts(stats.EncReusedBlocks),
			stats.Counts(stats.EncSkippedBlocks), stats.Counts(stats.EncTotalSuperblocks),
			stats.Counts(stats.EncReusedSuperblocks))
		fmt.Printf("in: %d KB, out: %d KB\n",
			stats.Counts(stats.EncTotalKBsIn), stats.Counts(stats.EncTotalKBsOut))
	}
}
