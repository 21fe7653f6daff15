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

package stats

import (
	"sync"
	"testing"
)

func TestCounters(t *testing.T) {
	before := Counts(EncTotalBlocks)
	if got := Count(EncTotalBlocks, 3); got != before+3 {
		t.Fatalf("Count returned %d, want %d", got, before+3)
	}
	if got := Counts(EncTotalBlocks); got != before+3 {
		t.Fatalf("Counts returned %d, want %d", got, before+3)
	}
}

func TestTimers(t *testing.T) {
	before := Stats(EncodeFrame)
	Time(EncodeFrame).Stop()
	after := Stats(EncodeFrame)
	if after.Count != before.Count+1 {
		t.Fatalf("timer count %d, want %d", after.Count, before.Count+1)
	}
	if after.Micros < before.Micros {
		t.Fatal("timer total went backwards")
	}
}

// concurrent adds must aggregate without loss
func TestConcurrentCounts(t *testing.T) {
	const workers = 8
	const per = 1000
	before := Counts(DecNewBlocks)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				Count(DecNewBlocks, 1)
			}
		}()
	}
	wg.Wait()
	if got := Counts(DecNewBlocks); got != before+workers*per {
		t.Fatalf("lost updates: %d, want %d", got, before+workers*per)
	}
}
