// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package circular_test

import (
	"math/rand"
	"testing"

	"github.com/grailbio/circov/circular"
	"github.com/grailbio/testutil/expect"
)

func TestPadLength(t *testing.T) {
	tests := []struct {
		length, padding, want int
	}{
		{50000, 10000, 10000},
		{10000, 10000, 10000},
		{5000, 10000, 5000},
		{1, 10000, 1},
		{5000, 0, 0},
	}
	for _, tt := range tests {
		expect.EQ(t, circular.PadLength(tt.length, tt.padding), tt.want, "length=%d padding=%d", tt.length, tt.padding)
		expect.EQ(t, circular.PaddedLength(tt.length, tt.padding), tt.length+tt.want)
	}
}

func TestFold(t *testing.T) {
	tests := []struct {
		pos, length, want int
		wrapped           bool
	}{
		{1, 100, 1, false},
		{100, 100, 100, false},
		{101, 100, 1, true},
		{150, 100, 50, true},
		{200, 100, 100, true},
	}
	for _, tt := range tests {
		got, wrapped := circular.Fold(tt.pos, tt.length)
		expect.EQ(t, got, tt.want)
		expect.EQ(t, wrapped, tt.wrapped)
	}
}

func TestFoldDepth(t *testing.T) {
	depth := []uint32{1, 2, 3, 4, 5, 10, 20}
	expect.EQ(t, circular.FoldDepth(depth, 5), []uint32{11, 22, 3, 4, 5})

	linear := []uint32{1, 2, 3}
	expect.EQ(t, circular.FoldDepth(linear, 3), []uint32{1, 2, 3})
}

// Total depth is conserved by folding.
func TestFoldDepthConservesMass(t *testing.T) {
	for iter := 0; iter < 100; iter++ {
		length := rand.Intn(1000) + 1
		pad := circular.PadLength(length, rand.Intn(2000))
		depth := make([]uint32, length+pad)
		var total uint32
		for i := range depth {
			depth[i] = uint32(rand.Intn(50))
			total += depth[i]
		}
		folded := circular.FoldDepth(depth, length)
		expect.EQ(t, len(folded), length)
		var got uint32
		for _, d := range folded {
			got += d
		}
		expect.EQ(t, got, total)
	}
}
