// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pileup computes per-base read depth, whole-contig coverage
// statistics, and flag-filtered read counts from coordinate-sorted BAM files.
package pileup

import (
	"context"
	"fmt"
	"path/filepath"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/circov/genome"
	"github.com/grailbio/circov/interval"
	"github.com/grailbio/hts/sam"
)

// DefaultFlagExclude matches the reads skipped by "samtools depth" and
// "samtools coverage" by default.
const DefaultFlagExclude = sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate

// Observation is the depth at one 1-based position.  Pos is in padded space
// and may exceed the contig's un-padded length.
type Observation struct {
	Contig string
	Pos    int
	Depth  int
}

// CoverageRow is one row of "samtools coverage" output.  StartPos and EndPos
// are 1-based inclusive; Coverage is a percentage.
type CoverageRow struct {
	RName     string
	StartPos  int
	EndPos    int
	NumReads  int
	CovBases  int
	Coverage  float64
	MeanDepth float64
	MeanBaseQ float64
	MeanMapQ  float64
}

// Source produces depth, coverage and read counts for one BAM file.
// Implementations must be safe for concurrent use.
type Source interface {
	// Depth calls fn for every position of region in ascending order,
	// including zero-depth positions.
	Depth(ctx context.Context, bamPath string, region interval.Region, fn func(Observation) error) error

	// Coverage summarizes the contig over its un-padded coordinates
	// 1..Length.  Depth observed on the padding is folded back.
	Coverage(ctx context.Context, bamPath string, contig genome.Contig) (CoverageRow, error)

	// Count returns the number of records whose flags contain all of require
	// and none of exclude.
	Count(ctx context.Context, bamPath string, require, exclude sam.Flags) (int, error)
}

// ScratchPath returns the per-contig, per-technology scratch file for depth
// observations.  Contig names may contain characters that are unsafe in file
// names, so the name is sanitized and suffixed with its fingerprint.
func ScratchPath(dir, tech, contig string) string {
	safe := genome.SafeName(contig)
	if len(safe) > 64 {
		safe = safe[:64]
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%016x.depth.rio", tech, safe, farm.Fingerprint64([]byte(contig))))
}
