// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package summary builds overall_summary.txt from the merged coverage table:
// one row per contig plus a genome-wide "all" row and a "missing" row for
// reads that did not map.
package summary

import (
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/circov/genome"
	"github.com/grailbio/circov/merge"
	"github.com/grailbio/circov/pileup"
)

const (
	// AllContig names the genome-wide row.
	AllContig = "all"
	// MissingContig names the row that accounts for unmapped reads.
	MissingContig = "missing"
	// Synthetic is the circ value of the all and missing rows.
	Synthetic = "X"
)

// Results carries the run-wide values the summary needs beyond the coverage
// table.
type Results struct {
	// TotalLength is the summed un-padded length of the assembly.
	TotalLength int
	// Unmapped is the number of unmapped reads per technology.
	Unmapped map[string]int
}

// Metrics are the per-technology columns of a summary row.
type Metrics struct {
	NumReads  int
	CovBases  int
	Coverage  float64
	MeanDepth float64
}

// Row is one line of the summary.
type Row struct {
	Sample string
	// Circ is "True" or "False" for contigs and Synthetic otherwise.
	Circ    string
	Contig  string
	Length  int
	Metrics map[string]Metrics
}

// Table is the summary in output order.
type Table struct {
	Techs []string
	Rows  []Row
}

// Round2 rounds v to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WeightedMean returns sum(lengths[i]*values[i]) / sum(lengths), rounded to two
// decimals.  It returns 0 when the total length is 0.
//
// REQUIRES: len(lengths) == len(values).
func WeightedMean(lengths []int, values []float64) float64 {
	var total, weighted float64
	for i, l := range lengths {
		total += float64(l)
		weighted += float64(l) * values[i]
	}
	if total == 0 {
		return 0
	}
	return Round2(weighted / total)
}

func circValue(c genome.Contig) string {
	if c.Circular {
		return "True"
	}
	return "False"
}

// Build creates the summary for sample.  Contigs are taken from the coverage
// table; their lengths and circularity come from reg.  A null coverage cell
// counts as zero.
func Build(cov *merge.CoverageTable, reg *genome.Registry, results Results, sample string) *Table {
	tab := &Table{Techs: cov.Techs()}
	cov.Do(func(key merge.CoverageKey, metrics map[string]pileup.CoverageRow) {
		row := Row{Sample: sample, Circ: Synthetic, Contig: key.RName, Length: key.EndPos, Metrics: map[string]Metrics{}}
		if c, ok := reg.Get(key.RName); ok {
			row.Circ = circValue(c)
			row.Length = c.Length
		}
		for _, tech := range tab.Techs {
			r := metrics[tech]
			row.Metrics[tech] = Metrics{
				NumReads:  r.NumReads,
				CovBases:  r.CovBases,
				Coverage:  r.Coverage,
				MeanDepth: r.MeanDepth,
			}
		}
		tab.Rows = append(tab.Rows, row)
	})

	all := Row{Sample: sample, Circ: Synthetic, Contig: AllContig, Length: results.TotalLength, Metrics: map[string]Metrics{}}
	missing := Row{Sample: sample, Circ: Synthetic, Contig: MissingContig, Length: 1, Metrics: map[string]Metrics{}}
	lengths := make([]int, len(tab.Rows))
	for i, r := range tab.Rows {
		lengths[i] = r.Length
	}
	for _, tech := range tab.Techs {
		var (
			m         Metrics
			depths    = make([]float64, len(tab.Rows))
			coverages = make([]float64, len(tab.Rows))
		)
		for i, r := range tab.Rows {
			rm := r.Metrics[tech]
			m.NumReads += rm.NumReads
			m.CovBases += rm.CovBases
			depths[i] = rm.MeanDepth
			coverages[i] = rm.Coverage
		}
		unmapped := results.Unmapped[tech]
		m.NumReads += unmapped
		m.MeanDepth = WeightedMean(lengths, depths)
		m.Coverage = WeightedMean(lengths, coverages)
		all.Metrics[tech] = m
		missing.Metrics[tech] = Metrics{NumReads: unmapped}
	}
	tab.Rows = append(tab.Rows, all, missing)
	sort.SliceStable(tab.Rows, func(i, j int) bool {
		if tab.Rows[i].Length != tab.Rows[j].Length {
			return tab.Rows[i].Length > tab.Rows[j].Length
		}
		return tab.Rows[i].Contig < tab.Rows[j].Contig
	})
	return tab
}

// Row returns the row for contig.
func (t *Table) Row(contig string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Contig == contig {
			return r, true
		}
	}
	return Row{}, false
}

// formatFloat prints v with at most two decimals and at least one.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(Round2(v), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Write writes the table as overall_summary.txt.
func (t *Table) Write(out io.Writer) error {
	w := tsv.NewWriter(out)
	for _, h := range []string{"sample", "circ", "contigs", "length"} {
		w.WriteString(h)
	}
	for _, tech := range t.Techs {
		for _, h := range []string{"numreads", "covbases", "coverage", "meandepth"} {
			w.WriteString(tech + "_" + h)
		}
	}
	if err := w.EndLine(); err != nil {
		return err
	}
	for _, r := range t.Rows {
		w.WriteString(r.Sample)
		w.WriteString(r.Circ)
		w.WriteString(r.Contig)
		w.WriteInt64(int64(r.Length))
		for _, tech := range t.Techs {
			m := r.Metrics[tech]
			w.WriteInt64(int64(m.NumReads))
			w.WriteInt64(int64(m.CovBases))
			w.WriteString(formatFloat(m.Coverage))
			w.WriteString(formatFloat(m.MeanDepth))
		}
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
