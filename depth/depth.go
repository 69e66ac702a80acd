// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package depth reduces a contig's per-base depth stream to the window
// samples chosen by the planner, folding depth observed on the padding of a
// circular contig back onto the original coordinates.
package depth

import (
	"context"
	"sort"

	"github.com/grailbio/circov/circular"
	"github.com/grailbio/circov/pileup"
	"github.com/grailbio/circov/window"
)

// Row is the reported depth at one original position.
type Row struct {
	Contig string
	Pos    int
	Depth  int
}

// Reducer accumulates observations for one contig.  The zero value is not
// usable; use NewReducer.
type Reducer struct {
	plan    window.Plan
	samples []int
	primary []int
	pad     []int
	n       int
}

// NewReducer creates a reducer for plan.
func NewReducer(plan window.Plan) *Reducer {
	s := plan.Samples()
	return &Reducer{
		plan:    plan,
		samples: s,
		primary: make([]int, len(s)),
		pad:     make([]int, len(s)),
	}
}

func (r *Reducer) index(pos int) (int, bool) {
	i := sort.SearchInts(r.samples, pos)
	return i, i < len(r.samples) && r.samples[i] == pos
}

// Add records one observation.  Observations for other contigs, or at
// positions that are not samples, are counted but otherwise ignored.
func (r *Reducer) Add(o pileup.Observation) {
	if o.Contig != r.plan.Contig || o.Pos < 1 {
		return
	}
	r.n++
	if o.Pos <= r.plan.Length {
		if i, ok := r.index(o.Pos); ok {
			r.primary[i] += o.Depth
		}
		return
	}
	if r.plan.Padding == 0 || o.Pos > r.plan.Length+r.plan.Padding {
		return
	}
	orig, _ := circular.Fold(o.Pos, r.plan.Length)
	if i, ok := r.index(orig); ok {
		r.pad[i] += o.Depth
	}
}

// Rows returns one row per sample position, in ascending position order.  If
// no observation for the contig was added, Rows returns nil.
func (r *Reducer) Rows() []Row {
	if r.n == 0 {
		return nil
	}
	rows := make([]Row, len(r.samples))
	for i, pos := range r.samples {
		rows[i] = Row{Contig: r.plan.Contig, Pos: pos, Depth: r.primary[i] + r.pad[i]}
	}
	return rows
}

// Reduce is a convenience wrapper around Reducer.
func Reduce(plan window.Plan, obs []pileup.Observation) []Row {
	r := NewReducer(plan)
	for _, o := range obs {
		r.Add(o)
	}
	return r.Rows()
}

// ReduceScratch reduces the scratch depth file written for plan's contig.  A
// missing or empty file yields no rows.
func ReduceScratch(ctx context.Context, plan window.Plan, path string) ([]Row, error) {
	r := NewReducer(plan)
	err := pileup.ReadScratch(ctx, path, func(o pileup.Observation) error {
		r.Add(o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Rows(), nil
}

// SortRows sorts rows by (contig, position).
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Contig != rows[j].Contig {
			return rows[i].Contig < rows[j].Contig
		}
		return rows[i].Pos < rows[j].Pos
	})
}
