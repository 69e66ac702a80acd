// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package circov computes circular-aware read depth and coverage for a genome
// assembly.  Circular contigs are padded with a copy of their start before
// alignment, and depth observed on the padding is folded back onto the
// original coordinates.
package circov

import (
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/circov/align"
	"github.com/grailbio/circov/depth"
	"github.com/grailbio/circov/encoding/fastq"
	"github.com/grailbio/circov/extract"
	"github.com/grailbio/circov/genome"
	"github.com/grailbio/circov/merge"
	"github.com/grailbio/circov/pileup"
	"github.com/grailbio/circov/summary"
	"github.com/grailbio/circov/window"
	"github.com/grailbio/hts/sam"
)

// Output file names under Opts.Out.
const (
	DepthFile   = "depth.txt"
	CovFile     = "cov.txt"
	SummaryFile = "overall_summary.txt"
	FastqDir    = "fastq"
)

// TechCovFile returns the name of the per-technology coverage file.
func TechCovFile(tech string) string { return tech + "_cov.txt" }

// Runner runs the pipeline with the given aligner and depth source.
type Runner struct {
	Opts    Opts
	Aligner align.Aligner
	Source  pileup.Source
}

// Result describes a completed run.
type Result struct {
	Registry *genome.Registry
	// Techs lists the technologies that produced alignments, in canonical
	// order.
	Techs   []string
	Depth   *merge.DepthTable
	Cov     *merge.CoverageTable
	Summary *summary.Table
	Results summary.Results
}

// Run resolves the external tools, then runs the pipeline with the minimap2
// aligner and the configured depth source.
func Run(ctx context.Context, opts Opts) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	tools, err := align.CheckTools()
	if err != nil {
		return nil, err
	}
	var src pileup.Source
	if opts.Samtools {
		src = &pileup.Samtools{Path: tools.Samtools, Threads: opts.Threads}
	} else {
		native := pileup.NewNative()
		defer func() {
			if err := native.Close(); err != nil {
				log.Error.Printf("circov: %v", err)
			}
		}()
		src = native
	}
	r := &Runner{
		Opts:    opts,
		Aligner: &align.Minimap2{Tools: tools, Threads: opts.Threads},
		Source:  src,
	}
	return r.Run(ctx)
}

// Run runs the pipeline.  A technology whose alignment fails is dropped with
// an error log line; the run fails only if no technology remains.
func (r *Runner) Run(ctx context.Context) (res *Result, err error) {
	opts := r.Opts
	if err = opts.Validate(); err != nil {
		return nil, err
	}
	inputs := opts.Inputs()
	for _, in := range inputs {
		if len(in.Reads) == 2 {
			n, err := fastq.CheckPair(ctx, in.Reads[0], in.Reads[1])
			if err != nil {
				return nil, err
			}
			log.Printf("circov: %s reads: %v (%d pairs)", in.Tech, in.Reads, n)
			continue
		}
		for _, path := range in.Reads {
			if err = fastq.Check(ctx, path); err != nil {
				return nil, err
			}
		}
		log.Printf("circov: %s reads: %v", in.Tech, in.Reads)
	}
	if err = os.MkdirAll(opts.Out, 0777); err != nil {
		return nil, errors.E(err, "circov: create "+opts.Out)
	}
	scratch, err := ioutil.TempDir(opts.Out, "circov-scratch")
	if err != nil {
		return nil, errors.E(err, "circov: scratch dir")
	}
	if opts.KeepScratch {
		log.Printf("circov: keeping scratch files in %s", scratch)
	} else {
		defer func() {
			if e := os.RemoveAll(scratch); e != nil {
				log.Error.Printf("circov: remove %s: %v", scratch, e)
			}
		}()
	}
	if m, ok := r.Aligner.(*align.Minimap2); ok && m.Dir == "" {
		m.Dir = scratch
	}

	reg, padded, err := genome.Build(ctx, opts.Genome, scratch, genome.Opts{Padding: opts.Padding})
	if err != nil {
		return nil, err
	}
	if top := TopContigs(reg, opts.TopContigs); len(top) > 0 {
		log.Printf("circov: %d longest contigs: %v", len(top), top)
	}
	var ex *extract.Extractor
	if opts.All {
		dir := filepath.Join(opts.Out, FastqDir)
		if err = os.MkdirAll(dir, 0777); err != nil {
			return nil, errors.E(err, "circov: create "+dir)
		}
		ex = extract.New(r.Source, extract.Opts{Dir: dir, Sample: opts.SampleName()})
		defer func() {
			if e := ex.Close(); e != nil {
				log.Error.Printf("circov: %v", e)
			}
		}()
	}

	res = &Result{
		Registry: reg,
		Depth:    merge.NewDepthTable(),
		Cov:      merge.NewCoverageTable(),
		Results:  summary.Results{TotalLength: reg.TotalLength(), Unmapped: map[string]int{}},
	}
	for _, in := range inputs {
		bam, err := r.Aligner.Align(ctx, padded, in.Reads, in.Tech)
		if err != nil {
			log.Error.Printf("circov: dropping %s: %v", in.Tech, err)
			continue
		}
		if err := r.tech(ctx, res, ex, scratch, in.Tech, bam); err != nil {
			return nil, err
		}
		res.Techs = append(res.Techs, in.Tech)
	}
	if len(res.Techs) == 0 {
		return nil, errors.E(errors.Unavailable, "circov: no technology produced an alignment")
	}

	res.Summary = summary.Build(res.Cov, reg, res.Results, opts.SampleName())
	for _, o := range []struct {
		name  string
		write func(io.Writer) error
	}{
		{DepthFile, res.Depth.Write},
		{CovFile, res.Cov.Write},
		{SummaryFile, res.Summary.Write},
	} {
		if err = writeFile(ctx, filepath.Join(opts.Out, o.name), o.write); err != nil {
			return nil, err
		}
	}
	log.Printf("circov: wrote results for %s to %s", opts.SampleName(), opts.Out)
	return res, nil
}

// tech computes coverage, depth and unmapped counts for one aligned
// technology and folds them into res.
func (r *Runner) tech(ctx context.Context, res *Result, ex *extract.Extractor, scratch, tech, bam string) error {
	var (
		opts    = r.Opts
		contigs = res.Registry.Contigs()
		covRows = make([]pileup.CoverageRow, len(contigs))
		covOK   = make([]bool, len(contigs))
	)
	// Per-contig tasks share no state beyond their own slots and scratch
	// files.  Failures leave the slot empty, which reads as zero rows.
	_ = traverse.Limit(opts.Threads).Each(len(contigs), func(i int) error {
		c := contigs[i]
		row, err := r.Source.Coverage(ctx, bam, c)
		if err != nil {
			log.Error.Printf("circov: %s coverage of %s: %v", tech, c.Name, err)
		} else {
			covRows[i], covOK[i] = row, true
		}
		plan := window.New(c.Name, c.Length, c.Padding, opts.Window())
		path := pileup.ScratchPath(scratch, tech, c.Name)
		if err := pileup.WriteScratch(ctx, r.Source, bam, plan.DepthRegion(), path); err != nil {
			log.Error.Printf("circov: %s depth of %s: %v", tech, c.Name, err)
			if e := os.Remove(path); e != nil && !os.IsNotExist(e) {
				log.Error.Printf("circov: remove %s: %v", path, e)
			}
		}
		if ex != nil {
			if _, err := ex.Contig(ctx, bam, tech, c.Name); err != nil {
				log.Error.Printf("circov: %s extract %s: %v", tech, c.Name, err)
			}
		}
		return nil
	})

	var cov []pileup.CoverageRow
	for i, ok := range covOK {
		if ok {
			cov = append(cov, covRows[i])
		}
	}
	pileup.SortCoverage(cov)
	if err := writeFile(ctx, filepath.Join(opts.Out, TechCovFile(tech)), func(w io.Writer) error {
		return pileup.WriteCoverage(w, cov)
	}); err != nil {
		return err
	}
	if err := res.Cov.Add(tech, cov); err != nil {
		return err
	}

	var rows []depth.Row
	for _, c := range contigs {
		plan := window.New(c.Name, c.Length, c.Padding, opts.Window())
		cr, err := depth.ReduceScratch(ctx, plan, pileup.ScratchPath(scratch, tech, c.Name))
		if err != nil {
			log.Error.Printf("circov: %s depth of %s: %v", tech, c.Name, err)
			continue
		}
		rows = append(rows, cr...)
	}
	depth.SortRows(rows)
	if err := res.Depth.Add(tech, rows); err != nil {
		return err
	}

	unmapped, err := r.Source.Count(ctx, bam, sam.Unmapped, 0)
	if err != nil {
		log.Error.Printf("circov: %s unmapped count: %v", tech, err)
	}
	res.Results.Unmapped[tech] = unmapped
	log.Printf("circov: there are %d unmapped %s reads", unmapped, tech)
	if ex != nil {
		if _, err := ex.Unmapped(ctx, bam, tech); err != nil {
			log.Error.Printf("circov: %s extract unmapped: %v", tech, err)
		}
	}
	return nil
}

// TopContigs returns the names of the n longest contigs, longest first.  Ties
// keep FASTA order.
func TopContigs(reg *genome.Registry, n int) []string {
	contigs := append([]genome.Contig(nil), reg.Contigs()...)
	sort.SliceStable(contigs, func(i, j int) bool { return contigs[i].Length > contigs[j].Length })
	if n < len(contigs) {
		contigs = contigs[:n]
	}
	names := make([]string, len(contigs))
	for i, c := range contigs {
		names[i] = c.Name
	}
	return names
}

func writeFile(ctx context.Context, path string, fn func(io.Writer) error) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "circov: create "+path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err = fn(out.Writer(ctx)); err != nil {
		return errors.E(err, "circov: write "+path)
	}
	return nil
}
