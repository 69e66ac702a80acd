// Package extract writes the reads aligned to each contig, and the reads
// that did not align, to gzipped FASTQ files.
//
// A BAM that contains any read with the PAIRED flag is extracted as pairs:
// <base>_R1.fastq.gz, <base>_R2.fastq.gz and <base>_singletons.fastq.gz.
// Otherwise all reads go to <base>.fastq.gz.  Reverse-strand reads are
// written as sequenced.
package extract

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/circov/encoding/bamprovider"
	"github.com/grailbio/circov/encoding/fastq"
	"github.com/grailbio/circov/genome"
	"github.com/grailbio/hts/sam"
	"github.com/klauspost/compress/gzip"
)

// skipFlags are never written, matching "samtools fastq".
const skipFlags = sam.Secondary | sam.Supplementary

// UnmappedName is the contig slot used in the names of unmapped-read files.
const UnmappedName = "unmapped"

// Counter counts BAM records by flag.  pileup.Source satisfies it.
type Counter interface {
	Count(ctx context.Context, bamPath string, require, exclude sam.Flags) (int, error)
}

// Opts configures an Extractor.
type Opts struct {
	// Dir receives the FASTQ files.
	Dir string
	// Sample prefixes every file name.
	Sample string
}

// Extractor writes per-contig FASTQ files.  Thread safe.
type Extractor struct {
	opts      Opts
	counter   Counter
	providers bamprovider.Set

	mu     sync.Mutex
	paired map[string]bool
}

// New creates an Extractor.  counter is used to probe for paired reads.
func New(counter Counter, opts Opts) *Extractor {
	return &Extractor{opts: opts, counter: counter, paired: map[string]bool{}}
}

// Close releases the BAM readers.
func (e *Extractor) Close() error {
	return e.providers.Close()
}

// Paired reports whether bamPath holds paired reads.  The answer is computed
// once per path.
func (e *Extractor) Paired(ctx context.Context, bamPath string) (bool, error) {
	e.mu.Lock()
	p, ok := e.paired[bamPath]
	e.mu.Unlock()
	if ok {
		return p, nil
	}
	n, err := e.counter.Count(ctx, bamPath, sam.Paired, 0)
	if err != nil {
		return false, err
	}
	p = n > 0
	e.mu.Lock()
	e.paired[bamPath] = p
	e.mu.Unlock()
	return p, nil
}

// Base returns the path prefix of the files for contig and tech.  Characters
// unsafe in file names are replaced, and a contig whose name changed gets its
// fingerprint appended so that distinct contigs never share files.
func (e *Extractor) Base(contig, tech string) string {
	name := genome.SafeName(contig)
	if name != contig {
		name += fmt.Sprintf("_%08x", farm.Fingerprint32([]byte(contig)))
	}
	return filepath.Join(e.opts.Dir, genome.SafeName(e.opts.Sample)+"_"+name+"_"+tech)
}

// Stats counts the records written.
type Stats struct {
	Single, Pairs, Singletons int
}

// Contig writes the mapped reads of contig in bamPath.
func (e *Extractor) Contig(ctx context.Context, bamPath, tech, contig string) (Stats, error) {
	iter := e.providers.Get(bamPath).NewRegionIterator(contig, 0, math.MaxInt32)
	return e.write(ctx, bamPath, e.Base(contig, tech), iter, func(f sam.Flags) bool {
		return f&sam.Unmapped == 0
	})
}

// Unmapped writes the unmapped reads in bamPath.
func (e *Extractor) Unmapped(ctx context.Context, bamPath, tech string) (Stats, error) {
	iter := e.providers.Get(bamPath).NewFileIterator()
	return e.write(ctx, bamPath, e.Base(UnmappedName, tech), iter, func(f sam.Flags) bool {
		return f&sam.Unmapped != 0
	})
}

func (e *Extractor) write(ctx context.Context, bamPath, base string, iter *bamprovider.Iterator, keep func(sam.Flags) bool) (stats Stats, err error) {
	paired, err := e.Paired(ctx, bamPath)
	if err != nil {
		iter.Close() // nolint: errcheck
		return stats, err
	}
	var out sink
	if paired {
		out, err = newPairSink(ctx, base)
	} else {
		out, err = newSingleSink(ctx, base)
	}
	if err != nil {
		iter.Close() // nolint: errcheck
		return stats, err
	}
	for iter.Scan() {
		r := iter.Record()
		if r.Flags&skipFlags != 0 || !keep(r.Flags) {
			continue
		}
		if err = out.add(r); err != nil {
			break
		}
	}
	if ierr := iter.Close(); ierr != nil && err == nil {
		err = errors.E(ierr, "extract: read "+bamPath)
	}
	stats, cerr := out.close(ctx)
	if err == nil {
		err = cerr
	}
	log.Debug.Printf("extract: %s: %+v", base, stats)
	return stats, err
}

// gzFastq is one gzipped FASTQ output file.
type gzFastq struct {
	path string
	f    file.File
	gz   *gzip.Writer
	w    *fastq.Writer
}

func createGzFastq(ctx context.Context, path string) (*gzFastq, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "extract: create "+path)
	}
	gz := gzip.NewWriter(f.Writer(ctx))
	return &gzFastq{path: path, f: f, gz: gz, w: fastq.NewWriter(gz)}, nil
}

func (g *gzFastq) close(ctx context.Context) (err error) {
	err = g.w.Flush()
	if e := g.gz.Close(); e != nil && err == nil {
		err = e
	}
	file.CloseAndReport(ctx, g.f, &err)
	if err != nil {
		err = errors.E(err, "extract: write "+g.path)
	}
	return err
}

type sink interface {
	add(r *sam.Record) error
	close(ctx context.Context) (Stats, error)
}

type singleSink struct {
	out   *gzFastq
	stats Stats
}

func newSingleSink(ctx context.Context, base string) (*singleSink, error) {
	out, err := createGzFastq(ctx, base+".fastq.gz")
	if err != nil {
		return nil, err
	}
	return &singleSink{out: out}, nil
}

func (s *singleSink) add(r *sam.Record) error {
	read := fastq.FromRecord(r, "")
	s.stats.Single++
	return s.out.w.Write(&read)
}

func (s *singleSink) close(ctx context.Context) (Stats, error) {
	return s.stats, s.out.close(ctx)
}

// pairSink holds each read until its mate arrives.  Reads whose mate never
// arrives are written as singletons at close.
type pairSink struct {
	r1, r2, single *gzFastq
	pending        map[string]*sam.Record
	order          []string
	stats          Stats
}

func newPairSink(ctx context.Context, base string) (*pairSink, error) {
	s := &pairSink{pending: map[string]*sam.Record{}}
	var err error
	for _, o := range []struct {
		dst    **gzFastq
		suffix string
	}{
		{&s.r1, "_R1.fastq.gz"},
		{&s.r2, "_R2.fastq.gz"},
		{&s.single, "_singletons.fastq.gz"},
	} {
		if *o.dst, err = createGzFastq(ctx, base+o.suffix); err != nil {
			s.close(ctx) // nolint: errcheck
			return nil, err
		}
	}
	return s, nil
}

func mateSuffix(f sam.Flags) string {
	switch {
	case f&sam.Read1 != 0:
		return "/1"
	case f&sam.Read2 != 0:
		return "/2"
	}
	return ""
}

func (s *pairSink) add(r *sam.Record) error {
	if r.Flags&sam.Paired == 0 || r.Flags&(sam.Read1|sam.Read2) == 0 {
		read := fastq.FromRecord(r, "")
		s.stats.Singletons++
		return s.single.w.Write(&read)
	}
	mate, ok := s.pending[r.Name]
	if !ok || mate.Flags&(sam.Read1|sam.Read2) == r.Flags&(sam.Read1|sam.Read2) {
		if ok {
			// A duplicate of the same end; keep the first.
			return nil
		}
		s.pending[r.Name] = r
		s.order = append(s.order, r.Name)
		return nil
	}
	delete(s.pending, r.Name)
	first, second := mate, r
	if first.Flags&sam.Read2 != 0 {
		first, second = second, first
	}
	a, b := fastq.FromRecord(first, "/1"), fastq.FromRecord(second, "/2")
	s.stats.Pairs++
	if err := s.r1.w.Write(&a); err != nil {
		return err
	}
	return s.r2.w.Write(&b)
}

func (s *pairSink) close(ctx context.Context) (Stats, error) {
	var err error
	if s.single != nil {
		for _, name := range s.order {
			r, ok := s.pending[name]
			if !ok {
				continue
			}
			delete(s.pending, name)
			read := fastq.FromRecord(r, mateSuffix(r.Flags))
			s.stats.Singletons++
			if e := s.single.w.Write(&read); e != nil && err == nil {
				err = e
			}
		}
	}
	for _, out := range []*gzFastq{s.r1, s.r2, s.single} {
		if out == nil {
			continue
		}
		if e := out.close(ctx); e != nil && err == nil {
			err = e
		}
	}
	return s.stats, err
}
