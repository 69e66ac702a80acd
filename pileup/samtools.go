package pileup

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/circov/genome"
	"github.com/grailbio/circov/interval"
	"github.com/grailbio/hts/sam"
)

// Samtools computes depth, coverage and counts by running the samtools
// binary.  Rows of unexpected shape in its output are skipped and counted.
type Samtools struct {
	// Path to the samtools binary.
	Path string
	// Threads is passed to "samtools view -@".
	Threads int
}

// ParseStats counts the rows seen and skipped by a text parser.
type ParseStats struct {
	Rows    int
	Skipped int
}

func (s ParseStats) report(what string) {
	if s.Skipped > 0 {
		log.Error.Printf("pileup: skipped %d of %d malformed %s rows", s.Skipped, s.Rows, what)
	}
}

func (s *Samtools) run(ctx context.Context, stdout io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, s.Path, args...)
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	log.Debug.Printf("pileup: running %s %s", s.Path, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return errors.E(errors.Unavailable, "samtools "+args[0]+": "+strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// readErr remembers the first error of the underlying reader, so that I/O
// failures can be told apart from malformed rows.
type readErr struct {
	r   io.Reader
	err error
}

func (r *readErr) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	return n, err
}

// newTSVReader returns a reader for samtools' headerless tab-separated
// output.  Rows whose column count differs from the row struct fail Read.
func newTSVReader(in *readErr) *tsv.Reader {
	r := tsv.NewReader(in)
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.RequireParseAllColumns = true
	return r
}

// scanTSV reads rows with read until EOF.  A row that fails to parse is
// counted as skipped.
func scanTSV(in *readErr, read func() error) (ParseStats, error) {
	var stats ParseStats
	for {
		err := read()
		if err == io.EOF {
			return stats, nil
		}
		if in.err != nil {
			return stats, in.err
		}
		stats.Rows++
		if err != nil {
			log.Debug.Printf("pileup: skip row: %v", err)
			stats.Skipped++
		}
	}
}

// depthRow is one line of "samtools depth" output.
type depthRow struct {
	Contig string `tsv:"contig"`
	Pos    int    `tsv:"pos"`
	Depth  int    `tsv:"depth"`
}

// ParseDepth parses "samtools depth" output (contig, pos, depth per line) and
// calls fn for each well-formed row.
func ParseDepth(r io.Reader, fn func(Observation) error) (ParseStats, error) {
	var (
		in     = &readErr{r: r}
		tr     = newTSVReader(in)
		fnErr  error
		errBad = errors.New("negative position or depth")
	)
	stats, err := scanTSV(in, func() error {
		if fnErr != nil {
			return io.EOF
		}
		var row depthRow
		if err := tr.Read(&row); err != nil {
			return err
		}
		if row.Pos < 1 || row.Depth < 0 {
			return errBad
		}
		fnErr = fn(Observation{Contig: row.Contig, Pos: row.Pos, Depth: row.Depth})
		return nil
	})
	if fnErr != nil {
		return stats, fnErr
	}
	return stats, err
}

// ParseCoverage parses "samtools coverage" output.  Each row has the nine
// columns of CoverageRow, in order.
func ParseCoverage(r io.Reader) ([]CoverageRow, ParseStats, error) {
	var (
		in   = &readErr{r: r}
		tr   = newTSVReader(in)
		rows []CoverageRow
	)
	stats, err := scanTSV(in, func() error {
		var row CoverageRow
		if err := tr.Read(&row); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, stats, err
}

// Depth implements Source.
func (s *Samtools) Depth(ctx context.Context, bamPath string, region interval.Region, fn func(Observation) error) error {
	var out bytes.Buffer
	if err := s.run(ctx, &out, "depth", "-a", "-r", region.String(), bamPath); err != nil {
		return err
	}
	stats, err := ParseDepth(&out, fn)
	stats.report("depth")
	return err
}

// Coverage implements Source.  samtools cannot fold the padding, so the row
// covers the primary region only.
func (s *Samtools) Coverage(ctx context.Context, bamPath string, c genome.Contig) (CoverageRow, error) {
	var out bytes.Buffer
	region := interval.Region{Contig: c.Name, Start: 1, End: c.Length}
	if err := s.run(ctx, &out, "coverage", "-r", region.String(), bamPath); err != nil {
		return CoverageRow{}, err
	}
	rows, stats, err := ParseCoverage(&out)
	stats.report("coverage")
	if err != nil {
		return CoverageRow{}, err
	}
	if len(rows) != 1 {
		return CoverageRow{}, errors.E(errors.Invalid, "samtools coverage: expected one row for "+c.Name)
	}
	return rows[0], nil
}

// Count implements Source.
func (s *Samtools) Count(ctx context.Context, bamPath string, require, exclude sam.Flags) (int, error) {
	args := []string{"view", "-c"}
	if s.Threads > 1 {
		args = append(args, "-@", strconv.Itoa(s.Threads))
	}
	if require != 0 {
		args = append(args, "-f", strconv.Itoa(int(require)))
	}
	if exclude != 0 {
		args = append(args, "-F", strconv.Itoa(int(exclude)))
	}
	var out bytes.Buffer
	if err := s.run(ctx, &out, append(args, bamPath)...); err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out.String()))
	if err != nil {
		return 0, errors.E(errors.Invalid, "samtools view -c: unexpected output "+out.String(), err)
	}
	return n, nil
}
