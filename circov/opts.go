package circov

import (
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/circov/merge"
	"github.com/grailbio/circov/window"
)

// Opts configures a run.  It is passed by value and never modified.
type Opts struct {
	// Genome is the assembly FASTA, optionally compressed.
	Genome string
	// Illumina holds one (single-end) or two (R1, R2) FASTQ files.
	Illumina []string
	// Nanopore and PacBio are long-read FASTQ files.
	Nanopore string
	PacBio   string

	// Out is the output directory.  It is created if needed.
	Out string
	// Sample labels the summary rows.  Defaults to the genome file name
	// without extensions.
	Sample string
	// Threads bounds the per-contig worker pool and is passed to the aligner.
	Threads int
	// Padding is the number of bases appended to circular contigs.
	Padding int
	// WindowCount is the target number of depth samples per contig.
	WindowCount int
	// WindowSize, when positive, overrides WindowCount as the sampling
	// divisor.
	WindowSize int
	// All enables FASTQ extraction of the reads of every contig and of the
	// unmapped reads.
	All bool
	// Samtools selects the samtools-based depth and coverage source instead
	// of the native one.
	Samtools bool
	// KeepScratch leaves the scratch directory in place.
	KeepScratch bool
	// TopContigs is the number of longest contigs reported for plotting.
	TopContigs int
}

// DefaultOpts holds the default option values.
var DefaultOpts = Opts{
	Out:         "circulocov",
	Threads:     4,
	Padding:     10000,
	WindowCount: window.DefaultOpts.Count,
	TopContigs:  10,
}

// Input is the reads of one technology.
type Input struct {
	Tech  string
	Reads []string
}

// Inputs returns the configured read inputs in canonical technology order.
func (o Opts) Inputs() []Input {
	var in []Input
	if len(o.Illumina) > 0 {
		in = append(in, Input{Tech: merge.Illumina, Reads: o.Illumina})
	}
	if o.Nanopore != "" {
		in = append(in, Input{Tech: merge.Nanopore, Reads: []string{o.Nanopore}})
	}
	if o.PacBio != "" {
		in = append(in, Input{Tech: merge.PacBio, Reads: []string{o.PacBio}})
	}
	return in
}

// Window returns the window planner options.
func (o Opts) Window() window.Opts {
	return window.Opts{Count: o.WindowCount, Size: o.WindowSize}
}

// SampleName returns o.Sample, or the genome file name stripped of its
// extensions.
func (o Opts) SampleName() string {
	if o.Sample != "" {
		return o.Sample
	}
	base := filepath.Base(o.Genome)
	for _, ext := range []string{".gz", ".zst", ".bz2"} {
		base = strings.TrimSuffix(base, ext)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Validate returns an errors.Invalid error for unusable options.
func (o Opts) Validate() error {
	switch {
	case o.Genome == "":
		return errors.E(errors.Invalid, "circov: no genome given")
	case len(o.Inputs()) == 0:
		return errors.E(errors.Invalid, "circov: no reads given; at least one of illumina, nanopore or pacbio is required")
	case len(o.Illumina) > 2:
		return errors.E(errors.Invalid, "circov: at most two illumina files (R1, R2) are accepted")
	case o.Out == "":
		return errors.E(errors.Invalid, "circov: no output directory given")
	case o.Threads < 1:
		return errors.E(errors.Invalid, "circov: threads must be positive")
	case o.Padding < 0:
		return errors.E(errors.Invalid, "circov: padding must not be negative")
	case o.TopContigs < 0:
		return errors.E(errors.Invalid, "circov: top contig count must not be negative")
	}
	if err := o.Window().Validate(); err != nil {
		return errors.E(errors.Invalid, err)
	}
	return nil
}
