// Package fasta contains code for parsing FASTA files and their samtools
// indexes.  See http://www.htslib.org/doc/faidx.html.  Briefly, FASTA files
// consist of a number of named sequences that may be interrupted by newlines.
// For example:
//
// >chr7 circular=true
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// The sequence name is the stretch of characters up to the first whitespace
// after '>'.  Anything after that is the description, which is kept since it
// carries annotations such as "circular=true".
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	bufferInitSize = 1024 * 1024 * 300 // 300 MB
)

// Record is one named sequence.
type Record struct {
	Name        string
	Description string
	Seq         string
}

// Fasta represents FASTA-formatted data, consisting of a set of named
// sequences.
type Fasta interface {
	// Get returns a substring of the given sequence name at the given
	// coordinates, which are treated as a 0-based half-open interval
	// [start, end). Get is thread-safe.
	Get(seqName string, start, end uint64) (string, error)

	// Len returns the length of the given sequence.
	Len(seqName string) (uint64, error)

	// Description returns the header text following the sequence name.
	Description(seqName string) (string, error)

	// SeqNames returns the names of all sequences, in the order of appearance in
	// the FASTA file.
	SeqNames() []string
}

type fasta struct {
	records  map[string]*Record
	seqNames []string
}

// splitHeader splits a header line (without the leading '>') into name and
// description.
func splitHeader(line string) (name, desc string) {
	line = strings.TrimRight(line, "\r")
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

// Parse reads all records from r in order.  It returns an error if the data
// is empty, if sequence data precedes the first header, if a header has no
// name, if a record has no bases, or if a name repeats.
func Parse(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var (
		records []Record
		cur     *Record
		seq     strings.Builder
		seen    = map[string]bool{}
	)
	finish := func() error {
		if cur == nil {
			return nil
		}
		if seq.Len() == 0 {
			return errors.Errorf("malformed FASTA file: sequence %s has no bases", cur.Name)
		}
		cur.Seq = seq.String()
		records = append(records, *cur)
		seq.Reset()
		return nil
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if err := finish(); err != nil {
				return nil, err
			}
			name, desc := splitHeader(line[1:])
			if name == "" {
				return nil, errors.Errorf("malformed FASTA file: empty sequence name")
			}
			if seen[name] {
				return nil, errors.Errorf("malformed FASTA file: duplicate sequence %s", name)
			}
			seen[name] = true
			cur = &Record{Name: name, Description: desc}
			continue
		}
		if cur == nil {
			return nil, errors.Errorf("malformed FASTA file: sequence data before first header")
		}
		seq.WriteString(strings.TrimSpace(line))
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "couldn't read FASTA data")
	}
	if err := finish(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Errorf("empty FASTA file")
	}
	return records, nil
}

// New creates a new Fasta that holds all the FASTA data from the given reader
// in memory.
func New(r io.Reader) (Fasta, error) {
	records, err := Parse(r)
	if err != nil {
		return nil, err
	}
	f := &fasta{records: make(map[string]*Record, len(records))}
	for i := range records {
		f.records[records[i].Name] = &records[i]
		f.seqNames = append(f.seqNames, records[i].Name)
	}
	return f, nil
}

func (f *fasta) lookup(seqName string) (*Record, error) {
	r, ok := f.records[seqName]
	if !ok {
		return nil, errors.Errorf("sequence not found: %s", seqName)
	}
	return r, nil
}

// Get implements Fasta.Get().
func (f *fasta) Get(seqName string, start, end uint64) (string, error) {
	r, err := f.lookup(seqName)
	if err != nil {
		return "", err
	}
	if end <= start {
		return "", errors.Errorf("start must be less than end")
	}
	if end > uint64(len(r.Seq)) {
		return "", errors.Errorf("invalid query range %d - %d for sequence %s with length %d",
			start, end, seqName, len(r.Seq))
	}
	return r.Seq[start:end], nil
}

// Len implements Fasta.Len().
func (f *fasta) Len(seqName string) (uint64, error) {
	r, err := f.lookup(seqName)
	if err != nil {
		return 0, err
	}
	return uint64(len(r.Seq)), nil
}

// Description implements Fasta.Description().
func (f *fasta) Description(seqName string) (string, error) {
	r, err := f.lookup(seqName)
	if err != nil {
		return "", err
	}
	return r.Description, nil
}

// SeqNames implements Fasta.SeqNames().
func (f *fasta) SeqNames() []string {
	return f.seqNames
}
