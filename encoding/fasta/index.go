package fasta

import (
	"bufio"
	"bytes"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/tsv"
)

// IndexEntry is one line of a samtools FASTA index: "<sequence
// name>\t<length>\t<byte offset>\t<bases per line>\t<bytes per line>".
type IndexEntry struct {
	Name      string `tsv:"name"`
	Length    int64  `tsv:"length"`
	Offset    int64  `tsv:"offset"`
	LineBases int64  `tsv:"linebases"`
	LineWidth int64  `tsv:"linewidth"`
}

// GenerateIndex generates an index (*.fai) from FASTA.
//
// The index format is defined by "samtool faidx"
// (http://www.htslib.org/doc/faidx.html).
func GenerateIndex(out io.Writer, in io.Reader) (err error) {
	var (
		tsvOut  = tsv.NewWriter(out)
		r       = bufio.NewReader(in)
		entry   IndexEntry
		inSeq   bool
		cumByte int64
		eof     bool
	)

	setErr := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}
	flush := func() {
		if !inSeq {
			return
		}
		tsvOut.WriteString(entry.Name)
		tsvOut.WriteInt64(entry.Length)
		tsvOut.WriteInt64(entry.Offset)
		tsvOut.WriteInt64(entry.LineBases)
		tsvOut.WriteInt64(entry.LineWidth)
		setErr(tsvOut.EndLine())
	}
	for !eof && err == nil {
		fullLine, e := r.ReadBytes('\n')
		if e == io.EOF { // Process fullLine, then exit the loop
			eof = true
		} else if e != nil {
			setErr(e)
		}
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			name, _ := splitHeader(string(line[1:]))
			if name == "" {
				setErr(errors.E(errors.Invalid, "malformed FASTA file"))
			}
			entry = IndexEntry{Name: name, Offset: cumByte}
			inSeq = true
			continue
		}
		if !inSeq {
			setErr(errors.E(errors.Invalid, "malformed FASTA file"))
			continue
		}
		if entry.LineWidth == 0 {
			entry.LineWidth = int64(len(fullLine))
			entry.LineBases = int64(len(line))
		}
		entry.Length += int64(len(line))
	}
	flush()
	setErr(tsvOut.Flush())
	if cumByte == 0 {
		setErr(errors.E(errors.Invalid, "empty FASTA file"))
	}
	return
}

// ReadIndex parses a *.fai file.
func ReadIndex(in io.Reader) ([]IndexEntry, error) {
	r := tsv.NewReader(in)
	var entries []IndexEntry
	for {
		var e IndexEntry
		if err := r.Read(&e); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.E(errors.Invalid, "reading FASTA index", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReferenceLengths reads a *.fai file and returns a map of sequence name to
// sequence length.
func ReferenceLengths(in io.Reader) (map[string]int64, error) {
	entries, err := ReadIndex(in)
	if err != nil {
		return nil, err
	}
	m := make(map[string]int64, len(entries))
	for _, e := range entries {
		m[e.Name] = e.Length
	}
	return m, nil
}
