package pileup

import (
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/base/tsv"
)

// CoverageColumns are the per-technology metric columns of a coverage row,
// after the #rname, startpos and endpos key columns.
var CoverageColumns = []string{"numreads", "covbases", "coverage", "meandepth", "meanbaseq", "meanmapq"}

// FormatFloat formats a coverage metric using the fewest digits that
// round-trip, the way samtools prints them.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteFields writes the metric columns of r, in CoverageColumns order.
func (r CoverageRow) WriteFields(w *tsv.Writer) {
	w.WriteInt64(int64(r.NumReads))
	w.WriteInt64(int64(r.CovBases))
	w.WriteString(FormatFloat(r.Coverage))
	w.WriteString(FormatFloat(r.MeanDepth))
	w.WriteString(FormatFloat(r.MeanBaseQ))
	w.WriteString(FormatFloat(r.MeanMapQ))
}

// SortCoverage sorts rows by descending end position, then by name.
func SortCoverage(rows []CoverageRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].EndPos != rows[j].EndPos {
			return rows[i].EndPos > rows[j].EndPos
		}
		return rows[i].RName < rows[j].RName
	})
}

// WriteCoverage writes rows in "samtools coverage" layout, including the
// header line.
func WriteCoverage(out io.Writer, rows []CoverageRow) error {
	w := tsv.NewWriter(out)
	w.WriteString("#rname")
	w.WriteString("startpos")
	w.WriteString("endpos")
	for _, c := range CoverageColumns {
		w.WriteString(c)
	}
	if err := w.EndLine(); err != nil {
		return err
	}
	for _, r := range rows {
		w.WriteString(r.RName)
		w.WriteInt64(int64(r.StartPos))
		w.WriteInt64(int64(r.EndPos))
		r.WriteFields(w)
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
