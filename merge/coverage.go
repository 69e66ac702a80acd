package merge

import (
	"fmt"
	"io"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/circov/pileup"
)

// CoverageKey identifies a row of a CoverageTable.
type CoverageKey struct {
	RName    string
	StartPos int
	EndPos   int
}

type coverageNode struct {
	CoverageKey
	metrics map[string]pileup.CoverageRow
}

// Compare orders nodes by descending end position, then name, then start.
func (n *coverageNode) Compare(c llrb.Comparable) int {
	o := c.(*coverageNode)
	if n.EndPos != o.EndPos {
		return o.EndPos - n.EndPos
	}
	switch {
	case n.RName < o.RName:
		return -1
	case n.RName > o.RName:
		return 1
	}
	return n.StartPos - o.StartPos
}

// CoverageTable is the outer join of per-technology coverage rows.
type CoverageTable struct {
	rows  llrb.Tree
	techs techSet
}

// NewCoverageTable creates an empty table.
func NewCoverageTable() *CoverageTable {
	return &CoverageTable{techs: techSet{}}
}

// Add joins the rows of one technology into the table.
func (t *CoverageTable) Add(tech string, rows []pileup.CoverageRow) error {
	if err := t.techs.add(tech); err != nil {
		return err
	}
	for _, r := range rows {
		if err := t.set(tech, r); err != nil {
			return err
		}
	}
	return nil
}

func (t *CoverageTable) set(tech string, r pileup.CoverageRow) error {
	key := CoverageKey{RName: r.RName, StartPos: r.StartPos, EndPos: r.EndPos}
	n := getOrInsert(&t.rows, &coverageNode{CoverageKey: key, metrics: map[string]pileup.CoverageRow{}}).(*coverageNode)
	if _, ok := n.metrics[tech]; ok {
		return fmt.Errorf("merge: duplicate %s coverage row for %s:%d-%d", tech, r.RName, r.StartPos, r.EndPos)
	}
	n.metrics[tech] = r
	return nil
}

// Merge joins every technology of o into t.  o is not modified.
func (t *CoverageTable) Merge(o *CoverageTable) error {
	for tech := range o.techs {
		if err := t.techs.add(tech); err != nil {
			return err
		}
	}
	var err error
	o.rows.Do(func(c llrb.Comparable) bool {
		for tech, r := range c.(*coverageNode).metrics {
			if err = t.set(tech, r); err != nil {
				return true
			}
		}
		return false
	})
	return err
}

// Techs returns the technologies in the table in canonical order.
func (t *CoverageTable) Techs() []string { return t.techs.sorted() }

// Len returns the number of distinct keys.
func (t *CoverageTable) Len() int { return t.rows.Len() }

// Do calls fn for each row in output order.  metrics holds an entry for each
// technology that has a value for the key; fn must not modify it.
func (t *CoverageTable) Do(fn func(key CoverageKey, metrics map[string]pileup.CoverageRow)) {
	t.rows.Do(func(c llrb.Comparable) bool {
		n := c.(*coverageNode)
		fn(n.CoverageKey, n.metrics)
		return false
	})
}

// Write writes the table as cov.txt: #rname, startpos, endpos, and the
// coverage columns of every technology, prefixed by the technology tag.
// Rows are sorted by descending endpos then #rname.  Null cells are empty.
func (t *CoverageTable) Write(out io.Writer) error {
	techs := t.Techs()
	w := tsv.NewWriter(out)
	w.WriteString("#rname")
	w.WriteString("startpos")
	w.WriteString("endpos")
	for _, tech := range techs {
		for _, c := range pileup.CoverageColumns {
			w.WriteString(tech + "_" + c)
		}
	}
	if err := w.EndLine(); err != nil {
		return err
	}
	var err error
	t.Do(func(key CoverageKey, metrics map[string]pileup.CoverageRow) {
		if err != nil {
			return
		}
		w.WriteString(key.RName)
		w.WriteInt64(int64(key.StartPos))
		w.WriteInt64(int64(key.EndPos))
		for _, tech := range techs {
			if r, ok := metrics[tech]; ok {
				r.WriteFields(w)
				continue
			}
			for range pileup.CoverageColumns {
				w.WriteString("")
			}
		}
		err = w.EndLine()
	})
	if err != nil {
		return err
	}
	return w.Flush()
}
