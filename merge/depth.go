package merge

import (
	"fmt"
	"io"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/circov/depth"
)

// depthNode is one (contig, pos) row of a DepthTable.
type depthNode struct {
	contig string
	pos    int
	depth  map[string]int
}

// Compare orders nodes by (contig, pos) for use in llrb.
func (n *depthNode) Compare(c llrb.Comparable) int {
	o := c.(*depthNode)
	switch {
	case n.contig < o.contig:
		return -1
	case n.contig > o.contig:
		return 1
	}
	return n.pos - o.pos
}

// DepthTable is the outer join of per-technology window depth rows.
type DepthTable struct {
	rows  llrb.Tree
	techs techSet
}

// NewDepthTable creates an empty table.
func NewDepthTable() *DepthTable {
	return &DepthTable{techs: techSet{}}
}

// Add joins the rows of one technology into the table.  It is an error to add
// the same technology twice, or to pass two rows with the same key.
func (t *DepthTable) Add(tech string, rows []depth.Row) error {
	if err := t.techs.add(tech); err != nil {
		return err
	}
	for _, r := range rows {
		if err := t.set(tech, r.Contig, r.Pos, r.Depth); err != nil {
			return err
		}
	}
	return nil
}

func (t *DepthTable) set(tech, contig string, pos, d int) error {
	n := getOrInsert(&t.rows, &depthNode{contig: contig, pos: pos, depth: map[string]int{}}).(*depthNode)
	if _, ok := n.depth[tech]; ok {
		return fmt.Errorf("merge: duplicate %s depth row for %s:%d", tech, contig, pos)
	}
	n.depth[tech] = d
	return nil
}

// Merge joins every technology of o into t.  o is not modified.
func (t *DepthTable) Merge(o *DepthTable) error {
	for tech := range o.techs {
		if err := t.techs.add(tech); err != nil {
			return err
		}
	}
	var err error
	o.rows.Do(func(c llrb.Comparable) bool {
		n := c.(*depthNode)
		for tech, d := range n.depth {
			if err = t.set(tech, n.contig, n.pos, d); err != nil {
				return true
			}
		}
		return false
	})
	return err
}

// Techs returns the technologies in the table in canonical order.
func (t *DepthTable) Techs() []string { return t.techs.sorted() }

// Len returns the number of distinct (contig, pos) rows.
func (t *DepthTable) Len() int { return t.rows.Len() }

// Depth returns the depth of tech at (contig, pos).  The second result is
// false when the cell is null.
func (t *DepthTable) Depth(tech, contig string, pos int) (int, bool) {
	c := t.rows.Get(&depthNode{contig: contig, pos: pos})
	if c == nil {
		return 0, false
	}
	d, ok := c.(*depthNode).depth[tech]
	return d, ok
}

// Write writes the table as depth.txt: contig, pos, and one <tech>_depth
// column per technology, sorted by (contig, pos).  Null cells are empty.
func (t *DepthTable) Write(out io.Writer) error {
	techs := t.Techs()
	w := tsv.NewWriter(out)
	w.WriteString("contig")
	w.WriteString("pos")
	for _, tech := range techs {
		w.WriteString(tech + "_depth")
	}
	if err := w.EndLine(); err != nil {
		return err
	}
	var err error
	t.rows.Do(func(c llrb.Comparable) bool {
		n := c.(*depthNode)
		w.WriteString(n.contig)
		w.WriteInt64(int64(n.pos))
		for _, tech := range techs {
			if d, ok := n.depth[tech]; ok {
				w.WriteInt64(int64(d))
			} else {
				w.WriteString("")
			}
		}
		err = w.EndLine()
		return err != nil
	})
	if err != nil {
		return err
	}
	return w.Flush()
}
