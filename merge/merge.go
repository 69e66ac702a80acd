// Package merge joins per-technology depth and coverage results into the
// combined tables written to depth.txt and cov.txt.
//
// Both tables are full outer joins on their row keys.  The result of a
// sequence of Add calls does not depend on the order in which technologies are
// added; columns are always reported in canonical technology order.
package merge

import (
	"fmt"
	"sort"

	"github.com/biogo/store/llrb"
)

// Technology tags with a fixed column order.  Others sort after these,
// alphabetically.
const (
	Illumina = "illumina"
	Nanopore = "nanopore"
	PacBio   = "pacbio"
)

var techRank = map[string]int{Illumina: 0, Nanopore: 1, PacBio: 2}

// SortTechs sorts technology tags into canonical column order.
func SortTechs(techs []string) {
	sort.Slice(techs, func(i, j int) bool {
		ri, iok := techRank[techs[i]]
		rj, jok := techRank[techs[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		}
		return techs[i] < techs[j]
	})
}

// techSet tracks the technologies folded into a table.
type techSet map[string]struct{}

func (s techSet) add(tech string) error {
	if tech == "" {
		return fmt.Errorf("merge: empty technology tag")
	}
	if _, ok := s[tech]; ok {
		return fmt.Errorf("merge: technology %s added twice", tech)
	}
	s[tech] = struct{}{}
	return nil
}

func (s techSet) sorted() []string {
	techs := make([]string, 0, len(s))
	for t := range s {
		techs = append(techs, t)
	}
	SortTechs(techs)
	return techs
}

// getOrInsert returns the node in t equal to key, inserting key if none
// exists.
func getOrInsert(t *llrb.Tree, key llrb.Comparable) llrb.Comparable {
	if n := t.Get(key); n != nil {
		return n
	}
	t.Insert(key)
	return key
}
