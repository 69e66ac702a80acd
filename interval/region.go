package interval

import (
	"fmt"
	"strconv"
)

// Region is a contiguous 1-based, end-inclusive range on one contig.
type Region struct {
	Contig string
	Start  int
	End    int
}

// Len returns the number of positions in the region.
func (r Region) Len() int {
	return r.End - r.Start + 1
}

// Contains reports whether pos lies in the region.
func (r Region) Contains(pos int) bool {
	return pos >= r.Start && pos <= r.End
}

// String formats the region as "contig:start-end".
func (r Region) String() string {
	return r.Contig + ":" + strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}

// Validate returns an error if the region is empty or has a non-positive start.
func (r Region) Validate() error {
	if r.Contig == "" {
		return fmt.Errorf("interval: empty contig in region %v", r)
	}
	if r.Start < 1 || r.End < r.Start {
		return fmt.Errorf("interval: invalid range in region %v", r)
	}
	return nil
}

// Tile splits r into consecutive regions of at most width positions.  A
// non-positive width yields r itself.
func Tile(r Region, width int) []Region {
	if width <= 0 || r.Len() <= width {
		return []Region{r}
	}
	tiles := make([]Region, 0, (r.Len()+width-1)/width)
	for start := r.Start; start <= r.End; start += width {
		end := start + width - 1
		if end > r.End {
			end = r.End
		}
		tiles = append(tiles, Region{Contig: r.Contig, Start: start, End: end})
	}
	return tiles
}
