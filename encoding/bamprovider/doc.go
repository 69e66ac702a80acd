// Package bamprovider provides utilities for scanning a coordinate-sorted BAM
// file by contig.
//
// Provider hands out Iterators over a single contig range, or over the whole
// file, and recycles the underlying readers.  Indexed access is used when a
// *.bai is present; otherwise iterators fall back to a filtered linear scan.
package bamprovider
