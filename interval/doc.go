/*Package interval implements 1-based, end-inclusive genomic regions as used by
  samtools-style region strings ("contig:start-end"), together with the
  tiling helpers used to split a contig into fixed-width pieces.
  Positions are plain ints; a region never spans more than one contig.
*/
package interval
