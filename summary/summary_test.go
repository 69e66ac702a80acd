package summary_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/circov/encoding/fasta"
	"github.com/grailbio/circov/genome"
	"github.com/grailbio/circov/merge"
	"github.com/grailbio/circov/pileup"
	"github.com/grailbio/circov/summary"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestWeightedMean(t *testing.T) {
	expect.EQ(t, summary.WeightedMean([]int{100, 300}, []float64{10, 30}), 25.0)
	expect.EQ(t, summary.WeightedMean([]int{1, 2}, []float64{1, 2}), 1.67)
	expect.EQ(t, summary.WeightedMean(nil, nil), 0.0)
	expect.EQ(t, summary.WeightedMean([]int{0}, []float64{5}), 0.0)
}

func testRegistry(t *testing.T) *genome.Registry {
	f, err := fasta.New(strings.NewReader(
		">chr\n" + strings.Repeat("A", 300) + "\n>p plasmid circular=true\n" + strings.Repeat("C", 100) + "\n"))
	assert.NoError(t, err)
	reg, err := genome.NewRegistry(f, genome.Opts{Padding: 10})
	assert.NoError(t, err)
	return reg
}

func testCoverage(t *testing.T) *merge.CoverageTable {
	cov := merge.NewCoverageTable()
	assert.NoError(t, cov.Add("nanopore", []pileup.CoverageRow{
		{RName: "chr", StartPos: 1, EndPos: 300, NumReads: 5, CovBases: 300, Coverage: 100, MeanDepth: 4},
	}))
	assert.NoError(t, cov.Add("illumina", []pileup.CoverageRow{
		{RName: "chr", StartPos: 1, EndPos: 300, NumReads: 10, CovBases: 300, Coverage: 100, MeanDepth: 30},
		{RName: "p", StartPos: 1, EndPos: 100, NumReads: 2, CovBases: 50, Coverage: 50, MeanDepth: 10},
	}))
	return cov
}

func TestBuild(t *testing.T) {
	reg := testRegistry(t)
	tab := summary.Build(testCoverage(t), reg, summary.Results{
		TotalLength: reg.TotalLength(),
		Unmapped:    map[string]int{"illumina": 3},
	}, "s")
	expect.EQ(t, tab.Techs, []string{"illumina", "nanopore"})
	var order []string
	for _, r := range tab.Rows {
		order = append(order, r.Contig)
	}
	expect.EQ(t, order, []string{"all", "chr", "p", "missing"})

	all, ok := tab.Row(summary.AllContig)
	assert.True(t, ok)
	expect.EQ(t, all.Length, 400)
	expect.EQ(t, all.Circ, summary.Synthetic)
	expect.EQ(t, all.Metrics["illumina"], summary.Metrics{NumReads: 15, CovBases: 350, Coverage: 87.5, MeanDepth: 25})
	expect.EQ(t, all.Metrics["nanopore"], summary.Metrics{NumReads: 5, CovBases: 300, Coverage: 75, MeanDepth: 3})

	missing, ok := tab.Row(summary.MissingContig)
	assert.True(t, ok)
	expect.EQ(t, missing.Length, 1)
	expect.EQ(t, missing.Metrics["illumina"], summary.Metrics{NumReads: 3})

	p, ok := tab.Row("p")
	assert.True(t, ok)
	expect.EQ(t, p.Circ, "True")
	expect.EQ(t, p.Metrics["nanopore"], summary.Metrics{})
}

func TestWrite(t *testing.T) {
	reg := testRegistry(t)
	tab := summary.Build(testCoverage(t), reg, summary.Results{
		TotalLength: reg.TotalLength(),
		Unmapped:    map[string]int{"illumina": 3},
	}, "s")
	var buf bytes.Buffer
	assert.NoError(t, tab.Write(&buf))
	expect.EQ(t, buf.String(), strings.Join([]string{
		"sample\tcirc\tcontigs\tlength\tillumina_numreads\tillumina_covbases\tillumina_coverage\tillumina_meandepth\tnanopore_numreads\tnanopore_covbases\tnanopore_coverage\tnanopore_meandepth",
		"s\tX\tall\t400\t15\t350\t87.5\t25.0\t5\t300\t75.0\t3.0",
		"s\tFalse\tchr\t300\t10\t300\t100.0\t30.0\t5\t300\t100.0\t4.0",
		"s\tTrue\tp\t100\t2\t50\t50.0\t10.0\t0\t0\t0.0\t0.0",
		"s\tX\tmissing\t1\t3\t0\t0.0\t0.0\t0\t0\t0.0\t0.0",
		"",
	}, "\n"))
}

func TestBuildEmpty(t *testing.T) {
	tab := summary.Build(merge.NewCoverageTable(), new(genome.Registry), summary.Results{}, "s")
	expect.EQ(t, len(tab.Rows), 2)
	expect.EQ(t, len(tab.Techs), 0)
}
