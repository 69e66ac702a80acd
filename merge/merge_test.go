package merge_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/circov/depth"
	"github.com/grailbio/circov/merge"
	"github.com/grailbio/circov/pileup"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var techRows = map[string][]depth.Row{
	"illumina": {{Contig: "a", Pos: 1, Depth: 10}, {Contig: "a", Pos: 100, Depth: 12}, {Contig: "b", Pos: 1, Depth: 3}},
	"nanopore": {{Contig: "a", Pos: 1, Depth: 7}, {Contig: "c", Pos: 5, Depth: 1}},
	"pacbio":   {{Contig: "b", Pos: 1, Depth: 0}, {Contig: "b", Pos: 50, Depth: 2}, {Contig: "a", Pos: 100, Depth: 4}},
}

func depthTable(t *testing.T, techs ...string) *merge.DepthTable {
	tab := merge.NewDepthTable()
	for _, tech := range techs {
		assert.NoError(t, tab.Add(tech, techRows[tech]))
	}
	return tab
}

func depthText(t *testing.T, tab *merge.DepthTable) string {
	var buf bytes.Buffer
	assert.NoError(t, tab.Write(&buf))
	return buf.String()
}

func TestDepthOuterJoin(t *testing.T) {
	tab := depthTable(t, "illumina", "nanopore", "pacbio")
	expect.EQ(t, tab.Len(), 5)
	expect.EQ(t, depthText(t, tab), strings.Join([]string{
		"contig\tpos\tillumina_depth\tnanopore_depth\tpacbio_depth",
		"a\t1\t10\t7\t",
		"a\t100\t12\t\t4",
		"b\t1\t3\t\t0",
		"b\t50\t\t\t2",
		"c\t5\t\t1\t",
		"",
	}, "\n"))
	d, ok := tab.Depth("pacbio", "b", 1)
	expect.True(t, ok)
	expect.EQ(t, d, 0)
	_, ok = tab.Depth("nanopore", "b", 1)
	expect.False(t, ok)
}

func TestDepthCommutative(t *testing.T) {
	want := depthText(t, depthTable(t, "illumina", "nanopore", "pacbio"))
	for _, order := range [][]string{
		{"pacbio", "nanopore", "illumina"},
		{"nanopore", "illumina", "pacbio"},
		{"pacbio", "illumina", "nanopore"},
	} {
		expect.EQ(t, depthText(t, depthTable(t, order...)), want, "order %v", order)
	}
}

func TestDepthAssociative(t *testing.T) {
	left := depthTable(t, "illumina", "nanopore")
	assert.NoError(t, left.Merge(depthTable(t, "pacbio")))

	right := depthTable(t, "nanopore", "pacbio")
	all := depthTable(t, "illumina")
	assert.NoError(t, all.Merge(right))

	expect.EQ(t, depthText(t, left), depthText(t, all))
	expect.EQ(t, depthText(t, left), depthText(t, depthTable(t, "illumina", "nanopore", "pacbio")))
}

func TestDepthCollisions(t *testing.T) {
	tab := depthTable(t, "illumina")
	expect.NotNil(t, tab.Add("illumina", nil))
	expect.NotNil(t, merge.NewDepthTable().Add("nanopore", []depth.Row{{Contig: "a", Pos: 1, Depth: 1}, {Contig: "a", Pos: 1, Depth: 2}}))
	expect.NotNil(t, tab.Merge(depthTable(t, "illumina")))
	expect.NotNil(t, tab.Add("", nil))
}

func TestSortTechs(t *testing.T) {
	techs := []string{"zymo", "pacbio", "element", "illumina", "nanopore"}
	merge.SortTechs(techs)
	expect.EQ(t, techs, []string{"illumina", "nanopore", "pacbio", "element", "zymo"})
}

var covRows = map[string][]pileup.CoverageRow{
	"illumina": {
		{RName: "chr", StartPos: 1, EndPos: 5000, NumReads: 120, CovBases: 4900, Coverage: 98, MeanDepth: 35.5, MeanBaseQ: 30.1, MeanMapQ: 59.9},
		{RName: "p1", StartPos: 1, EndPos: 300, NumReads: 4, CovBases: 300, Coverage: 100, MeanDepth: 2, MeanBaseQ: 30, MeanMapQ: 60},
	},
	"nanopore": {
		{RName: "p2", StartPos: 1, EndPos: 300, NumReads: 1, CovBases: 150, Coverage: 50, MeanDepth: 0.5, MeanBaseQ: 12, MeanMapQ: 40},
		{RName: "chr", StartPos: 1, EndPos: 5000, NumReads: 9, CovBases: 5000, Coverage: 100, MeanDepth: 8.25, MeanBaseQ: 14, MeanMapQ: 55},
	},
}

func coverageText(t *testing.T, techs ...string) string {
	tab := merge.NewCoverageTable()
	for _, tech := range techs {
		assert.NoError(t, tab.Add(tech, covRows[tech]))
	}
	var buf bytes.Buffer
	assert.NoError(t, tab.Write(&buf))
	return buf.String()
}

func TestCoverageOuterJoin(t *testing.T) {
	got := coverageText(t, "nanopore", "illumina")
	expect.EQ(t, got, coverageText(t, "illumina", "nanopore"))
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	assert.EQ(t, len(lines), 4)
	expect.EQ(t, lines[0], "#rname\tstartpos\tendpos\t"+
		"illumina_numreads\tillumina_covbases\tillumina_coverage\tillumina_meandepth\tillumina_meanbaseq\tillumina_meanmapq\t"+
		"nanopore_numreads\tnanopore_covbases\tnanopore_coverage\tnanopore_meandepth\tnanopore_meanbaseq\tnanopore_meanmapq")
	expect.EQ(t, lines[1], "chr\t1\t5000\t120\t4900\t98\t35.5\t30.1\t59.9\t9\t5000\t100\t8.25\t14\t55")
	expect.EQ(t, lines[2], "p1\t1\t300\t4\t300\t100\t2\t30\t60\t\t\t\t\t\t")
	expect.EQ(t, lines[3], "p2\t1\t300\t\t\t\t\t\t\t1\t150\t50\t0.5\t12\t40")
}

func TestCoverageDo(t *testing.T) {
	tab := merge.NewCoverageTable()
	assert.NoError(t, tab.Add("illumina", covRows["illumina"]))
	other := merge.NewCoverageTable()
	assert.NoError(t, other.Add("nanopore", covRows["nanopore"]))
	assert.NoError(t, tab.Merge(other))
	var names []string
	tab.Do(func(key merge.CoverageKey, metrics map[string]pileup.CoverageRow) {
		names = append(names, key.RName)
		if key.RName == "chr" {
			expect.EQ(t, len(metrics), 2)
		}
	})
	expect.EQ(t, names, []string{"chr", "p1", "p2"})
	expect.EQ(t, tab.Techs(), []string{"illumina", "nanopore"})
	expect.NotNil(t, tab.Merge(other))
}
