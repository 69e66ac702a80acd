package pileup_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/circov/interval"
	"github.com/grailbio/circov/pileup"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"v.io/x/lib/gosh"
	"v.io/x/lib/lookpath"
)

func TestParseDepth(t *testing.T) {
	in := "c\t1\t5\n" +
		"c\t2\n" + // too few columns
		"c\tx\t3\n" + // bad position
		"\n" +
		"c\t3\t0\n" +
		"#comment\n" +
		"c\t4\t-1\n" + // negative depth
		"c\t5\t1\t9\n" + // too many columns
		"c\t6\t2\n"
	var got []pileup.Observation
	stats, err := pileup.ParseDepth(strings.NewReader(in), func(o pileup.Observation) error {
		got = append(got, o)
		return nil
	})
	assert.NoError(t, err)
	expect.EQ(t, got, []pileup.Observation{{"c", 1, 5}, {"c", 3, 0}, {"c", 6, 2}})
	expect.EQ(t, stats, pileup.ParseStats{Rows: 7, Skipped: 4})
}

func TestParseDepthCallbackError(t *testing.T) {
	stop := errors.New("stop")
	n := 0
	_, err := pileup.ParseDepth(strings.NewReader("c\t1\t1\nc\t2\t1\nc\t3\t1\n"), func(pileup.Observation) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	expect.EQ(t, err, stop)
	expect.EQ(t, n, 2)
}

func TestParseReadError(t *testing.T) {
	broken := errors.New("broken pipe")
	r := io.MultiReader(strings.NewReader("c\t1\t1\n"), &failReader{err: broken})
	stats, err := pileup.ParseDepth(r, func(pileup.Observation) error { return nil })
	expect.EQ(t, err, broken)
	expect.EQ(t, stats.Skipped, 0)
	_, _, err = pileup.ParseCoverage(&failReader{err: broken})
	expect.EQ(t, err, broken)
}

type failReader struct{ err error }

func (r *failReader) Read([]byte) (int, error) { return 0, r.err }

func TestParseCoverage(t *testing.T) {
	in := "#rname\tstartpos\tendpos\tnumreads\tcovbases\tcoverage\tmeandepth\tmeanbaseq\tmeanmapq\n" +
		"chr\t1\t5000\t120\t4900\t98\t35.5\t30.1\t59.9\n" +
		"bad\t1\t5000\n" +
		"extra\t1\t300\t1\t1\t1\t1\t1\t1\t1\n" +
		"plasmid\t1\t300\tNaN?\t1\t1\t1\t1\t1\n"
	rows, stats, err := pileup.ParseCoverage(strings.NewReader(in))
	assert.NoError(t, err)
	expect.EQ(t, rows, []pileup.CoverageRow{{
		RName: "chr", StartPos: 1, EndPos: 5000, NumReads: 120, CovBases: 4900,
		Coverage: 98, MeanDepth: 35.5, MeanBaseQ: 30.1, MeanMapQ: 59.9,
	}})
	expect.EQ(t, stats, pileup.ParseStats{Rows: 4, Skipped: 3})
}

// TestSamtoolsMatchesNative runs both sources on the same BAM when samtools
// is installed.
func TestSamtoolsMatchesNative(t *testing.T) {
	sh := gosh.NewShell(t)
	defer sh.Cleanup()
	samtools, err := lookpath.Look(sh.Vars, "samtools")
	if err != nil {
		t.Skipf("samtools not found on the machine. Skipping the test")
		return
	}
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	path := writeCircularBAM(t, tmpdir)
	cmd := sh.Cmd(samtools, "index", path)
	cmd.Run()
	assert.NoError(t, cmd.Err)

	native := pileup.NewNative()
	st := &pileup.Samtools{Path: samtools}
	region := interval.Region{Contig: "c", Start: 1, End: 120}
	collect := func(src pileup.Source) []pileup.Observation {
		var obs []pileup.Observation
		assert.NoError(t, src.Depth(ctx, path, region, func(o pileup.Observation) error {
			obs = append(obs, o)
			return nil
		}))
		return obs
	}
	expect.EQ(t, collect(st), collect(native))

	n, err := st.Count(ctx, path, sam.Unmapped, 0)
	assert.NoError(t, err)
	expect.EQ(t, n, 2)
	assert.NoError(t, native.Close())
}
