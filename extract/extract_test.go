package extract_test

import (
	"compress/gzip"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/circov/encoding/bamprovider/bamtest"
	"github.com/grailbio/circov/extract"
	"github.com/grailbio/circov/pileup"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCounter records how many Count calls reach the underlying source.
type countingCounter struct {
	extract.Counter
	n int
}

func (c *countingCounter) Count(ctx context.Context, path string, require, exclude sam.Flags) (int, error) {
	c.n++
	return c.Counter.Count(ctx, path, require, exclude)
}

func readGz(t *testing.T, path string) []string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := ioutil.ReadAll(gz)
	require.NoError(t, err)
	if len(data) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestSingleEnd(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	header := bamtest.NewHeader(t, []string{"c", "d"}, []int{100, 50})
	c, d := header.Refs()[0], header.Refs()[1]
	bamPath := filepath.Join(tmpdir, "nanopore.bam")
	bamtest.Write(t, bamPath, header, []*sam.Record{
		bamtest.Mapped("r1", c, 0, 8, 0),
		bamtest.Mapped("r2", c, 10, 6, sam.Reverse),
		bamtest.Mapped("sec", c, 20, 8, sam.Secondary),
		bamtest.Mapped("r3", d, 0, 8, 0),
		bamtest.Unmapped("u1", "GGCC", 0),
	})

	src := pileup.NewNative()
	counter := &countingCounter{Counter: src}
	e := extract.New(counter, extract.Opts{Dir: tmpdir, Sample: "s"})
	stats, err := e.Contig(ctx, bamPath, "nanopore", "c")
	require.NoError(t, err)
	assert.Equal(t, extract.Stats{Single: 2}, stats)
	assert.Equal(t, []string{
		"@r1", "ACGTACGT", "+", "????????",
		"@r2", "GTACGT", "+", "??????",
	}, readGz(t, filepath.Join(tmpdir, "s_c_nanopore.fastq.gz")))

	stats, err = e.Unmapped(ctx, bamPath, "nanopore")
	require.NoError(t, err)
	assert.Equal(t, extract.Stats{Single: 1}, stats)
	assert.Equal(t, []string{"@u1", "GGCC", "+", "5555"},
		readGz(t, filepath.Join(tmpdir, "s_unmapped_nanopore.fastq.gz")))

	// The paired check runs once per BAM.
	assert.Equal(t, 1, counter.n)
	require.NoError(t, e.Close())
	require.NoError(t, src.Close())
}

func TestPaired(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	header := bamtest.NewHeader(t, []string{"c"}, []int{100})
	c := header.Refs()[0]
	bamPath := filepath.Join(tmpdir, "illumina.bam")
	bamtest.Write(t, bamPath, header, []*sam.Record{
		bamtest.Mapped("p1", c, 0, 4, sam.Paired|sam.Read1),
		bamtest.Mapped("p1", c, 30, 6, sam.Paired|sam.Read2|sam.Reverse),
		bamtest.Mapped("p2", c, 50, 4, sam.Paired|sam.Read2),
		bamtest.Unmapped("u1", "AAAT", sam.Paired|sam.Read2),
		bamtest.Unmapped("u1", "CCCG", sam.Paired|sam.Read1),
	})

	src := pileup.NewNative()
	e := extract.New(src, extract.Opts{Dir: tmpdir, Sample: "s"})
	paired, err := e.Paired(ctx, bamPath)
	require.NoError(t, err)
	assert.True(t, paired)

	stats, err := e.Contig(ctx, bamPath, "illumina", "c")
	require.NoError(t, err)
	assert.Equal(t, extract.Stats{Pairs: 1, Singletons: 1}, stats)
	base := e.Base("c", "illumina")
	assert.Equal(t, []string{"@p1/1", "ACGT", "+", "????"}, readGz(t, base+"_R1.fastq.gz"))
	assert.Equal(t, []string{"@p1/2", "GTACGT", "+", "??????"}, readGz(t, base+"_R2.fastq.gz"))
	assert.Equal(t, []string{"@p2/2", "ACGT", "+", "????"}, readGz(t, base+"_singletons.fastq.gz"))

	stats, err = e.Unmapped(ctx, bamPath, "illumina")
	require.NoError(t, err)
	assert.Equal(t, extract.Stats{Pairs: 1}, stats)
	base = e.Base(extract.UnmappedName, "illumina")
	assert.Equal(t, []string{"@u1/1", "CCCG", "+", "5555"}, readGz(t, base+"_R1.fastq.gz"))
	assert.Equal(t, []string{"@u1/2", "AAAT", "+", "5555"}, readGz(t, base+"_R2.fastq.gz"))
	assert.Nil(t, readGz(t, base+"_singletons.fastq.gz"))

	require.NoError(t, e.Close())
	require.NoError(t, src.Close())
}

func TestMissingContig(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	header := bamtest.NewHeader(t, []string{"c"}, []int{100})
	bamPath := filepath.Join(tmpdir, "x.bam")
	bamtest.Write(t, bamPath, header, nil)

	src := pileup.NewNative()
	e := extract.New(src, extract.Opts{Dir: tmpdir, Sample: "s"})
	_, err := e.Contig(vcontext.Background(), bamPath, "pacbio", "nope")
	assert.Error(t, err)
	assert.Error(t, e.Close())
	require.NoError(t, src.Close())
}

func TestUnsafeContigName(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	header := bamtest.NewHeader(t, []string{"tig/1", "tig_1"}, []int{100, 100})
	a, b := header.Refs()[0], header.Refs()[1]
	bamPath := filepath.Join(tmpdir, "pacbio.bam")
	bamtest.Write(t, bamPath, header, []*sam.Record{
		bamtest.Mapped("r1", a, 0, 8, 0),
		bamtest.Mapped("r2", b, 0, 4, 0),
	})

	src := pileup.NewNative()
	e := extract.New(src, extract.Opts{Dir: tmpdir, Sample: "s"})
	base := e.Base("tig/1", "pacbio")
	assert.Equal(t, tmpdir, filepath.Dir(base))
	assert.True(t, strings.HasPrefix(filepath.Base(base), "s_tig_1_"), base)
	assert.NotEqual(t, base, e.Base("tig_1", "pacbio"))
	assert.Equal(t, filepath.Join(tmpdir, "s_tig_1_pacbio"), e.Base("tig_1", "pacbio"))

	stats, err := e.Contig(ctx, bamPath, "pacbio", "tig/1")
	require.NoError(t, err)
	assert.Equal(t, extract.Stats{Single: 1}, stats)
	assert.Equal(t, []string{"@r1", "ACGTACGT", "+", "????????"}, readGz(t, base+".fastq.gz"))
	_, err = e.Contig(ctx, bamPath, "pacbio", "tig_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"@r2", "ACGT", "+", "????"}, readGz(t, e.Base("tig_1", "pacbio")+".fastq.gz"))

	require.NoError(t, e.Close())
	require.NoError(t, src.Close())
}
