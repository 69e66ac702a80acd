package window_test

import (
	"testing"

	"github.com/grailbio/circov/interval"
	"github.com/grailbio/circov/window"
	"github.com/grailbio/testutil/expect"
)

func TestDivisor(t *testing.T) {
	tests := []struct {
		length, count, want int
	}{
		{10000, 1000, 10},
		{10, 3, 3},
		{25, 10, 2},
		{35, 10, 4},
		{3, 1000, 0},
		{100, 0, 0},
	}
	for _, tt := range tests {
		expect.EQ(t, window.Divisor(tt.length, tt.count), tt.want, "length=%d count=%d", tt.length, tt.count)
	}
}

func TestSamples(t *testing.T) {
	p := window.New("c", 10, 0, window.Opts{Count: 3})
	expect.EQ(t, p.Divisor, 3)
	expect.EQ(t, p.Samples(), []int{1, 3, 6, 9})

	p = window.New("c", 10000, 10000, window.DefaultOpts)
	s := p.Samples()
	expect.EQ(t, len(s), 1001)
	expect.EQ(t, s[0], 1)
	expect.EQ(t, s[len(s)-2], 9990)
	expect.EQ(t, s[len(s)-1], 9999)
	for _, pos := range s {
		expect.True(t, pos >= 1 && pos < 10000)
	}

	// A linear 1000bp contig with divisor 100 ends on L-1, not L.
	p = window.New("lin", 1000, 0, window.Opts{Count: 10})
	expect.EQ(t, p.Samples(), []int{1, 100, 200, 300, 400, 500, 600, 700, 800, 900, 999})

	// Divisor zero samples every position.
	p = window.New("c", 3, 3, window.DefaultOpts)
	expect.EQ(t, p.Divisor, 0)
	expect.EQ(t, p.Samples(), []int{1, 2})
	p = window.New("c", 1, 1, window.DefaultOpts)
	expect.EQ(t, p.Samples(), []int{1})

	p = window.New("c", 20, 0, window.Opts{Size: 5})
	expect.EQ(t, p.Samples(), []int{1, 5, 10, 15, 19})
}

func TestIsSampleBounds(t *testing.T) {
	p := window.New("c", 100, 50, window.Opts{Count: 10})
	expect.False(t, p.IsSample(0))
	expect.False(t, p.IsSample(101))
	expect.False(t, p.IsSample(110))
	expect.True(t, p.IsSample(1))
	expect.True(t, p.IsSample(99))
	expect.False(t, p.IsSample(100))
	expect.True(t, p.IsSample(90))
	expect.False(t, p.IsSample(55))
}

func TestRegions(t *testing.T) {
	p := window.New("chrM", 16569, 10000, window.DefaultOpts)
	expect.EQ(t, p.Primary(), interval.Region{Contig: "chrM", Start: 1, End: 16569})
	pad, ok := p.Pad()
	expect.True(t, ok)
	expect.EQ(t, pad, interval.Region{Contig: "chrM", Start: 16570, End: 26569})
	expect.EQ(t, p.DepthRegion(), interval.Region{Contig: "chrM", Start: 1, End: 26569})

	_, ok = window.New("linear", 500, 0, window.DefaultOpts).Pad()
	expect.False(t, ok)
}

func TestValidate(t *testing.T) {
	expect.NoError(t, window.DefaultOpts.Validate())
	expect.NotNil(t, window.Opts{}.Validate())
	expect.NotNil(t, window.Opts{Count: 10, Size: -1}.Validate())
	expect.NoError(t, window.Opts{Size: 100}.Validate())
}
