package pileup

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/circov/interval"
)

const (
	contigHeader = "contig"
	depthRecSize = 8
	// scratchTile bounds the region passed to a single Source.Depth call.
	scratchTile = 1 << 20
)

func init() {
	recordiozstd.Init()
}

func marshalObservation(scratch []byte, p interface{}) ([]byte, error) {
	t := scratch
	if len(t) < depthRecSize {
		t = make([]byte, depthRecSize)
	}
	t = t[:depthRecSize]
	o := p.(*Observation)
	binary.LittleEndian.PutUint32(t[:4], uint32(o.Pos))
	binary.LittleEndian.PutUint32(t[4:8], uint32(o.Depth))
	return t, nil
}

func unmarshalObservation(in []byte) (interface{}, error) {
	if len(in) != depthRecSize {
		return nil, fmt.Errorf("pileup: depth record has %d bytes, want %d", len(in), depthRecSize)
	}
	return &Observation{
		Pos:   int(binary.LittleEndian.Uint32(in[:4])),
		Depth: int(binary.LittleEndian.Uint32(in[4:8])),
	}, nil
}

// WriteScratch runs src.Depth over region, one tile at a time, and stores the observations in a
// zstd-compressed recordio file at path.
func WriteScratch(ctx context.Context, src Source, bamPath string, region interval.Region, path string) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "pileup: create "+path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := recordio.NewWriter(out.Writer(ctx), recordio.WriterOpts{
		Marshal:      marshalObservation,
		Transformers: []string{recordiozstd.Name},
	})
	w.AddHeader(contigHeader, region.Contig)
	n := 0
	for _, tile := range interval.Tile(region, scratchTile) {
		tile := tile
		if err = src.Depth(ctx, bamPath, tile, func(o Observation) error {
			if o.Contig != tile.Contig || !tile.Contains(o.Pos) {
				return nil
			}
			w.Append(&o)
			n++
			return nil
		}); err != nil {
			w.Finish() // nolint: errcheck
			return err
		}
	}
	log.Debug.Printf("pileup: wrote %d observations for %v to %s", n, region, path)
	return w.Finish()
}

// ReadScratch calls fn for every observation stored at path.  A missing or
// empty file holds no observations.
func ReadScratch(ctx context.Context, path string, fn func(Observation) error) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		if errors.Is(errors.NotExist, err) || os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	info, err := in.Stat(ctx)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	sc := recordio.NewScanner(in.Reader(ctx), recordio.ScannerOpts{
		Unmarshal: unmarshalObservation,
	})
	var contig string
	for _, kv := range sc.Header() {
		if kv.Key == contigHeader {
			contig = kv.Value.(string)
		}
	}
	for sc.Scan() {
		o := sc.Get().(*Observation)
		o.Contig = contig
		if err = fn(*o); err != nil {
			return err
		}
	}
	return sc.Err()
}
