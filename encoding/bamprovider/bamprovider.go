package bamprovider

import (
	"fmt"
	"io"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// Provider reads a BAM file.  The BAM and index may be any path understood by
// grailbio/base/file.  Thread safe.
type Provider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	// Index is the pathname of *.bam.bai file. If "", Path + ".bai"
	Index string
	err   errors.Once

	mu        sync.Mutex
	nActive   int
	freeIters []*Iterator
	header    *sam.Header
	hasIndex  *bool
}

// NewProvider creates a Provider for the BAM file at path.
func NewProvider(path string) *Provider {
	return &Provider{Path: path}
}

// Iterator iterates over sam.Records in a particular range, in file order.
// Thread compatible.
type Iterator struct {
	provider *Provider
	in       file.File
	reader   *bam.Reader
	index    *bam.Index
	// Offset of the first record in the file.
	firstRecord bgzf.Offset

	// Range to read.  ref == nil means the whole file.
	ref        *sam.Reference
	start, end int

	active bool
	err    error
	next   *sam.Record
}

func (b *Provider) indexPath() string {
	index := b.Index
	if index == "" {
		index = b.Path + ".bai"
	}
	return index
}

// GetHeader returns the BAM header.  The caller must not modify the result.
func (b *Provider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}

	ctx := vcontext.Background()
	reader, err := file.Open(ctx, b.Path)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer reader.Close(ctx)
	bamReader, err := bam.NewReader(reader.Reader(ctx), 1)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer bamReader.Close()
	b.header = bamReader.Header()
	return b.header, nil
}

// HasIndex reports whether the index file exists.
func (b *Provider) HasIndex() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hasIndex == nil {
		ctx := vcontext.Background()
		_, err := file.Stat(ctx, b.indexPath())
		ok := err == nil
		b.hasIndex = &ok
	}
	return *b.hasIndex
}

// Close must be called exactly once after all iterators are closed.  It
// returns any error encountered by the provider or its iterators.
func (b *Provider) Close() error {
	if b.nActive > 0 {
		vlog.Fatalf("%d iterators still active for %+v", b.nActive, b)
	}
	for _, iter := range b.freeIters {
		iter.internalClose()
	}
	b.freeIters = nil
	return b.err.Err()
}

func (b *Provider) freeIterator(i *Iterator) {
	if !i.active {
		vlog.Fatal(i)
	}
	i.active = false
	if i.Err() != nil {
		// The iter may be invalid. Don't reuse it.
		i.internalClose() // Will set b.err
		i = nil
	}
	b.mu.Lock()
	if i != nil {
		b.freeIters = append(b.freeIters, i)
	}
	b.nActive--
	if b.nActive < 0 {
		vlog.Fatalf("Negative active count for %+v", b)
	}
	b.mu.Unlock()
}

// Return an unused iterator. If b.freeIters is nonempty, this function returns
// one from freeIters. Else, it opens the BAM file, creates a BAM reader and
// returns an iterator containing them. On error, returns an iterator with
// non-nil err field.
func (b *Provider) allocateIterator(withIndex bool) *Iterator {
	b.mu.Lock()
	b.nActive++
	for n := len(b.freeIters) - 1; n >= 0; n-- {
		iter := b.freeIters[n]
		if withIndex && iter.index == nil {
			continue
		}
		iter.active = true
		iter.err = nil
		iter.next = nil
		b.freeIters = append(b.freeIters[:n], b.freeIters[n+1:]...)
		b.mu.Unlock()
		return iter
	}
	b.mu.Unlock()

	iter := Iterator{
		provider: b,
		active:   true,
	}
	ctx := vcontext.Background()
	if iter.in, iter.err = file.Open(ctx, b.Path); iter.err != nil {
		return &iter
	}
	if withIndex {
		var indexIn file.File
		if indexIn, iter.err = file.Open(ctx, b.indexPath()); iter.err != nil {
			return &iter
		}
		defer indexIn.Close(ctx)
		if iter.index, iter.err = bam.ReadIndex(indexIn.Reader(ctx)); iter.err != nil {
			return &iter
		}
	}
	if iter.reader, iter.err = bam.NewReader(iter.in.Reader(ctx), 1); iter.err != nil {
		return &iter
	}
	iter.firstRecord = iter.reader.LastChunk().End
	return &iter
}

// NewRegionIterator returns an iterator over records on the named reference
// that overlap the 0-based half-open range [start, end).
func (b *Provider) NewRegionIterator(refName string, start, end int) *Iterator {
	header, err := b.GetHeader()
	if err != nil {
		return b.errorIterator(err)
	}
	var ref *sam.Reference
	for _, r := range header.Refs() {
		if r.Name() == refName {
			ref = r
			break
		}
	}
	if ref == nil {
		return b.errorIterator(fmt.Errorf("bamprovider: reference %q not in %s", refName, b.Path))
	}
	if start < 0 {
		start = 0
	}
	if end > ref.Len() {
		end = ref.Len()
	}
	if start >= end {
		return b.errorIterator(fmt.Errorf("bamprovider: empty range [%d,%d) on %s", start, end, refName))
	}
	iter := b.allocateIterator(b.HasIndex())
	if iter.err != nil {
		return iter
	}
	iter.ref, iter.start, iter.end = ref, start, end
	if iter.index != nil {
		iter.seek()
	} else {
		iter.rewind()
	}
	return iter
}

// NewFileIterator returns an iterator over every record in the file,
// including unmapped ones.
func (b *Provider) NewFileIterator() *Iterator {
	iter := b.allocateIterator(false)
	if iter.err != nil {
		return iter
	}
	iter.ref = nil
	iter.rewind()
	return iter
}

func (b *Provider) errorIterator(err error) *Iterator {
	b.mu.Lock()
	b.nActive++
	b.mu.Unlock()
	return &Iterator{provider: b, active: true, err: err}
}

// rewind positions the reader at the first record.
func (i *Iterator) rewind() {
	i.err = i.reader.Seek(i.firstRecord)
}

// seek positions the reader at the first index chunk overlapping the range.
func (i *Iterator) seek() {
	chunks, err := i.index.Chunks(i.ref, i.start, i.end)
	if err == index.ErrInvalid || (err == nil && len(chunks) == 0) {
		// No reads for this interval.
		i.err = io.EOF
		return
	}
	if err != nil {
		i.err = err
		return
	}
	i.err = i.reader.Seek(chunks[0].Begin)
}

// Scan advances to the next record in range.  It returns false at the end of
// the range or on error.
func (i *Iterator) Scan() bool {
	if !i.active {
		vlog.Fatal("Reusing iterator")
	}
	if i.err != nil {
		return false
	}
	for {
		i.next, i.err = i.reader.Read()
		if i.err != nil {
			return false
		}
		if i.ref == nil {
			return true
		}
		rec := i.next
		// Records are coordinate-sorted, so anything past the reference ends
		// the range.
		if rec.Ref == nil || rec.Ref.ID() > i.ref.ID() {
			i.err = io.EOF
			return false
		}
		if rec.Ref.ID() < i.ref.ID() {
			continue
		}
		if rec.Pos >= i.end {
			i.err = io.EOF
			return false
		}
		if rec.End() <= i.start && rec.Flags&sam.Unmapped == 0 {
			continue
		}
		return true
	}
}

// Record returns the current record.  It must be called only after Scan
// returns true.
func (i *Iterator) Record() *sam.Record {
	return i.next
}

// Err returns the error encountered during iteration, or nil.  io.EOF is
// translated to nil.
func (i *Iterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close must be called exactly once. It returns the value of Err().
func (i *Iterator) Close() error {
	err := i.Err()
	i.provider.freeIterator(i)
	return err
}

func (i *Iterator) internalClose() {
	if i.reader != nil {
		if err := i.reader.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.reader = nil
	}
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.err == nil {
			i.err = err
		}
		i.in = nil
	}
	i.provider.err.Set(i.Err())
}
