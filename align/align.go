// Package align maps sequencing reads onto the padded reference and produces
// coordinate-sorted, indexed BAM files.
package align

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/circov/encoding/bamprovider"
	"v.io/x/lib/envvar"
	"v.io/x/lib/lookpath"
)

// Aligner aligns the reads of one sequencing technology.
type Aligner interface {
	// Align maps reads onto reference and returns the path of a sorted and
	// indexed BAM file.
	Align(ctx context.Context, reference string, reads []string, tech string) (string, error)
}

var presets = map[string]string{
	"illumina": "sr",
	"nanopore": "map-ont",
	"pacbio":   "map-hifi",
}

// Preset returns the minimap2 preset for tech.
func Preset(tech string) (string, error) {
	p, ok := presets[tech]
	if !ok {
		return "", errors.E(errors.Invalid, "align: unknown technology "+tech)
	}
	return p, nil
}

// Look finds name on $PATH.  A missing tool is an errors.NotExist error.
func Look(name string) (string, error) {
	path, err := lookpath.Look(envvar.SliceToMap(os.Environ()), name)
	if err != nil {
		return "", errors.E(errors.NotExist, fmt.Sprintf("align: %s not found in PATH", name), err)
	}
	return path, nil
}

// Tools holds resolved paths of the external programs.
type Tools struct {
	Minimap2 string
	Samtools string
}

// CheckTools resolves minimap2 and samtools.  It fails on the first missing
// tool.
func CheckTools() (Tools, error) {
	var (
		t   Tools
		err error
	)
	if t.Minimap2, err = Look("minimap2"); err != nil {
		return t, err
	}
	if t.Samtools, err = Look("samtools"); err != nil {
		return t, err
	}
	log.Debug.Printf("align: minimap2=%s samtools=%s", t.Minimap2, t.Samtools)
	return t, nil
}

// Minimap2 aligns with "minimap2 -ax <preset>" piped into "samtools sort".
// The index is written natively.
type Minimap2 struct {
	Tools
	// Threads is passed to both programs.
	Threads int
	// Dir receives the <tech>.bam outputs.
	Dir string
}

// BAMPath returns the output path for tech.
func (m *Minimap2) BAMPath(tech string) string {
	return filepath.Join(m.Dir, tech+".bam")
}

// Align implements Aligner.
func (m *Minimap2) Align(ctx context.Context, reference string, reads []string, tech string) (string, error) {
	preset, err := Preset(tech)
	if err != nil {
		return "", err
	}
	if len(reads) == 0 {
		return "", errors.E(errors.Invalid, "align: no reads for "+tech)
	}
	threads := m.Threads
	if threads < 1 {
		threads = 1
	}
	out := m.BAMPath(tech)
	mapArgs := append([]string{"-ax", preset, "-t", strconv.Itoa(threads), reference}, reads...)
	sortArgs := []string{"sort", "-@", strconv.Itoa(threads), "-o", out, "-"}
	log.Printf("align: %s %s | %s %s", m.Minimap2, strings.Join(mapArgs, " "), m.Samtools, strings.Join(sortArgs, " "))
	if err := pipe(ctx, exec.CommandContext(ctx, m.Minimap2, mapArgs...), exec.CommandContext(ctx, m.Samtools, sortArgs...)); err != nil {
		return "", errors.E(errors.Unavailable, "align: "+tech, err)
	}
	if err := bamprovider.WriteIndex(ctx, out, ""); err != nil {
		return "", err
	}
	return out, nil
}

// tailBuffer keeps the last bytes written to it, for error messages.
type tailBuffer struct {
	b []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	const max = 4 << 10
	t.b = append(t.b, p...)
	if len(t.b) > max {
		t.b = t.b[len(t.b)-max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return strings.TrimSpace(string(t.b)) }

// pipe runs src | dst and waits for both.
func pipe(ctx context.Context, src, dst *exec.Cmd) error {
	r, w := io.Pipe()
	var srcErr, dstErr tailBuffer
	src.Stdout = w
	src.Stderr = &srcErr
	dst.Stdin = r
	dst.Stderr = &dstErr
	if err := dst.Start(); err != nil {
		return err
	}
	if err := src.Start(); err != nil {
		w.Close()
		dst.Wait()
		return err
	}
	errSrc := src.Wait()
	w.CloseWithError(errSrc)
	errDst := dst.Wait()
	r.Close()
	switch {
	case errSrc != nil:
		return fmt.Errorf("%s: %v: %s", filepath.Base(src.Path), errSrc, srcErr.String())
	case errDst != nil:
		return fmt.Errorf("%s: %v: %s", filepath.Base(dst.Path), errDst, dstErr.String())
	}
	return nil
}
