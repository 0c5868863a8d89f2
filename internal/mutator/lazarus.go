package mutator

import (
	"fmt"
	"math/rand/v2"

	"github.com/samcharles93/peforge/pkg/patch"
	"github.com/samcharles93/peforge/pkg/pe"
)

// Section names the Free Pascal linker emits for Lazarus builds.
var lazarusMarkers = []string{".bss", ".CRT"}

var (
	lazarusExact = [][]byte{
		[]byte("Property streamed in older Lazarus revision"),
		[]byte("Used in a previous version of Lazarus"),
	}
	lazarusPrefixes = [][]byte{
		[]byte("TLazWriterTiff - Lazarus LCL: "),
		[]byte("TTiffImage - Lazarus LCL: "),
	}
)

// LazarusMarkers erases Lazarus LCL signature strings from the whole file.
// It only runs when every marker section is present; one marker alone is
// too common to identify the toolchain.
type LazarusMarkers struct{}

func (LazarusMarkers) Name() string { return "lazarus-markers" }

func (LazarusMarkers) Apply(buf []byte, view *pe.File, _ pe.Offsets, _ *rand.Rand) error {
	if view == nil || view.Sections == nil {
		return fmt.Errorf("%w: section table required", ErrInvalidStructure)
	}
	if !hasAllSections(view, lazarusMarkers) {
		return nil
	}
	patch.RedactAll(buf, lazarusExact)
	patch.RedactAll(buf, lazarusPrefixes)
	return nil
}

// hasAllSections counts each distinct wanted name once, so duplicated
// section headers cannot satisfy the gate on their own.
func hasAllSections(view *pe.File, names []string) bool {
	found := make(map[string]bool, len(names))
	for i := range view.Sections {
		for _, n := range names {
			if view.Sections[i].Name == n {
				found[n] = true
			}
		}
	}
	return len(found) == len(names)
}
