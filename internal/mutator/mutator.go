// Package mutator defines the contract shared by every PE mutation and the
// closed set of mutations the pipeline can run.
//
// A module receives exclusive, temporary access to the file buffer. It may
// overwrite bytes in place but never resizes it. The structural view is the
// snapshot taken before the pipeline started and does not reflect edits
// made by other modules. Every offset is bounds-checked against the live
// buffer; an offset that does not fit is a silent skip, not an error.
package mutator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/samcharles93/peforge/pkg/pe"
)

var (
	// ErrInvalidStructure reports that the structural view violates an
	// assumption a module cannot work without. It aborts the pipeline.
	ErrInvalidStructure = errors.New("invalid PE structure")
	ErrUnknownModule    = errors.New("unknown mutation module")
)

// Module is one independent in-place edit.
type Module interface {
	Name() string
	Apply(buf []byte, view *pe.File, off pe.Offsets, rng *rand.Rand) error
}

// registry is the default pipeline order. checksum runs last since every
// other edit invalidates the stored value.
var registry = []Module{
	DOSStub{},
	LazarusMarkers{},
	Timestamp{},
	LargeAddressAware{},
	Checksum{},
}

// All returns every module in default order.
func All() []Module {
	out := make([]Module, len(registry))
	copy(out, registry)
	return out
}

// Names returns the registered module names in default order.
func Names() []string {
	names := make([]string, len(registry))
	for i, m := range registry {
		names[i] = m.Name()
	}
	return names
}

func Lookup(name string) (Module, bool) {
	for _, m := range registry {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Select resolves names to modules, keeping the caller's order. An empty
// list selects every module.
func Select(names []string) ([]Module, error) {
	if len(names) == 0 {
		return All(), nil
	}
	out := make([]Module, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, fmt.Errorf("module %q selected twice", name)
		}
		m, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownModule, name)
		}
		seen[name] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		return All(), nil
	}
	return out, nil
}

// ParseList splits a comma separated module list.
func ParseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fits(buf []byte, off, width int) bool {
	return off >= 0 && width >= 0 && off <= len(buf)-width
}
