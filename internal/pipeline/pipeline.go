// Package pipeline runs mutation modules over one file buffer.
//
// The pipeline owns the buffer for the whole run and lends it to one module
// at a time. The structural view and header offsets are derived once before
// the first module and never refreshed.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/peforge/internal/logger"
	"github.com/samcharles93/peforge/internal/mutator"
	"github.com/samcharles93/peforge/pkg/pe"
)

// ModuleError wraps the failure of a single module. Errors from modules
// that ran before it are not possible; the run stops at the first one.
type ModuleError struct {
	Module string
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %s: %v", e.Module, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }

type Pipeline struct {
	modules []mutator.Module
	log     logger.Logger
}

// New builds a pipeline over a fixed module list. With a nil logger each run
// logs to the logger carried by its context.
func New(modules []mutator.Module, log logger.Logger) *Pipeline {
	return &Pipeline{
		modules: append([]mutator.Module(nil), modules...),
		log:     log,
	}
}

// Modules returns the module names in run order.
func (p *Pipeline) Modules() []string {
	names := make([]string, len(p.modules))
	for i, m := range p.modules {
		names[i] = m.Name()
	}
	return names
}

// NewRNG returns the generator a run seeded with seed uses. Equal seeds and
// module order produce identical output.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

// Run mutates buf in place. On error buf may hold edits from the modules
// that completed before the failing one; callers must discard it.
func (p *Pipeline) Run(ctx context.Context, buf []byte, seed uint64) (*Report, error) {
	view, err := pe.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return p.RunParsed(ctx, buf, view, seed)
}

// RunParsed is Run with a view the caller already parsed from buf.
func (p *Pipeline) RunParsed(ctx context.Context, buf []byte, view *pe.File, seed uint64) (*Report, error) {
	started := time.Now()
	rep := &Report{
		ID:          uuid.NewString(),
		Seed:        seed,
		Size:        len(buf),
		InputSHA256: digest(buf),
		Modules:     make([]ModuleResult, 0, len(p.modules)),
	}
	log := p.log
	if log == nil {
		log = logger.FromContext(ctx)
	}
	log = log.With("run", rep.ID)

	// Modules get the slice header by value, so none can resize buf.
	off := view.Offsets()
	rng := NewRNG(seed)
	// One snapshot of buf is reused for every module, so a run holds twice
	// the image size in memory while it counts changed bytes.
	before := make([]byte, len(buf))

	for _, m := range p.modules {
		copy(before, buf)
		if err := m.Apply(buf, view, off, rng); err != nil {
			log.Warn("module failed", "module", m.Name(), "error", err)
			return rep, &ModuleError{Module: m.Name(), Err: err}
		}
		changed := countChanged(before, buf)
		rep.Modules = append(rep.Modules, ModuleResult{Name: m.Name(), Changed: changed})
		log.Debug("module applied", "module", m.Name(), "changed", changed)
	}

	rep.OutputSHA256 = digest(buf)
	rep.Duration = time.Since(started)
	log.Info("pipeline finished", "modules", len(rep.Modules), "changed", rep.Changed(), "seed", seed)
	return rep, nil
}

func countChanged(a, b []byte) int {
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return n
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// RandomSeed draws a seed for runs where the caller did not pick one.
func RandomSeed() uint64 {
	return rand.Uint64()
}
