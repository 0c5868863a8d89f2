package mutator

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/samcharles93/peforge/pkg/pe"
)

// Timestamp replaces the COFF TimeDateStamp with a random value. The loader
// never reads it for images without bound imports.
type Timestamp struct{}

func (Timestamp) Name() string { return "timestamp" }

func (Timestamp) Apply(buf []byte, _ *pe.File, off pe.Offsets, rng *rand.Rand) error {
	at := off.Signature + 4 + pe.FileHeaderTimeDateStampOffset
	if !fits(buf, at, 4) {
		return nil
	}
	binary.LittleEndian.PutUint32(buf[at:], rng.Uint32())
	return nil
}
