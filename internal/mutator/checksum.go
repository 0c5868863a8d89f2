package mutator

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/samcharles93/peforge/pkg/pe"
)

// Checksum clears the optional header CheckSum. Only drivers and a few
// boot-time images have it verified.
type Checksum struct{}

func (Checksum) Name() string { return "checksum" }

func (Checksum) Apply(buf []byte, view *pe.File, off pe.Offsets, _ *rand.Rand) error {
	if view == nil {
		return fmt.Errorf("%w: optional header required", ErrInvalidStructure)
	}
	if int(view.FileHeader.SizeOfOptionalHeader) < pe.OptionalHeaderCheckSumOffset+4 {
		return nil
	}
	at := off.OptionalHeader + pe.OptionalHeaderCheckSumOffset
	if !fits(buf, at, 4) {
		return nil
	}
	if binary.LittleEndian.Uint32(buf[at:]) == 0 {
		return nil
	}
	binary.LittleEndian.PutUint32(buf[at:], 0)
	return nil
}
