package mutator

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/samcharles93/peforge/pkg/pe"
)

// LargeAddressAware sets IMAGE_FILE_LARGE_ADDRESS_AWARE in the file header
// characteristics. It does nothing when the flag is already present.
type LargeAddressAware struct{}

func (LargeAddressAware) Name() string { return "large-address-aware" }

func (LargeAddressAware) Apply(buf []byte, _ *pe.File, off pe.Offsets, _ *rand.Rand) error {
	// skip the "PE\0\0" signature
	at := off.Signature + 4 + pe.FileHeaderCharacteristicsOffset
	if !fits(buf, at, 2) {
		return nil
	}
	flags := binary.LittleEndian.Uint16(buf[at:])
	if flags&pe.FileLargeAddressAware != 0 {
		return nil
	}
	binary.LittleEndian.PutUint16(buf[at:], flags|pe.FileLargeAddressAware)
	return nil
}
