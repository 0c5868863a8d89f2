package mutator

import (
	"math/rand/v2"

	"github.com/samcharles93/peforge/pkg/patch"
	"github.com/samcharles93/peforge/pkg/pe"
)

var dosStubMessages = [][]byte{
	[]byte("This program cannot be run in DOS mode"),
	[]byte("This program must be run under Win32"),
}

// DOSStub blanks the real-mode stub message. The search is confined to the
// bytes before the PE signature so section data is never touched.
type DOSStub struct{}

func (DOSStub) Name() string { return "dos-stub" }

func (DOSStub) Apply(buf []byte, _ *pe.File, off pe.Offsets, _ *rand.Rand) error {
	if off.Signature <= 0 || off.Signature > len(buf) {
		return nil
	}
	patch.RedactAll(buf[:off.Signature], dosStubMessages)
	return nil
}
