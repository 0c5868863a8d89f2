package pe

import "bytes"

// Section characteristics.
const (
	SectionCode            uint32 = 0x00000020
	SectionInitializedData uint32 = 0x00000040
	SectionUninitialized   uint32 = 0x00000080
	SectionMemExecute      uint32 = 0x20000000
	SectionMemRead         uint32 = 0x40000000
	SectionMemWrite        uint32 = 0x80000000
)

type SectionHeader struct {
	Name             string
	VirtualSize      uint32
	VirtualAddress   uint32
	SizeOfRawData    uint32
	PointerToRawData uint32
	Characteristics  uint32
}

// End returns the file offset one past the section's raw data.
func (s *SectionHeader) End() uint64 {
	return uint64(s.PointerToRawData) + uint64(s.SizeOfRawData)
}

func sectionName(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}
