package pe

const (
	MagicDOS       = "MZ"
	MagicSignature = "PE\x00\x00"

	// OffsetLfanew is the position of e_lfanew inside the DOS header.
	OffsetLfanew = 0x3C

	dosHeaderSize     = 64
	signatureSize     = 4
	fileHeaderSize    = 20
	sectionHeaderSize = 40

	// Cap on e_lfanew; the loader rejects anything past this.
	maxLfanew = 0x10000000

	OptionalMagicPE32     uint16 = 0x10b
	OptionalMagicPE32Plus uint16 = 0x20b
)

// Offsets of fields relative to the start of IMAGE_FILE_HEADER.
const (
	FileHeaderTimeDateStampOffset   = 4
	FileHeaderCharacteristicsOffset = 18
)

// Offsets of fields relative to the start of the optional header. The
// leading fields shared by PE32 and PE32+ keep CheckSum at the same place.
const (
	OptionalHeaderCheckSumOffset  = 64
	OptionalHeaderSubsystemOffset = 68
)

// File header characteristics.
const (
	FileRelocsStripped    uint16 = 0x0001
	FileExecutableImage   uint16 = 0x0002
	FileLargeAddressAware uint16 = 0x0020
	File32BitMachine      uint16 = 0x0100
	FileDLL               uint16 = 0x2000
)

type FileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

// OptionalHeader holds the subset of IMAGE_OPTIONAL_HEADER fields the
// mutators and inspect output care about. Fields past the declared
// SizeOfOptionalHeader are left zero.
type OptionalHeader struct {
	Magic     uint16
	CheckSum  uint32
	Subsystem uint16
}

// Offsets are absolute positions of the headers inside the file buffer.
type Offsets struct {
	Signature      int `json:"signature"`
	OptionalHeader int `json:"optional_header"`
	SectionTable   int `json:"section_table"`
}
