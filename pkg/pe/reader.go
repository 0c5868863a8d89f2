package pe

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// File is a read-only snapshot of a PE image's structural metadata.
// Every field is copied out of the source bytes, so later edits to the
// buffer it was parsed from are not reflected here.
type File struct {
	Lfanew         uint32
	FileHeader     FileHeader
	OptionalHeader OptionalHeader
	// Sections is empty, not nil, when the image declares zero sections.
	// Only a hand-built File has a nil table.
	Sections []SectionHeader
	Size     int64

	offsets Offsets
	data    []byte
	mmapped bool
}

// Parse decodes the DOS header, PE signature, file header, the leading
// optional header fields and the section table from data.
func Parse(data []byte) (*File, error) {
	if len(data) < dosHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than a DOS header", ErrCorruptFile, len(data))
	}
	if string(data[:2]) != MagicDOS {
		return nil, ErrInvalidDOSMagic
	}

	lfanew := binary.LittleEndian.Uint32(data[OffsetLfanew:])
	if lfanew > maxLfanew {
		return nil, fmt.Errorf("%w: e_lfanew 0x%x out of range", ErrCorruptFile, lfanew)
	}
	sig := int(lfanew)
	fh := sig + signatureSize
	opt := fh + fileHeaderSize
	if opt > len(data) {
		return nil, fmt.Errorf("%w: headers truncated at 0x%x", ErrCorruptFile, len(data))
	}
	if string(data[sig:fh]) != MagicSignature {
		return nil, ErrInvalidSignature
	}

	f := &File{
		Lfanew:     lfanew,
		FileHeader: decodeFileHeader(data[fh:opt]),
		Size:       int64(len(data)),
	}

	optSize := int(f.FileHeader.SizeOfOptionalHeader)
	if opt+optSize > len(data) {
		return nil, fmt.Errorf("%w: optional header truncated", ErrCorruptFile)
	}
	f.OptionalHeader = decodeOptionalHeader(data[opt : opt+optSize])

	table := opt + optSize
	f.offsets = Offsets{
		Signature:      sig,
		OptionalHeader: opt,
		SectionTable:   table,
	}

	n := int(f.FileHeader.NumberOfSections)
	if n == 0 {
		f.Sections = []SectionHeader{}
		return f, nil
	}
	end := table + n*sectionHeaderSize
	if end > len(data) {
		return nil, fmt.Errorf("%w: section table of %d entries out of bounds", ErrCorruptFile, n)
	}
	f.Sections = make([]SectionHeader, n)
	for i := range f.Sections {
		start := table + i*sectionHeaderSize
		f.Sections[i] = decodeSectionHeader(data[start : start+sectionHeaderSize])
	}
	return f, nil
}

// Open maps a PE file read-only and parses it.
// If mmap is unavailable, it falls back to ReadAt-based loading.
// The returned file must be closed to release any mapping.
func Open(path string) (*File, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fd.Close() }()

	stat, err := fd.Stat()
	if err != nil {
		return nil, err
	}
	size64 := stat.Size()
	if size64 < dosHeaderSize || size64 > int64(int(^uint(0)>>1)) {
		return nil, ErrCorruptFile
	}
	size := int(size64)

	data, err := unix.Mmap(int(fd.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err == nil {
		f, perr := Parse(data)
		if perr != nil {
			_ = unix.Munmap(data)
			return nil, perr
		}
		f.data = data
		f.mmapped = true
		return f, nil
	}

	data = make([]byte, size)
	if _, err := fd.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	f.data = data
	return f, nil
}

// Close releases any mmap backing. Parsed fields remain valid.
func (f *File) Close() error {
	if f == nil || f.data == nil {
		return nil
	}
	var err error
	if f.mmapped {
		err = unix.Munmap(f.data)
	}
	f.data = nil
	f.mmapped = false
	return err
}

// Offsets returns the header positions derived during parsing.
func (f *File) Offsets() Offsets {
	if f == nil {
		return Offsets{}
	}
	return f.offsets
}

// Is64 reports whether the optional header is PE32+.
func (f *File) Is64() bool {
	return f != nil && f.OptionalHeader.Magic == OptionalMagicPE32Plus
}

// Section returns the first section with the given name, or nil.
func (f *File) Section(name string) *SectionHeader {
	if f == nil {
		return nil
	}
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			return &f.Sections[i]
		}
	}
	return nil
}

// OverlayOffset returns the end of the furthest section's raw data, which is
// where any appended overlay begins. It returns Size when no overlay exists.
func (f *File) OverlayOffset() int64 {
	var end uint64
	for i := range f.Sections {
		if e := f.Sections[i].End(); e > end {
			end = e
		}
	}
	if end == 0 || end > uint64(f.Size) {
		return f.Size
	}
	return int64(end)
}

func decodeFileHeader(b []byte) FileHeader {
	le := binary.LittleEndian
	return FileHeader{
		Machine:              le.Uint16(b[0:]),
		NumberOfSections:     le.Uint16(b[2:]),
		TimeDateStamp:        le.Uint32(b[FileHeaderTimeDateStampOffset:]),
		PointerToSymbolTable: le.Uint32(b[8:]),
		NumberOfSymbols:      le.Uint32(b[12:]),
		SizeOfOptionalHeader: le.Uint16(b[16:]),
		Characteristics:      le.Uint16(b[FileHeaderCharacteristicsOffset:]),
	}
}

func decodeOptionalHeader(b []byte) OptionalHeader {
	le := binary.LittleEndian
	var h OptionalHeader
	if len(b) >= 2 {
		h.Magic = le.Uint16(b)
	}
	if len(b) >= OptionalHeaderCheckSumOffset+4 {
		h.CheckSum = le.Uint32(b[OptionalHeaderCheckSumOffset:])
	}
	if len(b) >= OptionalHeaderSubsystemOffset+2 {
		h.Subsystem = le.Uint16(b[OptionalHeaderSubsystemOffset:])
	}
	return h
}

func decodeSectionHeader(b []byte) SectionHeader {
	le := binary.LittleEndian
	return SectionHeader{
		Name:             sectionName(b[:8]),
		VirtualSize:      le.Uint32(b[8:]),
		VirtualAddress:   le.Uint32(b[12:]),
		SizeOfRawData:    le.Uint32(b[16:]),
		PointerToRawData: le.Uint32(b[20:]),
		Characteristics:  le.Uint32(b[36:]),
	}
}
