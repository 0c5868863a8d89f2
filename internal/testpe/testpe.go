// Package testpe builds small synthetic PE32 images for tests.
package testpe

import (
	"encoding/binary"
)

const (
	Lfanew          = 0x80
	FileHeaderStart = Lfanew + 4
	OptionalStart   = FileHeaderStart + 20
	OptionalSize    = 0xE0
	SectionTable    = OptionalStart + OptionalSize
	fileAlignment   = 0x200

	// DOSMessage is the stub text MSVC and most linkers emit.
	DOSMessage = "This program cannot be run in DOS mode.\r\r\n$"
)

type Section struct {
	Name string
	Data []byte
}

type Options struct {
	Sections        []Section
	Characteristics uint16
	TimeDateStamp   uint32
	CheckSum        uint32
	// Overlay is appended after the last section.
	Overlay []byte
}

// Build lays out a DOS header and stub, PE signature, file header, a PE32
// optional header and the requested sections, each padded to 0x200 bytes.
func Build(opts Options) []byte {
	le := binary.LittleEndian

	headerEnd := SectionTable + len(opts.Sections)*40
	rawStart := alignUp(headerEnd, fileAlignment)

	size := rawStart
	for _, s := range opts.Sections {
		size += alignUp(max(len(s.Data), 1), fileAlignment)
	}
	buf := make([]byte, size, size+len(opts.Overlay))

	copy(buf, "MZ")
	le.PutUint32(buf[0x3C:], Lfanew)
	copy(buf[0x40:], []byte{0x0E, 0x1F, 0xBA, 0x0E, 0x00, 0xB4, 0x09, 0xCD, 0x21, 0xB8, 0x01, 0x4C, 0xCD, 0x21})
	copy(buf[0x4E:], DOSMessage)

	copy(buf[Lfanew:], "PE\x00\x00")
	fh := buf[FileHeaderStart:]
	le.PutUint16(fh[0:], 0x14C)
	le.PutUint16(fh[2:], uint16(len(opts.Sections)))
	le.PutUint32(fh[4:], opts.TimeDateStamp)
	le.PutUint16(fh[16:], OptionalSize)
	le.PutUint16(fh[18:], opts.Characteristics)

	opt := buf[OptionalStart:]
	le.PutUint16(opt[0:], 0x10B)
	le.PutUint32(opt[64:], opts.CheckSum)
	le.PutUint16(opt[68:], 3)

	off := rawStart
	for i, s := range opts.Sections {
		h := buf[SectionTable+i*40:]
		copy(h[:8], s.Name)
		raw := alignUp(max(len(s.Data), 1), fileAlignment)
		le.PutUint32(h[8:], uint32(len(s.Data)))
		le.PutUint32(h[12:], uint32(0x1000*(i+1)))
		le.PutUint32(h[16:], uint32(raw))
		le.PutUint32(h[20:], uint32(off))
		le.PutUint32(h[36:], 0x40000040)
		copy(buf[off:], s.Data)
		off += raw
	}

	return append(buf, opts.Overlay...)
}

// LazarusSections returns a section list carrying both toolchain markers.
func LazarusSections(data []byte) []Section {
	return []Section{
		{Name: ".text", Data: []byte{0xC3}},
		{Name: ".data", Data: data},
		{Name: ".bss"},
		{Name: ".CRT"},
	}
}

func alignUp(n, a int) int {
	return (n + a - 1) / a * a
}
