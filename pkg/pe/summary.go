package pe

import "fmt"

// Summary is a flattened, serialisable description of a parsed image.
type Summary struct {
	Size            int64            `json:"size"`
	Lfanew          uint32           `json:"e_lfanew"`
	Machine         string           `json:"machine"`
	Format          string           `json:"format"`
	TimeDateStamp   uint32           `json:"time_date_stamp"`
	Characteristics uint16           `json:"characteristics"`
	LargeAddress    bool             `json:"large_address_aware"`
	CheckSum        uint32           `json:"checksum"`
	Subsystem       uint16           `json:"subsystem"`
	Offsets         Offsets          `json:"offsets"`
	OverlayOffset   int64            `json:"overlay_offset"`
	Sections        []SectionSummary `json:"sections"`
}

type SectionSummary struct {
	Name             string `json:"name"`
	VirtualAddress   uint32 `json:"virtual_address"`
	VirtualSize      uint32 `json:"virtual_size"`
	PointerToRawData uint32 `json:"raw_offset"`
	SizeOfRawData    uint32 `json:"raw_size"`
	Characteristics  uint32 `json:"characteristics"`
}

func (f *File) Summary() Summary {
	s := Summary{
		Size:            f.Size,
		Lfanew:          f.Lfanew,
		Machine:         MachineName(f.FileHeader.Machine),
		Format:          "PE32",
		TimeDateStamp:   f.FileHeader.TimeDateStamp,
		Characteristics: f.FileHeader.Characteristics,
		LargeAddress:    f.FileHeader.Characteristics&FileLargeAddressAware != 0,
		CheckSum:        f.OptionalHeader.CheckSum,
		Subsystem:       f.OptionalHeader.Subsystem,
		Offsets:         f.Offsets(),
		OverlayOffset:   f.OverlayOffset(),
		Sections:        make([]SectionSummary, 0, len(f.Sections)),
	}
	if f.Is64() {
		s.Format = "PE32+"
	}
	for _, sec := range f.Sections {
		s.Sections = append(s.Sections, SectionSummary{
			Name:             sec.Name,
			VirtualAddress:   sec.VirtualAddress,
			VirtualSize:      sec.VirtualSize,
			PointerToRawData: sec.PointerToRawData,
			SizeOfRawData:    sec.SizeOfRawData,
			Characteristics:  sec.Characteristics,
		})
	}
	return s
}

// MachineName maps IMAGE_FILE_MACHINE values to short names.
func MachineName(m uint16) string {
	switch m {
	case 0x014C:
		return "i386"
	case 0x8664:
		return "amd64"
	case 0x01C4:
		return "arm"
	case 0xAA64:
		return "arm64"
	default:
		return fmt.Sprintf("0x%04x", m)
	}
}
