package pe_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samcharles93/peforge/internal/testpe"
	"github.com/samcharles93/peforge/pkg/pe"
)

func TestParseSyntheticImage(t *testing.T) {
	t.Parallel()

	data := testpe.Build(testpe.Options{
		Sections:        testpe.LazarusSections([]byte("payload")),
		Characteristics: pe.FileExecutableImage | pe.File32BitMachine,
		TimeDateStamp:   0x5F5E1000,
		CheckSum:        0xABCD,
	})

	f, err := pe.Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	wantOffsets := pe.Offsets{
		Signature:      testpe.Lfanew,
		OptionalHeader: testpe.OptionalStart,
		SectionTable:   testpe.SectionTable,
	}
	if diff := cmp.Diff(wantOffsets, f.Offsets()); diff != "" {
		t.Fatalf("offsets mismatch (-want +got):\n%s", diff)
	}
	if f.FileHeader.NumberOfSections != 4 {
		t.Fatalf("expected 4 sections, got %d", f.FileHeader.NumberOfSections)
	}
	if f.FileHeader.TimeDateStamp != 0x5F5E1000 {
		t.Fatalf("unexpected timestamp 0x%x", f.FileHeader.TimeDateStamp)
	}
	if f.OptionalHeader.Magic != pe.OptionalMagicPE32 || f.Is64() {
		t.Fatalf("expected PE32 optional header, got magic 0x%x", f.OptionalHeader.Magic)
	}
	if f.OptionalHeader.CheckSum != 0xABCD {
		t.Fatalf("unexpected checksum 0x%x", f.OptionalHeader.CheckSum)
	}

	var names []string
	for _, s := range f.Sections {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff([]string{".text", ".data", ".bss", ".CRT"}, names); diff != "" {
		t.Fatalf("section names mismatch (-want +got):\n%s", diff)
	}
	if s := f.Section(".data"); s == nil || s.VirtualSize != uint32(len("payload")) {
		t.Fatalf("unexpected .data section: %+v", s)
	}
	if f.OverlayOffset() != f.Size {
		t.Fatalf("expected no overlay, got offset %d size %d", f.OverlayOffset(), f.Size)
	}
}

func TestParseIsSnapshot(t *testing.T) {
	t.Parallel()

	data := testpe.Build(testpe.Options{Sections: []testpe.Section{{Name: ".text", Data: []byte{0xC3}}}})
	f, err := pe.Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	copy(data[testpe.SectionTable:], ".renamed")
	if f.Sections[0].Name != ".text" {
		t.Fatalf("view followed buffer edits: %q", f.Sections[0].Name)
	}
}

func TestParseNoSections(t *testing.T) {
	t.Parallel()

	f, err := pe.Parse(testpe.Build(testpe.Options{}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Sections == nil || len(f.Sections) != 0 {
		t.Fatalf("expected empty non-nil section table, got %#v", f.Sections)
	}
}

func TestParseOverlay(t *testing.T) {
	t.Parallel()

	data := testpe.Build(testpe.Options{
		Sections: []testpe.Section{{Name: ".text", Data: []byte{0xC3}}},
		Overlay:  []byte("appended"),
	})
	f, err := pe.Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got, want := f.OverlayOffset(), int64(len(data)-len("appended")); got != want {
		t.Fatalf("overlay offset: got %d want %d", got, want)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	valid := func() []byte {
		return testpe.Build(testpe.Options{Sections: []testpe.Section{{Name: ".text", Data: []byte{0xC3}}}})
	}

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		want   error
	}{
		{"short", func(b []byte) []byte { return b[:10] }, pe.ErrCorruptFile},
		{"dos magic", func(b []byte) []byte { b[0] = 'X'; return b }, pe.ErrInvalidDOSMagic},
		{"signature", func(b []byte) []byte { b[testpe.Lfanew+1] = 'X'; return b }, pe.ErrInvalidSignature},
		{"lfanew past end", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[pe.OffsetLfanew:], uint32(len(b)))
			return b
		}, pe.ErrCorruptFile},
		{"lfanew huge", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[pe.OffsetLfanew:], 0xFFFFFFF0)
			return b
		}, pe.ErrCorruptFile},
		{"section table truncated", func(b []byte) []byte { return b[:testpe.SectionTable+20] }, pe.ErrCorruptFile},
		{"optional header truncated", func(b []byte) []byte { return b[:testpe.OptionalStart+10] }, pe.ErrCorruptFile},
	}
	for _, tc := range tests {
		_, err := pe.Parse(tc.mutate(valid()))
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.exe")
	data := testpe.Build(testpe.Options{Sections: testpe.LazarusSections(nil)})
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := pe.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if f.Size != int64(len(data)) {
		t.Fatalf("size: got %d want %d", f.Size, len(data))
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(f.Sections) != 4 {
		t.Fatalf("parsed fields should survive close, got %d sections", len(f.Sections))
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestOpenMissing(t *testing.T) {
	t.Parallel()
	if _, err := pe.Open(filepath.Join(t.TempDir(), "missing.exe")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	f, err := pe.Parse(testpe.Build(testpe.Options{
		Sections:        testpe.LazarusSections(nil),
		Characteristics: pe.FileExecutableImage | pe.FileLargeAddressAware,
	}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s := f.Summary()
	if s.Machine != "i386" || s.Format != "PE32" || !s.LargeAddress {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if len(s.Sections) != 4 || s.Sections[3].Name != ".CRT" {
		t.Fatalf("unexpected sections: %+v", s.Sections)
	}
	if pe.MachineName(0x1234) != "0x1234" {
		t.Fatalf("unexpected fallback name %q", pe.MachineName(0x1234))
	}
}
