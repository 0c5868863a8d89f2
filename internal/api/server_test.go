package api

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/peforge/internal/testpe"
	"github.com/samcharles93/peforge/pkg/pe"
)

func newTestEcho(cfg Config) *echo.Echo {
	if cfg.Seed == nil {
		cfg.Seed = func() uint64 { return 99 }
	}
	e := echo.New()
	NewServer(cfg).Register(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEOctetStream)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func image() []byte {
	return testpe.Build(testpe.Options{
		Sections: testpe.LazarusSections([]byte("Used in a previous version of Lazarus\x00")),
		CheckSum: 0x1234,
	})
}

func TestModulesAndVersion(t *testing.T) {
	t.Parallel()

	e := newTestEcho(Config{})
	rec := do(t, e, http.MethodGet, "/v1/modules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("modules status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var mods struct {
		Modules []string `json:"modules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &mods); err != nil {
		t.Fatalf("decode modules: %v", err)
	}
	if len(mods.Modules) != 5 || mods.Modules[0] != "dos-stub" {
		t.Fatalf("unexpected modules: %v", mods.Modules)
	}

	rec = do(t, e, http.MethodGet, "/v1/version", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"version"`) {
		t.Fatalf("version: got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	e := newTestEcho(Config{})
	rec := do(t, e, http.MethodPost, "/v1/inspect", image())
	if rec.Code != http.StatusOK {
		t.Fatalf("inspect status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var s pe.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(s.Sections) != 4 || s.CheckSum != 0x1234 {
		t.Fatalf("unexpected summary: %+v", s)
	}

	rec = do(t, e, http.MethodPost, "/v1/inspect", []byte("garbage"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for garbage, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestMutate(t *testing.T) {
	t.Parallel()

	e := newTestEcho(Config{})
	in := image()
	rec := do(t, e, http.MethodPost, "/v1/mutate?seed=5", in)
	if rec.Code != http.StatusOK {
		t.Fatalf("mutate status: got %d body=%s", rec.Code, rec.Body.String())
	}
	out := rec.Body.Bytes()
	if len(out) != len(in) {
		t.Fatalf("length changed: %d -> %d", len(in), len(out))
	}
	if rec.Header().Get(HeaderReportID) == "" {
		t.Fatal("missing report id header")
	}
	if rec.Header().Get(HeaderSeed) != "5" {
		t.Fatalf("unexpected seed header %q", rec.Header().Get(HeaderSeed))
	}
	if rec.Header().Get(HeaderChanged) == "0" {
		t.Fatal("expected changed bytes")
	}
	if bytes.Contains(out, []byte("Used in a previous version of Lazarus")) {
		t.Fatal("lazarus literal survived")
	}
	if binary.LittleEndian.Uint16(out[testpe.FileHeaderStart+18:])&pe.FileLargeAddressAware == 0 {
		t.Fatal("large address aware flag not set")
	}

	again := do(t, e, http.MethodPost, "/v1/mutate?seed=5", in)
	if !bytes.Equal(again.Body.Bytes(), out) {
		t.Fatal("same seed produced different output")
	}
}

func TestMutateSelectedModules(t *testing.T) {
	t.Parallel()

	e := newTestEcho(Config{})
	in := image()
	rec := do(t, e, http.MethodPost, "/v1/mutate?modules=large-address-aware", in)
	if rec.Code != http.StatusOK {
		t.Fatalf("mutate status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(HeaderChanged) != "1" {
		t.Fatalf("expected one changed byte, got %s", rec.Header().Get(HeaderChanged))
	}
	if rec.Header().Get(HeaderSeed) != "99" {
		t.Fatalf("expected default seed, got %s", rec.Header().Get(HeaderSeed))
	}
}

func TestMutateDefaultModulesFromConfig(t *testing.T) {
	t.Parallel()

	e := newTestEcho(Config{DefaultModules: []string{"checksum"}})
	rec := do(t, e, http.MethodPost, "/v1/mutate", image())
	if rec.Code != http.StatusOK {
		t.Fatalf("mutate status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(HeaderChanged) != "2" {
		t.Fatalf("expected checksum bytes only, got %s", rec.Header().Get(HeaderChanged))
	}
}

func TestMutateZeroSectionImage(t *testing.T) {
	t.Parallel()

	e := newTestEcho(Config{})
	in := testpe.Build(testpe.Options{})
	rec := do(t, e, http.MethodPost, "/v1/mutate", in)
	if rec.Code != http.StatusOK {
		t.Fatalf("mutate status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() != len(in) {
		t.Fatalf("length changed: %d -> %d", len(in), rec.Body.Len())
	}

	rec = do(t, e, http.MethodPost, "/v1/mutate?modules=lazarus-markers", in)
	if rec.Code != http.StatusOK {
		t.Fatalf("lazarus-markers alone: got %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(HeaderChanged) != "0" {
		t.Fatalf("expected a silent skip, got %s changed bytes", rec.Header().Get(HeaderChanged))
	}
}

func TestMutateSeedAboveInt64(t *testing.T) {
	t.Parallel()

	e := newTestEcho(Config{})
	rec := do(t, e, http.MethodPost, "/v1/mutate?modules=timestamp&seed=18446744073709551615", image())
	if rec.Code != http.StatusOK {
		t.Fatalf("mutate status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(HeaderSeed); got != "18446744073709551615" {
		t.Fatalf("unexpected seed header %q", got)
	}
}

func TestMutateErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho(Config{MaxBody: 4096})

	tests := []struct {
		name   string
		path   string
		body   []byte
		status int
		want   string
	}{
		{"unknown module", "/v1/mutate?modules=nope", image(), http.StatusBadRequest, "unknown mutation module"},
		{"bad seed", "/v1/mutate?seed=-1", image(), http.StatusBadRequest, "invalid seed"},
		{"empty body", "/v1/mutate", nil, http.StatusBadRequest, "empty request body"},
		{"too large", "/v1/mutate", make([]byte, 4097), http.StatusRequestEntityTooLarge, "exceeds"},
		{"not pe", "/v1/mutate", []byte("hello world, not a pe file at all, just text padding it out to 64+ bytes"), http.StatusUnprocessableEntity, "invalid DOS magic"},
	}
	for _, tc := range tests {
		rec := do(t, e, http.MethodPost, tc.path, tc.body)
		if rec.Code != tc.status {
			t.Errorf("%s: expected %d, got %d body=%s", tc.name, tc.status, rec.Code, rec.Body.String())
			continue
		}
		if !strings.Contains(rec.Body.String(), tc.want) {
			t.Errorf("%s: body %s missing %q", tc.name, rec.Body.String(), tc.want)
		}
	}
}
