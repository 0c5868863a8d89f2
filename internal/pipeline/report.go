package pipeline

import (
	"time"

	json "github.com/goccy/go-json"
)

type ModuleResult struct {
	Name    string `json:"name"`
	Changed int    `json:"changed_bytes"`
}

// Report describes one pipeline run. Seed is recorded so the run can be
// reproduced byte for byte.
type Report struct {
	ID           string         `json:"id"`
	Seed         uint64         `json:"seed"`
	Size         int            `json:"size"`
	InputSHA256  string         `json:"input_sha256"`
	OutputSHA256 string         `json:"output_sha256,omitempty"`
	Modules      []ModuleResult `json:"modules"`
	Duration     time.Duration  `json:"duration_ns"`
}

// Changed returns the total number of bytes rewritten across modules.
func (r *Report) Changed() int {
	n := 0
	for _, m := range r.Modules {
		n += m.Changed
	}
	return n
}

func (r *Report) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
