package model

import "time"

// Artifact roles a run accumulates. Storage keys derive
// deterministically from (run_id, role).
const (
	RoleRaw         = "raw"
	RoleProcessed   = "processed"
	RoleDigitalTwin = "digital_twin"
)

// SynthesisRequest is the body of the synthesis operation. All fields
// are optional; input resolution precedence is
// run_id → source_key → input_key → configured default raw key.
type SynthesisRequest struct {
	RunID     string                 `json:"run_id,omitempty"`
	SourceKey string                 `json:"source_key,omitempty"`
	InputKey  string                 `json:"input_key,omitempty"`
	Recipe    map[string]interface{} `json:"recipe,omitempty"`
	Seed      *uint64                `json:"seed,omitempty"`
	ExportPNG bool                   `json:"export_png,omitempty"`
}

// PreprocessRequest is the body of the preprocess operation.
type PreprocessRequest struct {
	RunID          string                 `json:"run_id,omitempty"`
	SourceKey      string                 `json:"source_key,omitempty"`
	InputKey       string                 `json:"input_key,omitempty"`
	Denoise        bool                   `json:"denoise,omitempty"`
	Normalize      bool                   `json:"normalize,omitempty"`
	Resample       bool                   `json:"resample,omitempty"`
	DenoiseKernel  int                    `json:"denoise_kernel,omitempty"`  // default 3
	ResampleFactor int                    `json:"resample_factor,omitempty"` // default 2
	Recipe         map[string]interface{} `json:"recipe,omitempty"`
	ExportPNG      bool                   `json:"export_png,omitempty"`
}

// SynthesisResult is returned to the invoking layer.
type SynthesisResult struct {
	RunID          string   `json:"run_id"`
	DigitalTwinKey string   `json:"digital_twin_key"`
	PreviewKeys    []string `json:"preview_keys,omitempty"`
	Message        string   `json:"message,omitempty"`
}

// PreprocessResult is returned to the invoking layer.
type PreprocessResult struct {
	RunID        string    `json:"run_id"`
	ProcessedKey string    `json:"processed_key"`
	Manifest     *Manifest `json:"manifest,omitempty"`
	PreviewKeys  []string  `json:"preview_keys,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// ManifestEntry is one applied operation with its resolved parameters.
type ManifestEntry struct {
	Op     string                 `json:"op"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Manifest is the ordered provenance record attached to a processed
// artifact. Purely descriptive; nothing consumes it.
type Manifest struct {
	Entries []ManifestEntry `json:"entries"`
}

// Ops returns the ordered operation names.
func (m *Manifest) Ops() []string {
	ops := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		ops[i] = e.Op
	}
	return ops
}

// StatusRecord is the per-run status document persisted at
// work/<run_id>/status.json. It is created on the run's first write and
// extended (never recreated) by later operations on the same run.
type StatusRecord struct {
	RunID      string                 `json:"run_id"`
	CreatedAt  time.Time              `json:"created_at"`
	Operations []string               `json:"operations"`
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	Outputs    map[string]string      `json:"outputs"`
	Recipe     map[string]interface{} `json:"recipe,omitempty"`
}
