package models

import "time"

// ExportResult summarizes a bulk export of certificates to the export directory.
type ExportResult struct {
	Success   bool            `json:"success"`
	Exported  int             `json:"exported"`
	Message   string          `json:"message"`
	Directory string          `json:"directory"`
	Manifest  *ExportManifest `json:"manifest,omitempty"`
}

// ExportManifest is written as manifest.yaml next to the exported files.
type ExportManifest struct {
	GeneratedAt time.Time       `json:"generatedAt" yaml:"generated_at"`
	CA          string          `json:"ca,omitempty" yaml:"ca,omitempty"`
	Entries     []ExportedEntry `json:"entries" yaml:"entries"`
}

// ExportedEntry is one copied certificate.
type ExportedEntry struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}
