package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusSkipped    DocumentStatus = "skipped"
	StatusFailed     DocumentStatus = "failed"
)

// Document tracks one uploaded source file through ingestion.
type Document struct {
	ID             string         `json:"id"`
	Namespace      string         `json:"namespace"`
	Filename       string         `json:"filename"`
	MimeType       string         `json:"mime_type"`
	StoragePath    string         `json:"storage_path"`
	FileHash       string         `json:"file_hash,omitempty"`
	Status         DocumentStatus `json:"status"`
	Error          string         `json:"error,omitempty"`
	FragmentsAdded int            `json:"fragments_added"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IngestReport describes the effect of one ingest call on a namespace index.
type IngestReport struct {
	Namespace      string `json:"namespace"`
	FileHash       string `json:"file_hash"`
	Created        bool   `json:"created"`
	Skipped        bool   `json:"skipped"`
	FragmentsAdded int    `json:"fragments_added"`
	FragmentsTotal int    `json:"fragments_total"`
}

// Status maps the report onto the terminal document status.
func (r IngestReport) Status() DocumentStatus {
	if r.Skipped {
		return StatusSkipped
	}
	return StatusReady
}

// Namespace is one dashboard vertical with its own index.
type Namespace struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// IndexStats summarises the persisted state of a namespace index.
type IndexStats struct {
	Namespace string `json:"namespace"`
	Exists    bool   `json:"exists"`
	Fragments int    `json:"fragments"`
	Files     int    `json:"files"`
	Dimension int    `json:"dimension"`
}

type NamespaceSummary struct {
	Namespace
	Index IndexStats `json:"index"`
}
