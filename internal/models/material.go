package models

import "time"

// Material represents an uploaded course document attached to a module.
type Material struct {
	ID         string    `db:"id" json:"id"`
	ModuleID   string    `db:"module_id" json:"module_id"`
	Title      string    `db:"title" json:"title"`
	FileName   string    `db:"file_name" json:"file_name"`
	FilePath   string    `db:"file_path" json:"-"`
	MIMEType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MaterialDownload carries a signed download link for a stored material.
type MaterialDownload struct {
	MaterialID string    `json:"material_id"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}
