package models

import "time"

// ProjectFile is the metadata row for an uploaded project document. Ownership
// for deletion is per-file: only the original uploader may remove it.
type ProjectFile struct {
	ID         string    `db:"id" json:"id"`
	ProjectID  string    `db:"project_id" json:"project_id"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	FileName   string    `db:"file_name" json:"file_name"`
	StoredPath string    `db:"stored_path" json:"stored_path"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
