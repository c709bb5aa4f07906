package model

import (
	"strings"
	"time"
)

// Document is the registry record describing one stored file.
// BlobHandle is an opaque reference into the configured Blob Store and is never interpreted here.
type Document struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Title        string     `json:"title"`
	FileName     string     `json:"file_name"`
	Category     Category   `json:"category"`
	MimeType     string     `json:"mime_type"`
	SizeBytes    int64      `json:"size_bytes"`
	BlobHandle   string     `json:"-"`
	Notes        string     `json:"notes,omitempty"`
	DocumentDate *time.Time `json:"document_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FileType returns the mime subtype ("application/pdf" -> "pdf"), or "file" when unknown.
func (d Document) FileType() string {
	mt := d.MimeType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	if i := strings.LastIndexByte(mt, '/'); i >= 0 && i < len(mt)-1 {
		return strings.TrimSpace(mt[i+1:])
	}
	return "file"
}

// DocumentSummary is the public shape returned to clients.
type DocumentSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	FileName   string    `json:"fileName"`
	FileType   string    `json:"fileType"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	Category   Category  `json:"category"`
	UploadedAt time.Time `json:"uploadedAt"`
	URL        string    `json:"url"`
}

// Summary projects d into its public shape; url is the caller-chosen access path.
func (d Document) Summary(url string) DocumentSummary {
	return DocumentSummary{
		ID:         d.ID,
		Title:      d.Title,
		FileName:   d.FileName,
		FileType:   d.FileType(),
		MimeType:   d.MimeType,
		SizeBytes:  d.SizeBytes,
		Category:   d.Category,
		UploadedAt: d.CreatedAt,
		URL:        url,
	}
}
