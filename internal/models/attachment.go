package models

import (
	"path/filepath"
	"strings"
)

const MimePDF = "application/pdf"

// Attachment references a file held by the chat transport. Content is fetched on demand.
type Attachment struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// IsPDF trusts the declared media type, falling back to the extension when the
// transport did not declare one.
func (a Attachment) IsPDF() bool {
	if a.MimeType != "" {
		return strings.EqualFold(a.MimeType, MimePDF)
	}
	return strings.EqualFold(filepath.Ext(a.FileName), ".pdf")
}

// BaseName is the file name without its extension.
func (a Attachment) BaseName() string {
	name := a.FileName
	if name == "" {
		name = "document.pdf"
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Ext is the extension without the leading dot, "pdf" when missing.
func (a Attachment) Ext() string {
	ext := strings.TrimPrefix(filepath.Ext(a.FileName), ".")
	if ext == "" {
		return "pdf"
	}
	return ext
}
