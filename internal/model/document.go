package model

import "time"

// DocumentStatus is the high-level lifecycle state of a document.
// Terminal states (failed, timeout, low_quality) are sticky until a
// user-initiated retry creates a new task.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
	DocumentStatusTimeout    DocumentStatus = "timeout"
	DocumentStatusLowQuality DocumentStatus = "low_quality"
)

// FileType is the detected upload format tag.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeDOCX     FileType = "docx"
	FileTypePPTX     FileType = "pptx"
	FileTypeMarkdown FileType = "md"
	FileTypeText     FileType = "txt"
)

// AllowedFileTypes in upload validation order.
var AllowedFileTypes = []FileType{FileTypePDF, FileTypeDOCX, FileTypePPTX, FileTypeMarkdown, FileTypeText}

type Document struct {
	ID         int64          `json:"id"`
	Filename   string         `json:"filename"`
	BlobPath   string         `json:"blob_path"`
	FileSize   int64          `json:"file_size"`
	FileType   FileType       `json:"file_type"`
	Status     DocumentStatus `json:"status"`
	UploadTime time.Time      `json:"upload_time"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// IsTerminal reports whether the status can no longer change without a
// new task.
func (s DocumentStatus) IsTerminal() bool {
	switch s {
	case DocumentStatusCompleted, DocumentStatusFailed, DocumentStatusTimeout, DocumentStatusLowQuality:
		return true
	default:
		return false
	}
}

// FileTypeFromExtension maps a lowercase extension (without dot) to a
// FileType. ok is false for anything outside the allowed set.
func FileTypeFromExtension(ext string) (FileType, bool) {
	switch ext {
	case "pdf":
		return FileTypePDF, true
	case "docx":
		return FileTypeDOCX, true
	case "pptx":
		return FileTypePPTX, true
	case "md", "markdown":
		return FileTypeMarkdown, true
	case "txt":
		return FileTypeText, true
	default:
		return "", false
	}
}
