package models

import "time"

// File statuses.
const (
	FileStatusUploaded   = "uploaded"
	FileStatusConverting = "converting"
	FileStatusConverted  = "converted"
	FileStatusError      = "error"
)

// FileInfo represents metadata about an uploaded ladder export.
type FileInfo struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	UploadedAt    time.Time `json:"uploadedAt"`
	Status        string    `json:"status"` // "uploaded", "converting", "converted", "error"
	ConvertedPath string    `json:"-"`
}
