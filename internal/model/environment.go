package model

import "time"

type Environment struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StoragePath string    `json:"storagePath"`
	DownloadURL string    `json:"downloadURL"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UploadDescriptor is the decoded multipart upload handed to the ingestion pipeline.
type UploadDescriptor struct {
	Filename    string
	ContentType string
	Payload     []byte
	Name        string
	Description string
}

func (u *UploadDescriptor) HasPayload() bool {
	return len(u.Payload) > 0
}
