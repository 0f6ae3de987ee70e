package models

import "time"

// FileDescriptor is the client-declared description of one file in an upload
// manifest. It is validated before any authorization is granted and never
// persisted on its own.
type FileDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// UploadAuthorization is a short-lived, key-bound permission to PUT one file
// directly to object storage. It exists only for the duration of one
// admission round-trip and is never persisted.
type UploadAuthorization struct {
	// OriginalName echoes the manifest entry this authorization belongs to.
	OriginalName string `json:"originalName"`
	// FileName is the randomly generated object name (extension preserved).
	FileName string `json:"fileName"`
	// StorageKey is the full object key, namespaced under the batch.
	StorageKey string `json:"s3Key"`
	// UploadURL is the presigned PUT URL the client writes the bytes to.
	UploadURL string `json:"uploadUrl"`

	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// UploadOutcome is the client-reported result of one direct-to-storage
// transfer. The success flag is trusted at confirmation time; object
// existence is verified by the worker when it fetches the file.
type UploadOutcome struct {
	StorageKey   string `json:"s3Key"`
	Success      bool   `json:"success"`
	OriginalName string `json:"originalName,omitempty"`
	Error        string `json:"error,omitempty"`
}
