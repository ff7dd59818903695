package models

import "time"

// Blob is the metadata record for one stored content object. The payload
// itself lives in the blobstore under the same digest.
type Blob struct {
	SHA256   string     `json:"sha256"`
	Size     int64      `json:"size"`
	Type     string     `json:"type,omitempty"`
	Uploaded time.Time  `json:"uploaded"`
	Expires  *time.Time `json:"expires,omitempty"`
}

// Expired reports whether the blob's storage window has passed.
// Blobs without an expiry never expire.
func (b Blob) Expired(now time.Time) bool {
	return b.Expires != nil && b.Expires.Before(now)
}

// BlobDescriptor is the upload response returned to clients.
type BlobDescriptor struct {
	URL      string `json:"url"`
	SHA256   string `json:"sha256"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
	Uploaded int64  `json:"uploaded"`
}
