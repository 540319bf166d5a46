package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StorageID is the object store's identifier for a file. The backend keys
// download, delete and info on it, not on the record id.
type StorageID = string

// FileMetadata is the backend's file record. It is passed through to the
// render layer as received.
type FileMetadata struct {
	ID           string    `json:"id"`
	StorageID    StorageID `json:"appwrite_file_id"`
	OriginalName string    `json:"original_name"`
	Size         int64     `json:"file_size"`
	MimeType     string    `json:"mime_type"`
	UploadedBy   *string   `json:"uploaded_by,omitempty"`
	UploadDate   Timestamp `json:"upload_date"`
	Tags         []string  `json:"tags,omitempty"`
	Description  *string   `json:"description,omitempty"`
}

// FileListResponse is the body of GET /api/files/list.
type FileListResponse struct {
	Files []FileMetadata `json:"files"`
}

// DeleteResponse is the body of a successful DELETE /api/files/delete/{id}.
type DeleteResponse struct {
	Message string `json:"message"`
}

// Timestamp accepts both RFC 3339 and the zone-less ISO-8601 form the
// backend emits for UTC datetimes.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses s with the layouts the backend is known to produce.
// Zone-less values are taken as UTC.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Timestamp{t.UTC()}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
