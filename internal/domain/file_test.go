package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileListResponse_DecodesBackendPayload(t *testing.T) {
	payload := `{"files":[{
		"id":"5f0c",
		"appwrite_file_id":"65ab12",
		"original_name":"report.pdf",
		"file_size":2048,
		"mime_type":"application/pdf",
		"uploaded_by":null,
		"upload_date":"2024-03-05T10:20:30.123456",
		"tags":[],
		"description":null
	}]}`

	var resp FileListResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &resp))
	require.Len(t, resp.Files, 1)

	f := resp.Files[0]
	assert.Equal(t, "5f0c", f.ID)
	assert.Equal(t, "65ab12", f.StorageID)
	assert.Equal(t, "report.pdf", f.OriginalName)
	assert.Equal(t, int64(2048), f.Size)
	assert.Nil(t, f.UploadedBy)
	assert.Nil(t, f.Description)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 20, 30, 123456000, time.UTC), f.UploadDate.Time)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
		wantErr  bool
	}{
		{"naive with micros", "2024-01-02T03:04:05.000001", time.Date(2024, 1, 2, 3, 4, 5, 1000, time.UTC), false},
		{"naive without fraction", "2024-01-02T03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"rfc3339 utc", "2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"rfc3339 offset normalized to utc", "2024-01-02T05:04:05+02:00", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"space separated", "2024-01-02 03:04:05", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), false},
		{"date only", "2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), false},
		{"garbage", "yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ParseTimestamp(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(ts.Time), "got %s", ts.Time)
		})
	}
}

func TestTimestamp_NullAndEmpty(t *testing.T) {
	var f FileMetadata
	require.NoError(t, json.Unmarshal([]byte(`{"upload_date":null}`), &f))
	assert.True(t, f.UploadDate.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`{"upload_date":""}`), &f))
	assert.True(t, f.UploadDate.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"upload_date":12}`), &f))
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	ts := Timestamp{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-02T03:04:05Z"`, string(b))

	b, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}
