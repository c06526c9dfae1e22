package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPhotoRecord_PopulatesAllFields(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	tags := []string{"Person", "Indoor", "Screenshot"}

	r, err := NewPhotoRecord("u1", "photo.png", tags, now)
	require.NoError(t, err)

	assert.Equal(t, "u1/photo.png", r.ID)
	assert.Equal(t, "u1", r.UserID)
	assert.Equal(t, now, r.CreatedAt)
	assert.Equal(t, tags, r.Tags)
	assert.Equal(t, "photo.png", r.OriginalFilename)
	assert.Equal(t, LocationUnknown, r.Location)
}

func TestNewPhotoRecord_Validation(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		userID   string
		filename string
		wantErr  error
	}{
		{"empty user", "", "a.png", ErrEmptyUserID},
		{"empty filename", "u1", "", ErrEmptyFilename},
		{"user with separator", "u1/evil", "a.png", ErrInvalidUserID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPhotoRecord(tc.userID, tc.filename, nil, now)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestPhotoRecord_CreatedAtMarshalsAsISO8601(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	r, err := NewPhotoRecord("u1", "photo.png", nil, now)
	require.NoError(t, err)

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `"created_at":"2025-03-14T10:30:00Z"`), string(b))
}
