// Package models defines the persisted data shapes shared by the pipeline,
// the metadata store, and the search index.
package models

import (
	"errors"
	"strings"
	"time"
)

// LocationUnknown is the placeholder value for records that have not been
// enriched with location data yet.
const LocationUnknown = "Unknown"

var (
	ErrEmptyUserID   = errors.New("user id cannot be empty")
	ErrEmptyFilename = errors.New("filename cannot be empty")
	ErrInvalidUserID = errors.New("user id cannot contain a path separator")
)

// PhotoRecord is the metadata unit for one ingested photo. The ID doubles as
// the blob storage key: "{user_id}/{filename}". Search relies on splitting
// the ID on "/", so the two must never diverge.
type PhotoRecord struct {
	ID               string    `json:"photo_id"`
	UserID           string    `json:"user_id"`
	CreatedAt        time.Time `json:"created_at"`
	Tags             []string  `json:"tags"`
	OriginalFilename string    `json:"original_filename"`
	Location         string    `json:"location"`
}

// Key composes the canonical record ID and blob key for a user/filename pair.
func Key(userID, filename string) string {
	return userID + "/" + filename
}

// NewPhotoRecord builds a fully populated record for a fresh ingestion.
// Tags keep the detector's order; duplicates are allowed.
func NewPhotoRecord(userID, filename string, tags []string, createdAt time.Time) (*PhotoRecord, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if filename == "" {
		return nil, ErrEmptyFilename
	}
	if strings.Contains(userID, "/") {
		return nil, ErrInvalidUserID
	}

	return &PhotoRecord{
		ID:               Key(userID, filename),
		UserID:           userID,
		CreatedAt:        createdAt,
		Tags:             tags,
		OriginalFilename: filename,
		Location:         LocationUnknown,
	}, nil
}
