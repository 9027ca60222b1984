package model

import (
	"time"

	"github.com/Sternrassler/canvas-api-client/pkg/isodate"
)

// Attachment is a Canvas file.
type Attachment struct {
	ID           int64        `json:"id"`
	DisplayName  string       `json:"display_name"`
	MimeType     string       `json:"content-type"`
	Filename     string       `json:"filename"`
	URL          string       `json:"url"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty"`
	Size         int64        `json:"size,omitempty"`
	Locked       bool         `json:"locked,omitempty"`
	CreatedAt    isodate.Time `json:"created_at"`
	UpdatedAt    isodate.Time `json:"updated_at"`
	ModifiedAt   isodate.Time `json:"modified_at"`
}

// ComparisonDate implements Comparable. Attachments sort by name only.
func (a Attachment) ComparisonDate() time.Time {
	return time.Time{}
}

// ComparisonString implements Comparable.
func (a Attachment) ComparisonString() string {
	return a.DisplayName
}
