package model

import (
	"time"

	"github.com/Sternrassler/canvas-api-client/pkg/isodate"
)

// User is a Canvas user as returned by /api/v1/users/self.
type User struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	ShortName    string       `json:"short_name,omitempty"`
	SortableName string       `json:"sortable_name,omitempty"`
	LoginID      string       `json:"login_id,omitempty"`
	Email        string       `json:"primary_email,omitempty"`
	AvatarURL    string       `json:"avatar_url,omitempty"`
	Locale       string       `json:"locale,omitempty"`
	TimeZone     string       `json:"time_zone,omitempty"`
	CreatedAt    isodate.Time `json:"created_at"`
}

// ComparisonDate implements Comparable.
func (u User) ComparisonDate() time.Time {
	return time.Time{}
}

// ComparisonString implements Comparable.
func (u User) ComparisonString() string {
	if u.SortableName != "" {
		return u.SortableName
	}
	return u.Name
}
