// Package model holds the persisted and transient records shared by the news bot packages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCountry is used whenever a country was not chosen or could not be resolved.
const DefaultCountry = "US"

// User is a registered chat participant.
type User struct {
	ID         uuid.UUID `db:"id"`
	ExternalID string    `db:"tele_id"`
	Name       string    `db:"name"`
}

// TopicPreference is a saved topic feed. TopicName is unique per user.
type TopicPreference struct {
	ID          uuid.UUID `db:"id"`
	UserID      uuid.UUID `db:"user_id"`
	TopicName   string    `db:"topic_name"`
	TopicHash   string    `db:"topic_hash"`
	CountryCode string    `db:"country_code"`
}

// UserQuery is a saved free-text search.
type UserQuery struct {
	ID     uuid.UUID `db:"id"`
	UserID uuid.UUID `db:"user_id"`
	Query  string    `db:"query"`
}

// RawEntry is a feed item as returned by a news source.
type RawEntry struct {
	Title     string
	Link      string
	Published time.Time
}

// NewsEntry is a display-ready headline.
type NewsEntry struct {
	Title string
	Link  string
	Date  string
}
