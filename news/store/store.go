// Package store persists users and their saved topics and queries.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/m3rciful/newsbot/news/model"
)

var (
	// ErrNotFound reports a missing row.
	ErrNotFound = errors.New("store: not found")
	// ErrConstraint reports a uniqueness or reference violation.
	ErrConstraint = errors.New("store: constraint violation")
	// ErrConnection reports that the database could not be reached.
	ErrConnection = errors.New("store: connection failed")
	// ErrDatabase reports any other database failure.
	ErrDatabase = errors.New("store: database error")
)

// Repository is the preference storage used by the conversation engine.
// Every method is a single statement; callers never hold transactions.
type Repository interface {
	CreateUser(ctx context.Context, externalID, name string) (model.User, error)
	UserByExternalID(ctx context.Context, externalID string) (model.User, error)
	UpdateUserName(ctx context.Context, userID uuid.UUID, name string) error

	CreateTopic(ctx context.Context, topic model.TopicPreference) (model.TopicPreference, error)
	ListTopics(ctx context.Context, userID uuid.UUID) ([]model.TopicPreference, error)
	Topic(ctx context.Context, userID, topicID uuid.UUID) (model.TopicPreference, error)
	TopicByHash(ctx context.Context, userID uuid.UUID, hash string) (model.TopicPreference, error)
	TopicNameExists(ctx context.Context, userID uuid.UUID, name string) (bool, error)
	DeleteTopic(ctx context.Context, userID, topicID uuid.UUID) error
	ClearTopics(ctx context.Context, userID uuid.UUID) (int64, error)

	CreateQuery(ctx context.Context, userID uuid.UUID, query string) (model.UserQuery, error)
	ListQueries(ctx context.Context, userID uuid.UUID) ([]model.UserQuery, error)
	Query(ctx context.Context, userID, queryID uuid.UUID) (model.UserQuery, error)
	DeleteQuery(ctx context.Context, userID, queryID uuid.UUID) error
	ClearQueries(ctx context.Context, userID uuid.UUID) (int64, error)
}
