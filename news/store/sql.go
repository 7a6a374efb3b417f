package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/m3rciful/newsbot/core/logger"
	"github.com/m3rciful/newsbot/news/model"
)

// SQLStore implements Repository over sqlx. Queries are written with '?' and
// rebound for the connected driver so postgres and sqlite3 share one code path.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLStore wraps an open connection.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) q(query string) string { return s.db.Rebind(query) }

// CreateUser inserts a user with a fresh id.
func (s *SQLStore) CreateUser(ctx context.Context, externalID, name string) (model.User, error) {
	u := model.User{ID: uuid.New(), ExternalID: externalID, Name: name}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO users (id, tele_id, name) VALUES (?, ?, ?)`),
		u.ID, u.ExternalID, u.Name)
	if err != nil {
		return model.User{}, s.fail(ctx, "create_user", err)
	}
	return u, nil
}

// UserByExternalID looks a user up by Telegram id.
func (s *SQLStore) UserByExternalID(ctx context.Context, externalID string) (model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.q(`SELECT id, tele_id, name FROM users WHERE tele_id = ?`), externalID)
	if err != nil {
		return model.User{}, s.fail(ctx, "user_by_external_id", err)
	}
	return u, nil
}

// UpdateUserName changes the stored display name.
func (s *SQLStore) UpdateUserName(ctx context.Context, userID uuid.UUID, name string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET name = ? WHERE id = ?`), name, userID)
	if err != nil {
		return s.fail(ctx, "update_user_name", err)
	}
	return requireAffected(res)
}

// CreateTopic inserts a topic preference; a duplicate name for the user yields ErrConstraint.
func (s *SQLStore) CreateTopic(ctx context.Context, t model.TopicPreference) (model.TopicPreference, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CountryCode == "" {
		t.CountryCode = model.DefaultCountry
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO topic_preferences
		(id, user_id, topic_name, topic_hash, country_code, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		t.ID, t.UserID, t.TopicName, t.TopicHash, t.CountryCode, s.now().UTC())
	if err != nil {
		return model.TopicPreference{}, s.fail(ctx, "create_topic", err)
	}
	return t, nil
}

const topicColumns = `id, user_id, topic_name, topic_hash, country_code`

// ListTopics returns the user's topics in insertion order.
func (s *SQLStore) ListTopics(ctx context.Context, userID uuid.UUID) ([]model.TopicPreference, error) {
	var out []model.TopicPreference
	err := s.db.SelectContext(ctx, &out, s.q(`SELECT `+topicColumns+` FROM topic_preferences
		WHERE user_id = ? ORDER BY created_at, id`), userID)
	if err != nil {
		return nil, s.fail(ctx, "list_topics", err)
	}
	return out, nil
}

// Topic returns one of the user's topics.
func (s *SQLStore) Topic(ctx context.Context, userID, topicID uuid.UUID) (model.TopicPreference, error) {
	var t model.TopicPreference
	err := s.db.GetContext(ctx, &t, s.q(`SELECT `+topicColumns+` FROM topic_preferences
		WHERE user_id = ? AND id = ?`), userID, topicID)
	if err != nil {
		return model.TopicPreference{}, s.fail(ctx, "topic", err)
	}
	return t, nil
}

// TopicByHash returns the user's first topic with the given hash.
func (s *SQLStore) TopicByHash(ctx context.Context, userID uuid.UUID, hash string) (model.TopicPreference, error) {
	var t model.TopicPreference
	err := s.db.GetContext(ctx, &t, s.q(`SELECT `+topicColumns+` FROM topic_preferences
		WHERE user_id = ? AND topic_hash = ? ORDER BY created_at, id LIMIT 1`), userID, hash)
	if err != nil {
		return model.TopicPreference{}, s.fail(ctx, "topic_by_hash", err)
	}
	return t, nil
}

// TopicNameExists reports whether the user already saved a topic with this exact name.
func (s *SQLStore) TopicNameExists(ctx context.Context, userID uuid.UUID, name string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.q(`SELECT COUNT(*) FROM topic_preferences
		WHERE user_id = ? AND topic_name = ?`), userID, name)
	if err != nil {
		return false, s.fail(ctx, "topic_name_exists", err)
	}
	return n > 0, nil
}

// DeleteTopic removes one of the user's topics; another user's id yields ErrNotFound.
func (s *SQLStore) DeleteTopic(ctx context.Context, userID, topicID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM topic_preferences WHERE user_id = ? AND id = ?`),
		userID, topicID)
	if err != nil {
		return s.fail(ctx, "delete_topic", err)
	}
	return requireAffected(res)
}

// ClearTopics removes every topic of the user and returns how many were deleted.
func (s *SQLStore) ClearTopics(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM topic_preferences WHERE user_id = ?`), userID)
	if err != nil {
		return 0, s.fail(ctx, "clear_topics", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CreateQuery saves a search query; duplicates are allowed.
func (s *SQLStore) CreateQuery(ctx context.Context, userID uuid.UUID, query string) (model.UserQuery, error) {
	q := model.UserQuery{ID: uuid.New(), UserID: userID, Query: query}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO user_queries (id, user_id, query, created_at) VALUES (?, ?, ?, ?)`),
		q.ID, q.UserID, q.Query, s.now().UTC())
	if err != nil {
		return model.UserQuery{}, s.fail(ctx, "create_query", err)
	}
	return q, nil
}

// ListQueries returns the user's queries in insertion order.
func (s *SQLStore) ListQueries(ctx context.Context, userID uuid.UUID) ([]model.UserQuery, error) {
	var out []model.UserQuery
	err := s.db.SelectContext(ctx, &out, s.q(`SELECT id, user_id, query FROM user_queries
		WHERE user_id = ? ORDER BY created_at, id`), userID)
	if err != nil {
		return nil, s.fail(ctx, "list_queries", err)
	}
	return out, nil
}

// Query returns one of the user's queries.
func (s *SQLStore) Query(ctx context.Context, userID, queryID uuid.UUID) (model.UserQuery, error) {
	var q model.UserQuery
	err := s.db.GetContext(ctx, &q, s.q(`SELECT id, user_id, query FROM user_queries
		WHERE user_id = ? AND id = ?`), userID, queryID)
	if err != nil {
		return model.UserQuery{}, s.fail(ctx, "query", err)
	}
	return q, nil
}

// DeleteQuery removes one of the user's queries.
func (s *SQLStore) DeleteQuery(ctx context.Context, userID, queryID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM user_queries WHERE user_id = ? AND id = ?`),
		userID, queryID)
	if err != nil {
		return s.fail(ctx, "delete_query", err)
	}
	return requireAffected(res)
}

// ClearQueries removes every query of the user.
func (s *SQLStore) ClearQueries(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM user_queries WHERE user_id = ?`), userID)
	if err != nil {
		return 0, s.fail(ctx, "clear_queries", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) fail(ctx context.Context, op string, err error) error {
	classified := Classify(err)
	if errors.Is(classified, ErrNotFound) {
		return classified
	}
	logger.Warn(ctx, logger.CompStore, "store.error",
		slog.String("op", op),
		slog.String("driver", s.db.DriverName()),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("%s: %w", op, classified)
}

// Classify maps driver errors onto the store sentinels while keeping the cause in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isConstraint(err):
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	case isConnection(err):
		return fmt.Errorf("%w: %w", ErrConnection, err)
	default:
		return fmt.Errorf("%w: %w", ErrDatabase, err)
	}
}

func isConstraint(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "23"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func isConnection(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}
