// Package postgres implements switchboard.ChatStorage using PostgreSQL.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection; the caller creates and closes the pool. Writes to the same
// conversation key are serialized with a transactional advisory lock so the
// same-role check and the trim are atomic even across processes.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/switchboardhq/switchboard"
)

// Store implements switchboard.ChatStorage backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() int64
}

var _ switchboard.ChatStorage = (*Store)(nil)

// StoreOption configures a PostgreSQL Store.
type StoreOption func(*Store)

// WithClock replaces the timestamp source used at write time.
func WithClock(now func() int64) StoreOption {
	return func(s *Store) { s.now = now }
}

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	s := &Store{pool: pool, now: switchboard.NowUnixMilli}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates the messages table and its indexes. Safe to call multiple
// times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			seq BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content JSONB NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_key_idx ON messages(user_id, session_id, agent_id, seq)`,
		`CREATE INDEX IF NOT EXISTS messages_session_idx ON messages(user_id, session_id)`,
	}
	for _, ddl := range stmts {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// SaveMessage implements switchboard.ChatStorage.
func (s *Store) SaveMessage(ctx context.Context, userID, sessionID, agentID string, msg switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	return s.save(ctx, userID, sessionID, agentID, []switchboard.ConversationMessage{msg}, maxHistory)
}

// SaveMessages implements switchboard.ChatStorage. Each message goes through
// the same suppression and trim rules as SaveMessage.
func (s *Store) SaveMessages(ctx context.Context, userID, sessionID, agentID string, msgs []switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	return s.save(ctx, userID, sessionID, agentID, msgs, maxHistory)
}

func (s *Store) save(ctx context.Context, userID, sessionID, agentID string, msgs []switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	key := switchboard.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize writers to this key; released automatically at commit.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key.String()); err != nil {
		return nil, fmt.Errorf("lock key: %w", err)
	}

	for _, msg := range msgs {
		var lastRole string
		err := tx.QueryRow(ctx,
			`SELECT role FROM messages
			 WHERE user_id = $1 AND session_id = $2 AND agent_id = $3
			 ORDER BY seq DESC LIMIT 1`,
			userID, sessionID, agentID,
		).Scan(&lastRole)
		if err != nil && err != pgx.ErrNoRows {
			return nil, fmt.Errorf("last role: %w", err)
		}
		if err == nil && lastRole == string(msg.Role) {
			continue
		}

		content, err := json.Marshal(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("encode content: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO messages (user_id, session_id, agent_id, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, sessionID, agentID, string(msg.Role), content, s.now(),
		); err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
	}

	if maxHistory > 0 {
		if _, err := tx.Exec(ctx,
			`DELETE FROM messages
			 WHERE user_id = $1 AND session_id = $2 AND agent_id = $3 AND seq NOT IN (
				SELECT seq FROM messages
				WHERE user_id = $1 AND session_id = $2 AND agent_id = $3
				ORDER BY seq DESC LIMIT $4)`,
			userID, sessionID, agentID, maxHistory,
		); err != nil {
			return nil, fmt.Errorf("trim: %w", err)
		}
	}

	log, err := fetchLog(ctx, tx, userID, sessionID, agentID, 0)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return switchboard.StripTimestamps(log), nil
}

// FetchChat implements switchboard.ChatStorage.
func (s *Store) FetchChat(ctx context.Context, userID, sessionID, agentID string, maxHistory int) ([]switchboard.ConversationMessage, error) {
	key := switchboard.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	log, err := fetchLog(ctx, s.pool, userID, sessionID, agentID, maxHistory)
	if err != nil {
		return nil, err
	}
	return switchboard.StripTimestamps(log), nil
}

// FetchAllChats implements switchboard.ChatStorage.
func (s *Store) FetchAllChats(ctx context.Context, userID, sessionID string) ([]switchboard.ConversationMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT agent_id, role, content, created_at FROM messages
		 WHERE user_id = $1 AND session_id = $2
		 ORDER BY seq ASC`,
		userID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch all chats: %w", err)
	}
	defer rows.Close()

	perAgent := make(map[string][]switchboard.TimestampedMessage)
	for rows.Next() {
		var agentID, role string
		var content []byte
		var createdAt int64
		if err := rows.Scan(&agentID, &role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg, err := decodeMessage(role, content, createdAt)
		if err != nil {
			return nil, err
		}
		perAgent[agentID] = append(perAgent[agentID], msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return switchboard.MergeTimelines(perAgent), nil
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// fetchLog returns the most recent maxHistory messages for a key, oldest
// first. maxHistory <= 0 returns the whole log.
func fetchLog(ctx context.Context, q querier, userID, sessionID, agentID string, maxHistory int) ([]switchboard.TimestampedMessage, error) {
	query := `SELECT role, content, created_at FROM messages
		 WHERE user_id = $1 AND session_id = $2 AND agent_id = $3
		 ORDER BY seq DESC`
	args := []any{userID, sessionID, agentID}
	if maxHistory > 0 {
		query += ` LIMIT $4`
		args = append(args, maxHistory)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch chat: %w", err)
	}
	defer rows.Close()

	var log []switchboard.TimestampedMessage
	for rows.Next() {
		var role string
		var content []byte
		var createdAt int64
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg, err := decodeMessage(role, content, createdAt)
		if err != nil {
			return nil, err
		}
		log = append(log, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to chronological order (oldest first).
	for i, j := 0, len(log)-1; i < j; i, j = i+1, j-1 {
		log[i], log[j] = log[j], log[i]
	}
	return log, nil
}

func decodeMessage(role string, content []byte, createdAt int64) (switchboard.TimestampedMessage, error) {
	var blocks []switchboard.ContentBlock
	if err := json.Unmarshal(content, &blocks); err != nil {
		return switchboard.TimestampedMessage{}, fmt.Errorf("decode content: %w", err)
	}
	return switchboard.Stamp(switchboard.ConversationMessage{
		Role:    switchboard.ParticipantRole(role),
		Content: blocks,
	}, createdAt), nil
}
