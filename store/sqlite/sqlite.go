// Package sqlite implements switchboard.ChatStorage using pure-Go SQLite.
// Zero CGO required. One logical row per stored message, keyed by
// (user_id, session_id, agent_id) with a monotonically increasing seq for
// stable ordering.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/switchboardhq/switchboard"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store. When set, the store
// emits debug logs for every operation. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces the timestamp source used at write time.
func WithClock(now func() int64) StoreOption {
	return func(s *Store) { s.now = now }
}

// Store implements switchboard.ChatStorage backed by a local SQLite file.
type Store struct {
	db     *sql.DB
	now    func() int64
	logger *slog.Logger
}

var _ switchboard.ChatStorage = (*Store)(nil)

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections. That
// single connection also serializes the read-modify-write in SaveMessage.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, now: switchboard.NowUnixMilli, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates the messages table and its indexes. Safe to call multiple
// times.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_key ON messages(user_id, session_id, agent_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(user_id, session_id)`,
	}
	for _, ddl := range stmts {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	s.logger.Debug("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveMessage implements switchboard.ChatStorage. Same-role suppression and
// trimming run inside one transaction so the read-modify-write is atomic.
func (s *Store) SaveMessage(ctx context.Context, userID, sessionID, agentID string, msg switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	return s.save(ctx, userID, sessionID, agentID, []switchboard.ConversationMessage{msg}, maxHistory)
}

// SaveMessages implements switchboard.ChatStorage. Messages are appended in
// order; each goes through the same suppression and trim rules, so no two
// consecutive same-role turns persist after the call.
func (s *Store) SaveMessages(ctx context.Context, userID, sessionID, agentID string, msgs []switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	return s.save(ctx, userID, sessionID, agentID, msgs, maxHistory)
}

func (s *Store) save(ctx context.Context, userID, sessionID, agentID string, msgs []switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	key := switchboard.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		var lastRole sql.NullString
		err = tx.QueryRowContext(ctx,
			`SELECT role FROM messages
			 WHERE user_id = ? AND session_id = ? AND agent_id = ?
			 ORDER BY seq DESC LIMIT 1`,
			userID, sessionID, agentID,
		).Scan(&lastRole)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("last role: %w", err)
		}
		if lastRole.Valid && lastRole.String == string(msg.Role) {
			s.logger.Debug("sqlite: same-role write suppressed", "key", key.String(), "role", msg.Role)
			continue
		}

		content, err := json.Marshal(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("encode content: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (user_id, session_id, agent_id, role, content, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			userID, sessionID, agentID, string(msg.Role), string(content), s.now(),
		); err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
	}

	if maxHistory > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM messages
			 WHERE user_id = ? AND session_id = ? AND agent_id = ? AND seq NOT IN (
				SELECT seq FROM messages
				WHERE user_id = ? AND session_id = ? AND agent_id = ?
				ORDER BY seq DESC LIMIT ?)`,
			userID, sessionID, agentID, userID, sessionID, agentID, maxHistory,
		); err != nil {
			return nil, fmt.Errorf("trim: %w", err)
		}
	}

	log, err := fetchLog(ctx, tx, userID, sessionID, agentID, 0)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("sqlite: save ok", "key", key.String(), "messages", len(msgs), "duration", time.Since(start))
	return switchboard.StripTimestamps(log), nil
}

// FetchChat implements switchboard.ChatStorage.
func (s *Store) FetchChat(ctx context.Context, userID, sessionID, agentID string, maxHistory int) ([]switchboard.ConversationMessage, error) {
	key := switchboard.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	log, err := fetchLog(ctx, s.db, userID, sessionID, agentID, maxHistory)
	if err != nil {
		return nil, err
	}
	return switchboard.StripTimestamps(log), nil
}

// FetchAllChats implements switchboard.ChatStorage.
func (s *Store) FetchAllChats(ctx context.Context, userID, sessionID string) ([]switchboard.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, role, content, created_at FROM messages
		 WHERE user_id = ? AND session_id = ?
		 ORDER BY seq ASC`,
		userID, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch all chats: %w", err)
	}
	defer rows.Close()

	perAgent := make(map[string][]switchboard.TimestampedMessage)
	for rows.Next() {
		var agentID string
		msg, err := scanMessage(rows, &agentID)
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

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// fetchLog returns the most recent maxHistory messages for a key, oldest
// first. maxHistory <= 0 returns the whole log.
func fetchLog(ctx context.Context, q querier, userID, sessionID, agentID string, maxHistory int) ([]switchboard.TimestampedMessage, error) {
	limit := maxHistory
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := q.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages
		 WHERE user_id = ? AND session_id = ? AND agent_id = ?
		 ORDER BY seq DESC LIMIT ?`,
		userID, sessionID, agentID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch chat: %w", err)
	}
	defer rows.Close()

	var log []switchboard.TimestampedMessage
	for rows.Next() {
		var role, content string
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

func scanMessage(rows *sql.Rows, agentID *string) (switchboard.TimestampedMessage, error) {
	var role, content string
	var createdAt int64
	if err := rows.Scan(agentID, &role, &content, &createdAt); err != nil {
		return switchboard.TimestampedMessage{}, fmt.Errorf("scan message: %w", err)
	}
	return decodeMessage(role, content, createdAt)
}

func decodeMessage(role, content string, createdAt int64) (switchboard.TimestampedMessage, error) {
	var blocks []switchboard.ContentBlock
	if err := json.Unmarshal([]byte(content), &blocks); err != nil {
		return switchboard.TimestampedMessage{}, fmt.Errorf("decode content: %w", err)
	}
	return switchboard.Stamp(switchboard.ConversationMessage{
		Role:    switchboard.ParticipantRole(role),
		Content: blocks,
	}, createdAt), nil
}
