// Package memory implements switchboard.ChatStorage with an in-process map.
// It is the reference backend: useful for tests, demos, and single-process
// deployments that do not need durability.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/switchboardhq/switchboard"
)

// StoreOption configures an in-memory Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces the timestamp source. Tests use it to control merge
// ordering deterministically.
func WithClock(now func() int64) StoreOption {
	return func(s *Store) { s.now = now }
}

// Store implements switchboard.ChatStorage backed by a mutex-guarded map.
// One mutex guards all keys; the read-modify-write in SaveMessage (same-role
// suppression plus trim) is atomic under it.
type Store struct {
	mu     sync.Mutex
	logs   map[switchboard.ConversationKey][]switchboard.TimestampedMessage
	now    func() int64
	logger *slog.Logger
}

var _ switchboard.ChatStorage = (*Store)(nil)

// New creates an empty in-memory store.
func New(opts ...StoreOption) *Store {
	s := &Store{
		logs: make(map[switchboard.ConversationKey][]switchboard.TimestampedMessage),
		now:  switchboard.NowUnixMilli,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = nopLogger
	}
	return s
}

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// SaveMessage implements switchboard.ChatStorage.
func (s *Store) SaveMessage(_ context.Context, userID, sessionID, agentID string, msg switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	key := switchboard.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	log, appended := switchboard.AppendMessage(s.logs[key], switchboard.Stamp(msg, s.now()), maxHistory)
	s.logs[key] = log
	if !appended {
		s.logger.Debug("memory: same-role write suppressed", "key", key.String(), "role", msg.Role)
	}
	return switchboard.StripTimestamps(log), nil
}

// SaveMessages implements switchboard.ChatStorage. Each message goes through
// the same suppression and trim rules as SaveMessage, so no two consecutive
// same-role turns persist after the call.
func (s *Store) SaveMessages(_ context.Context, userID, sessionID, agentID string, msgs []switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	key := switchboard.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.logs[key]
	for _, msg := range msgs {
		log, _ = switchboard.AppendMessage(log, switchboard.Stamp(msg, s.now()), maxHistory)
	}
	s.logs[key] = log
	return switchboard.StripTimestamps(log), nil
}

// FetchChat implements switchboard.ChatStorage.
func (s *Store) FetchChat(_ context.Context, userID, sessionID, agentID string, maxHistory int) ([]switchboard.ConversationMessage, error) {
	key := switchboard.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return switchboard.StripTimestamps(switchboard.TrimToLast(s.logs[key], maxHistory)), nil
}

// FetchAllChats implements switchboard.ChatStorage.
func (s *Store) FetchAllChats(_ context.Context, userID, sessionID string) ([]switchboard.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perAgent := make(map[string][]switchboard.TimestampedMessage)
	for key, log := range s.logs {
		if key.UserID == userID && key.SessionID == sessionID {
			perAgent[key.AgentID] = log
		}
	}
	return switchboard.MergeTimelines(perAgent), nil
}
