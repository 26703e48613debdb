// Package redis implements switchboard.ChatStorage on Redis lists.
//
// Each conversation key maps to one list of JSON-encoded messages, plus a
// per-session set of agent ids so FetchAllChats can find every agent that
// took part without scanning the keyspace. Appends run through a Lua script
// so the same-role check, the push, and the trim execute atomically on the
// server even with concurrent writers on different connections.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/switchboardhq/switchboard"
)

// Store implements switchboard.ChatStorage backed by Redis.
type Store struct {
	rdb    *redis.Client
	now    func() int64
	logger *slog.Logger
}

var _ switchboard.ChatStorage = (*Store)(nil)

// StoreOption configures a Redis Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces the timestamp source used at write time.
func WithClock(now func() int64) StoreOption {
	return func(s *Store) { s.now = now }
}

// New creates a Store using an existing Redis client.
// The caller owns the client and is responsible for closing it.
func New(rdb *redis.Client, opts ...StoreOption) *Store {
	s := &Store{rdb: rdb, now: switchboard.NowUnixMilli, logger: nopLogger}
	for _, o := range opts {
		o(s)
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

// chatKey is the Redis key holding one conversation's message list.
func chatKey(key switchboard.ConversationKey) string {
	return fmt.Sprintf("chat:%s", key.String())
}

// sessionKey is the Redis key holding the set of agent ids active in a
// user/session pair.
func sessionKey(userID, sessionID string) string {
	return fmt.Sprintf("session:%s%s%s", userID, switchboard.KeyDelimiter, sessionID)
}

// appendScript appends one JSON message to the conversation list unless the
// last entry has the same role, then trims the list to the newest maxHistory
// entries and records the agent in the session index.
//
// KEYS[1] = chat list, KEYS[2] = session agent set
// ARGV[1] = JSON message, ARGV[2] = role, ARGV[3] = maxHistory, ARGV[4] = agent id
// Returns 1 when appended, 0 when suppressed.
var appendScript = redis.NewScript(`
local last = redis.call('LINDEX', KEYS[1], -1)
if last then
	local decoded = cjson.decode(last)
	if decoded['role'] == ARGV[2] then
		return 0
	end
end
redis.call('RPUSH', KEYS[1], ARGV[1])
local max = tonumber(ARGV[3])
if max > 0 then
	redis.call('LTRIM', KEYS[1], -max, -1)
end
redis.call('SADD', KEYS[2], ARGV[4])
return 1
`)

// SaveMessage implements switchboard.ChatStorage.
func (s *Store) SaveMessage(ctx context.Context, userID, sessionID, agentID string, msg switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	return s.SaveMessages(ctx, userID, sessionID, agentID, []switchboard.ConversationMessage{msg}, maxHistory)
}

// SaveMessages implements switchboard.ChatStorage. Each message goes through
// the same suppression and trim rules as SaveMessage.
func (s *Store) SaveMessages(ctx context.Context, userID, sessionID, agentID string, msgs []switchboard.ConversationMessage, maxHistory int) ([]switchboard.ConversationMessage, error) {
	key := switchboard.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	keys := []string{chatKey(key), sessionKey(userID, sessionID)}
	for _, msg := range msgs {
		payload, err := json.Marshal(switchboard.Stamp(msg, s.now()))
		if err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
		appended, err := appendScript.Run(ctx, s.rdb, keys, payload, string(msg.Role), maxHistory, agentID).Int()
		if err != nil {
			return nil, fmt.Errorf("append message: %w", err)
		}
		if appended == 0 {
			s.logger.Debug("redis: same-role write suppressed", "key", key.String(), "role", msg.Role)
		}
	}
	return s.FetchChat(ctx, userID, sessionID, agentID, 0)
}

// FetchChat implements switchboard.ChatStorage.
func (s *Store) FetchChat(ctx context.Context, userID, sessionID, agentID string, maxHistory int) ([]switchboard.ConversationMessage, error) {
	key := switchboard.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	start := int64(0)
	if maxHistory > 0 {
		start = int64(-maxHistory)
	}
	raw, err := s.rdb.LRange(ctx, chatKey(key), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch chat: %w", err)
	}
	log, err := decodeLog(raw)
	if err != nil {
		return nil, err
	}
	return switchboard.StripTimestamps(log), nil
}

// FetchAllChats implements switchboard.ChatStorage.
func (s *Store) FetchAllChats(ctx context.Context, userID, sessionID string) ([]switchboard.ConversationMessage, error) {
	agents, err := s.rdb.SMembers(ctx, sessionKey(userID, sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list session agents: %w", err)
	}

	perAgent := make(map[string][]switchboard.TimestampedMessage, len(agents))
	for _, agentID := range agents {
		key := switchboard.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID}
		raw, err := s.rdb.LRange(ctx, chatKey(key), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("fetch chat %q: %w", agentID, err)
		}
		log, err := decodeLog(raw)
		if err != nil {
			return nil, err
		}
		if len(log) > 0 {
			perAgent[agentID] = log
		}
	}
	return switchboard.MergeTimelines(perAgent), nil
}

func decodeLog(raw []string) ([]switchboard.TimestampedMessage, error) {
	log := make([]switchboard.TimestampedMessage, 0, len(raw))
	for _, item := range raw {
		var msg switchboard.TimestampedMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		log = append(log, msg)
	}
	return log, nil
}
