package switchboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// KeyDelimiter joins the components of a conversation key. It must not occur
// in any component.
const KeyDelimiter = "#"

// ChatStorage persists ordered conversation logs keyed by
// (user, session, agent). Implementations must apply same-role suppression
// and trimming atomically per key; see the store subpackages.
//
// maxHistory bounds the log length after a save or the slice returned by a
// fetch; zero or negative means unbounded. Trimming drops the oldest entries
// first and never removes the most recent message.
type ChatStorage interface {
	// SaveMessage appends one message to the (userID, sessionID, agentID)
	// log and returns the resulting log. If the log's last message has
	// the same role, the write is a no-op and the current log is returned.
	SaveMessage(ctx context.Context, userID, sessionID, agentID string, msg ConversationMessage, maxHistory int) ([]ConversationMessage, error)
	// SaveMessages appends messages in order, applying the same rules per
	// message, and returns the resulting log.
	SaveMessages(ctx context.Context, userID, sessionID, agentID string, msgs []ConversationMessage, maxHistory int) ([]ConversationMessage, error)
	// FetchChat returns the (userID, sessionID, agentID) log, oldest first.
	FetchChat(ctx context.Context, userID, sessionID, agentID string, maxHistory int) ([]ConversationMessage, error)
	// FetchAllChats returns the merged cross-agent view for
	// (userID, sessionID): every agent's log combined, sorted by
	// timestamp, with assistant turns prefixed by their agent id.
	FetchAllChats(ctx context.Context, userID, sessionID string) ([]ConversationMessage, error)
}

// ConversationKey names one append-only log.
type ConversationKey struct {
	UserID    string
	SessionID string
	AgentID   string
}

// String encodes the key as userID#sessionID#agentID.
func (k ConversationKey) String() string {
	return k.UserID + KeyDelimiter + k.SessionID + KeyDelimiter + k.AgentID
}

// Validate rejects keys whose components are empty or contain the delimiter.
func (k ConversationKey) Validate() error {
	for _, part := range []string{k.UserID, k.SessionID, k.AgentID} {
		if part == "" {
			return fmt.Errorf("switchboard: conversation key has empty component in %q", k.String())
		}
		if strings.Contains(part, KeyDelimiter) {
			return fmt.Errorf("switchboard: conversation key component %q contains %q", part, KeyDelimiter)
		}
	}
	return nil
}

// Stamp converts a ConversationMessage to its stored form with the given
// write-time timestamp.
func Stamp(msg ConversationMessage, ts int64) TimestampedMessage {
	return TimestampedMessage{ConversationMessage: msg, Timestamp: ts}
}

// AppendMessage applies the storage write rules to an in-memory log: the
// append is suppressed when the last entry has the same role, and the result
// is trimmed to the last maxHistory entries (0 = unbounded). The returned
// bool reports whether the message was actually appended.
func AppendMessage(log []TimestampedMessage, msg TimestampedMessage, maxHistory int) ([]TimestampedMessage, bool) {
	if n := len(log); n > 0 && log[n-1].Role == msg.Role {
		return log, false
	}
	log = append(log, msg)
	return TrimToLast(log, maxHistory), true
}

// TrimToLast truncates log to its last max entries. Zero or negative max
// leaves the log unbounded.
func TrimToLast(log []TimestampedMessage, max int) []TimestampedMessage {
	if max > 0 && len(log) > max {
		return log[len(log)-max:]
	}
	return log
}

// StripTimestamps returns the caller-facing form of a stored log.
func StripTimestamps(log []TimestampedMessage) []ConversationMessage {
	out := make([]ConversationMessage, len(log))
	for i, m := range log {
		out[i] = m.ConversationMessage
	}
	return out
}

// PrefixAgentID returns a copy of an assistant message whose first text
// block is prefixed with "[agentID] ". Messages without textual content, and
// messages of any other role, are returned unchanged.
func PrefixAgentID(msg ConversationMessage, agentID string) ConversationMessage {
	if msg.Role != RoleAssistant || msg.Empty() {
		return msg
	}
	content := make([]ContentBlock, len(msg.Content))
	copy(content, msg.Content)
	for i, b := range content {
		if b.Kind == BlockText {
			content[i].Text = "[" + agentID + "] " + b.Text
			break
		}
	}
	return ConversationMessage{Role: msg.Role, Content: content}
}

// MergeTimelines builds the cross-agent merged view from per-agent logs:
// assistant turns are tagged with their agent id, the combined sequence is
// sorted by timestamp ascending (stable, so ties keep per-agent insertion
// order, with agents visited in id order), and timestamps are stripped.
func MergeTimelines(perAgent map[string][]TimestampedMessage) []ConversationMessage {
	agentIDs := make([]string, 0, len(perAgent))
	for id := range perAgent {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)

	type taggedMessage struct {
		msg TimestampedMessage
		id  string
	}
	var combined []taggedMessage
	for _, id := range agentIDs {
		for _, m := range perAgent[id] {
			combined = append(combined, taggedMessage{msg: m, id: id})
		}
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].msg.Timestamp < combined[j].msg.Timestamp
	})

	out := make([]ConversationMessage, len(combined))
	for i, t := range combined {
		out[i] = PrefixAgentID(t.msg.ConversationMessage, t.id)
	}
	return out
}
