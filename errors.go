package switchboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrClassifierUnset is returned when RouteRequest is called before a
// classifier has been configured.
var ErrClassifierUnset = errors.New("switchboard: classifier not configured")

// ErrStorageUnset is returned when the orchestrator needs chat storage and
// none has been configured.
var ErrStorageUnset = errors.New("switchboard: chat storage not configured")

// ErrNoDefaultAgent is returned when selection falls through to the default
// agent but the registry has none.
var ErrNoDefaultAgent = errors.New("switchboard: no default agent configured")

// ErrDuplicateAgent reports a registry collision on an agent id.
type ErrDuplicateAgent struct {
	ID string
}

func (e *ErrDuplicateAgent) Error() string {
	return fmt.Sprintf("switchboard: duplicate agent id %q", e.ID)
}

// ErrUnknownAgent reports a lookup of an agent id that is not registered.
type ErrUnknownAgent struct {
	ID string
}

func (e *ErrUnknownAgent) Error() string {
	return fmt.Sprintf("switchboard: unknown agent id %q", e.ID)
}

// ClassificationError wraps the last classifier failure after the retry
// budget is exhausted.
type ClassificationError struct {
	Attempts int
	Err      error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("switchboard: classification failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// DispatchError wraps a failure raised by the selected agent. It is surfaced
// to the caller as a fatal condition, distinct from the terminal
// classification and selection messages.
type DispatchError struct {
	AgentID string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("switchboard: agent %q failed: %v", e.AgentID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// ErrLLM reports a non-HTTP failure from an LLM backend.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports an HTTP-level failure from an LLM backend. RetryAfter is
// parsed from the Retry-After header when present; the retry middleware uses
// it as a delay floor.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses a Retry-After header value, either delay seconds or
// an HTTP date. Returns 0 when the value is absent or malformed.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
