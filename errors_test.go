package switchboard

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestParseRetryAfterSeconds(t *testing.T) {
	if got := ParseRetryAfter("30"); got != 30*time.Second {
		t.Errorf("got %v, want 30s", got)
	}
	if got := ParseRetryAfter("0"); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
	if got := ParseRetryAfter("-5"); got != 0 {
		t.Errorf("negative seconds: got %v, want 0", got)
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	// Retry-After dates are IMF-fixdate, i.e. http.TimeFormat with a GMT zone.
	future := time.Now().Add(2 * time.Minute).UTC().Format(http.TimeFormat)
	got := ParseRetryAfter(future)
	if got <= 0 || got > 2*time.Minute {
		t.Errorf("got %v, want ~2m", got)
	}

	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := ParseRetryAfter(past); got != 0 {
		t.Errorf("past date: got %v, want 0", got)
	}
}

func TestParseRetryAfterMalformed(t *testing.T) {
	for _, v := range []string{"", "soon", "12.5s"} {
		if got := ParseRetryAfter(v); got != 0 {
			t.Errorf("ParseRetryAfter(%q) = %v, want 0", v, got)
		}
	}
}

func TestClassificationErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("backend down")
	err := &ClassificationError{Attempts: 4, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("ClassificationError should unwrap to its cause")
	}
	if msg := err.Error(); !strings.Contains(msg, "4 attempt") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestDispatchErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("model exploded")
	err := &DispatchError{AgentID: "billing", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("DispatchError should unwrap to its cause")
	}
}
