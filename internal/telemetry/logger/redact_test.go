package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/yndnr/sessfile-go/pkg/token"
)

func logJSON(t *testing.T, fn func(l *slog.Logger)) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fn(l)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v", err)
	}
	return entry
}

func TestRedact_SessionID(t *testing.T) {
	id := "CI4afkzk6tVMRb50lMyZAA"
	entry := logJSON(t, func(l *slog.Logger) {
		l.Info("session loaded", "session_id", id)
	})

	got, _ := entry["session_id"].(string)
	if strings.Contains(got, id) {
		t.Fatalf("session id leaked: %s", got)
	}
	if want := "fp:" + token.Fingerprint(id); got != want {
		t.Errorf("session_id = %q, want %q", got, want)
	}
}

func TestRedact_SensitiveKeys(t *testing.T) {
	entry := logJSON(t, func(l *slog.Logger) {
		l.Info("login",
			"password", "hunter2",
			"api_token", "abc",
			"Cookie", "sid=1",
			"user", "alice",
			"secret", "")
	})

	for _, k := range []string{"password", "api_token", "Cookie"} {
		if entry[k] != redactedValue {
			t.Errorf("%s = %v, want redacted", k, entry[k])
		}
	}
	if entry["user"] != "alice" {
		t.Errorf("user = %v, non-sensitive value changed", entry["user"])
	}
	if entry["secret"] != "" {
		t.Errorf("empty secret = %v, want left empty", entry["secret"])
	}
}

func TestRedact_Groups(t *testing.T) {
	entry := logJSON(t, func(l *slog.Logger) {
		l.Info("nested", slog.Group("req", slog.String("sid", "abc"), slog.String("path", "/x")))
	})

	req, ok := entry["req"].(map[string]any)
	if !ok {
		t.Fatalf("req group missing: %v", entry)
	}
	if req["sid"] == "abc" {
		t.Error("sid inside group was not masked")
	}
	if req["path"] != "/x" {
		t.Errorf("path = %v", req["path"])
	}
}

func TestRedact_NonString(t *testing.T) {
	entry := logJSON(t, func(l *slog.Logger) {
		l.Info("count", "token_count", 3)
	})
	if entry["token_count"] != float64(3) {
		t.Errorf("token_count = %v, numeric values must pass through", entry["token_count"])
	}
}

func TestMaskSessionID(t *testing.T) {
	if MaskSessionID("") != "" {
		t.Error("MaskSessionID(\"\") should be empty")
	}
	if MaskSessionID("a") == MaskSessionID("b") {
		t.Error("different ids masked to the same value")
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for _, k := range []string{"password", "DB_PASSWORD", "authHeader", "refresh_token"} {
		if !IsSensitiveKey(k) {
			t.Errorf("IsSensitiveKey(%q) = false", k)
		}
	}
	for _, k := range []string{"user", "dir", "count"} {
		if IsSensitiveKey(k) {
			t.Errorf("IsSensitiveKey(%q) = true", k)
		}
	}
}
