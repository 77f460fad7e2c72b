package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/nvidia/brainclouds2s-go/internal/logging"
)

func newRedactingLogger(buf *bytes.Buffer) *slog.Logger {
	base := slog.NewJSONHandler(buf, nil)
	return slog.New(logging.NewRedactor(base))
}

func TestRedactorMasksSensitiveTopLevelAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := newRedactingLogger(&buf)

	logger.Log(context.Background(), slog.LevelInfo, "authenticating",
		"appId", "app1", "serverSecret", "super-secret-value")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	if rec["serverSecret"] != "[REDACTED]" {
		t.Fatalf("serverSecret = %v, want [REDACTED]", rec["serverSecret"])
	}
	if rec["appId"] != "app1" {
		t.Fatalf("appId = %v, want app1 (should not be redacted)", rec["appId"])
	}
}

func TestRedactorMasksNestedGroupAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := newRedactingLogger(&buf)

	logger.Log(context.Background(), slog.LevelInfo, "connect",
		slog.Group("auth", slog.String("token", "abc123"), slog.String("profileId", "s")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	group, ok := rec["auth"].(map[string]any)
	if !ok {
		t.Fatalf("auth group missing or wrong type: %v", rec["auth"])
	}
	if group["token"] != "[REDACTED]" {
		t.Fatalf("auth.token = %v, want [REDACTED]", group["token"])
	}
	if group["profileId"] != "s" {
		t.Fatalf("auth.profileId = %v, want s", group["profileId"])
	}
}

func TestRedactorMasksAttrsAddedViaWith(t *testing.T) {
	var buf bytes.Buffer
	logger := newRedactingLogger(&buf).With("apiKey", "key-value")

	logger.Info("dispatching")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decoding log line: %v", err)
	}
	if rec["apiKey"] != "[REDACTED]" {
		t.Fatalf("apiKey = %v, want [REDACTED]", rec["apiKey"])
	}
}
