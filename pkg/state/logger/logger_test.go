package logger

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestRedactHeader(t *testing.T) {
	assert.Equal(t, "B*****c", RedactHeader("Authorization", "Bearer abc"))
	assert.Equal(t, "<redacted>", RedactHeader("cookie", "ab"))
	assert.Equal(t, "application/json", RedactHeader("Content-Type", "application/json"))
}

func TestLogRequestRedacts(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug")
	defer func() { Log = nil }()

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer secret-token")
	LogRequest(r)

	out := buf.String()
	assert.True(t, strings.Contains(out, "incoming_request"))
	assert.False(t, strings.Contains(out, "secret-token"))
}
