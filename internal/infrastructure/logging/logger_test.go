package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/lorrc/service-desk-lifecycle/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_AddsContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{
		Level:       "info",
		Format:      "json",
		Output:      &buf,
		ServiceName: "lifecycle-test",
		Environment: "test",
	})

	ctx := logging.WithRequestID(context.Background(), "req-1")
	ctx = logging.WithTenantID(ctx, "tenant-1")
	ctx = logging.WithTicketID(ctx, "42")

	logger.InfoContext(ctx, "status changed", "to", "resolved")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "status changed", record["msg"])
	assert.Equal(t, "lifecycle-test", record["service"])
	assert.Equal(t, "test", record["environment"])
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "tenant-1", record["tenant_id"])
	assert.Equal(t, "42", record["ticket_id"])
	assert.Equal(t, "resolved", record["to"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level  string
		logged bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", false},
		{"error", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.NewLogger(logging.Config{Level: tt.level, Format: "text", Output: &buf})
			logger.Info("hello")
			assert.Equal(t, tt.logged, buf.Len() > 0)
		})
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := logging.NewLogger(logging.Config{Format: "text", Output: &buf})

	ctx := logging.WithUserID(context.Background(), "user-9")
	logging.LoggerFromContext(ctx, base).Info("x")

	assert.Contains(t, buf.String(), "user_id=user-9")
	assert.Equal(t, "", logging.GetRequestID(context.Background()))
}
