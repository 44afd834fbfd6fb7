package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data string) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		if line == "" {
			continue
		}
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	return events
}

func TestRecordOperation(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditWriter(&buf)

	a.RecordOperation(context.Background(), "42", "merge_pdfs", 3, 1500*time.Millisecond, true)
	a.RecordOperation(context.Background(), "42", "protect_pdf", 1, time.Second, false)

	events := decodeLines(t, buf.String())
	require.Len(t, events, 2)

	assert.Equal(t, "operation", events[0]["type"])
	assert.Equal(t, "42", events[0]["actor"])
	assert.Equal(t, "operation:merge_pdfs", events[0]["action"])
	assert.Equal(t, "success", events[0]["status"])
	meta := events[0]["metadata"].(map[string]interface{})
	assert.Equal(t, float64(3), meta["inputs"])
	assert.Equal(t, float64(1500), meta["duration_ms"])

	assert.Equal(t, "failure", events[1]["status"])
	_, hasTrace := events[0]["trace_id"]
	assert.False(t, hasTrace)
}

func TestRecordAccessDenied(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditWriter(&buf)

	a.RecordAccessDenied(context.Background(), 7, 99)

	events := decodeLines(t, buf.String())
	require.Len(t, events, 1)
	assert.Equal(t, "security", events[0]["type"])
	assert.Equal(t, "7", events[0]["actor"])
	assert.Equal(t, "denied", events[0]["status"])
}

func TestNilAuditLogger(t *testing.T) {
	var a *AuditLogger
	assert.NotPanics(t, func() {
		a.RecordOperation(context.Background(), "1", "compress_pdf", 1, time.Second, true)
		a.RecordAccessDenied(context.Background(), 1, 1)
	})
	assert.NoError(t, a.Close())
}

func TestAuditLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	a, err := NewAuditLogger(path)
	require.NoError(t, err)
	a.RecordOperation(context.Background(), "5", "compress_pdf", 1, time.Second, true)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	events := decodeLines(t, string(data))
	require.Len(t, events, 1)
	assert.Equal(t, "operation:compress_pdf", events[0]["action"])
}
