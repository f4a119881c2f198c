package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/realty-lead-agent/internal/chatlog"
	"github.com/wolfman30/realty-lead-agent/internal/leads"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

func seedLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conversation_logs.jsonl")
	store := chatlog.NewFileStore(path, logging.New("error"))
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	entries := []chatlog.Entry{
		{SessionID: "s1", Timestamp: base, UserMessage: "hi", AIResponse: "hello"},
		{SessionID: "s1", Timestamp: base.Add(time.Minute), UserMessage: "Asha", AIResponse: "thanks",
			LeadData: leads.Record{Name: "Asha", Phone: "9876543210", PhoneVerified: true}},
		{SessionID: "s2", Timestamp: base.Add(2 * time.Minute), UserMessage: "new here", AIResponse: "welcome"},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(context.Background(), e))
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestAnalyticsCommand(t *testing.T) {
	path := seedLog(t)
	out, _, err := execute(t, "--log", path, "analytics")
	require.NoError(t, err)

	assert.Contains(t, out, `"total_visitors": 2`)
	assert.Contains(t, out, `"total_messages": 3`)
	assert.Contains(t, out, `"leads_captured": 1`)
}

func TestRecentCommandLimit(t *testing.T) {
	path := seedLog(t)
	out, _, err := execute(t, "--log", path, "recent", "-n", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "new here")
	assert.NotContains(t, out, `"hi"`)
}

func TestRecentCommandRejectsZero(t *testing.T) {
	path := seedLog(t)
	_, _, err := execute(t, "--log", path, "recent", "-n", "0")
	require.Error(t, err)
}

func TestSessionsCommandMasksPhone(t *testing.T) {
	path := seedLog(t)
	out, _, err := execute(t, "--log", path, "sessions")
	require.NoError(t, err)

	assert.Contains(t, out, "SESSION")
	assert.Contains(t, out, "Asha")
	assert.Contains(t, out, "******3210")
	assert.NotContains(t, out, "9876543210")
}

func TestSessionCommand(t *testing.T) {
	path := seedLog(t)
	out, _, err := execute(t, "--log", path, "session", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Asha")

	_, _, err = execute(t, "--log", path, "session", "missing")
	require.Error(t, err)

	_, _, err = execute(t, "--log", path, "session")
	require.Error(t, err)
}

func TestExportCommandToFile(t *testing.T) {
	path := seedLog(t)
	dest := filepath.Join(t.TempDir(), "out.csv")
	_, stderr, err := execute(t, "--log", path, "export", "--out", dest)
	require.NoError(t, err)
	assert.Contains(t, stderr, "wrote 3 entries")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "session_id,timestamp"))
}

func TestExportCommandToStdout(t *testing.T) {
	path := seedLog(t)
	out, _, err := execute(t, "--log", path, "export", "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "session_id,timestamp,user_message")
}

func TestExportCommandS3RequiresBucket(t *testing.T) {
	t.Setenv("EXPORT_S3_BUCKET", "")
	path := seedLog(t)
	_, _, err := execute(t, "--log", path, "export", "-o", "-", "--s3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXPORT_S3_BUCKET")
}
