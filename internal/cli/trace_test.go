package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thunk/internal/journal"
)

// journalFromRun runs the passing scenario with --db and returns the path.
func journalFromRun(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeScenario(t, dir, "passing.yaml", passingScenario)
	db := filepath.Join(t.TempDir(), "journal.db")

	_, err := execute(t, "test", dir, "--db", db)
	require.NoError(t, err)
	return db
}

func TestTraceCommand_RequiresDB(t *testing.T) {
	_, err := execute(t, "trace")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceCommand_MissingJournal(t *testing.T) {
	_, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceCommand_ListSessions(t *testing.T) {
	db := journalFromRun(t)

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "cli-session  2 entries, last seq 2")
}

func TestTraceCommand_SessionEntries(t *testing.T) {
	db := journalFromRun(t)

	out, err := execute(t, "trace", "--db", db, "--session", "cli-session")
	require.NoError(t, err)
	assert.Contains(t, out, "Session: cli-session")
	assert.Contains(t, out, `[1] increment {"key":"n"}`)
	assert.Contains(t, out, `[2] set {"key":"s","value":"x"}`)
	assert.Contains(t, out, "2 entries")
}

func TestTraceCommand_ActionFilterJSON(t *testing.T) {
	db := journalFromRun(t)

	out, err := execute(t, "trace", "--db", db, "--session", "cli-session", "--action", "set", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Entries, 1)
	assert.Equal(t, "set", resp.Data.Entries[0].ActionType)
	assert.Equal(t, int64(2), resp.Data.Entries[0].Seq)
	assert.Len(t, resp.Data.Entries[0].ID, 64)
}

func TestTraceCommand_UnknownSession(t *testing.T) {
	db := journalFromRun(t)

	out, err := execute(t, "trace", "--db", db, "--session", "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries found for session: nope")
}

func TestTraceCommand_EmptyJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	j, err := journal.Open(db)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	out, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions in journal.")
}
