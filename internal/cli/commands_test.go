package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirror/internal/journal"
	"github.com/roach88/mirror/internal/logging"
	"github.com/roach88/mirror/internal/model"
	"github.com/roach88/mirror/internal/records"
	"github.com/roach88/mirror/internal/remote"
	"github.com/roach88/mirror/internal/testutil"
)

// testCLI runs commands against a temporary mirror root and an
// in-process remote seeded with the testutil fixtures.
type testCLI struct {
	root   string
	config string
	remote *remote.Memory
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	dir := t.TempDir()

	mem := remote.NewMemory()
	mem.PutDatabase(testutil.TasksSchema(), testutil.TasksRows())
	mem.PutPage(testutil.NotesPage())

	c := &testCLI{
		root:   filepath.Join(dir, "mirror"),
		config: filepath.Join(dir, ".mirror.yaml"),
		remote: mem,
	}
	require.NoError(t, os.WriteFile(c.config, []byte(fmt.Sprintf("root: %s\n", c.root)), 0o644))
	return c
}

func (c *testCLI) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return c.runWith(t, &RootOptions{
		Remote: c.remote,
		Logger: logging.Discard(),
		IDs:    testutil.NewSequenceGenerator("n"),
	}, args...)
}

func (c *testCLI) runWith(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommandWithOptions(opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", c.config}, args...))
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return out.String(), err
}

func (c *testCLI) store() *records.Store {
	return records.New(c.root)
}

func (c *testCLI) editTasks(t *testing.T, rowID, status string) {
	t.Helper()
	db, ok := c.store().LoadDatabase("work", "tasks")
	require.True(t, ok)
	for i := range db.Rows {
		if db.Rows[i].ID == rowID {
			db.Rows[i].Properties["p-status"] = model.Text(status)
		}
	}
	require.NoError(t, c.store().WriteRows("work", "tasks", db.Rows))
}

func TestPullCommand(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run(t, "pull")
	require.NoError(t, err)

	assert.Contains(t, out, "created    work/tasks  Tasks")
	assert.Contains(t, out, "created    work/meeting-notes.md  Meeting Notes")
	assert.Contains(t, out, "pull: 2 created")
	assert.FileExists(t, filepath.Join(c.root, "work", "tasks", records.SchemaFile))
	assert.FileExists(t, filepath.Join(c.root, "work", "tasks", records.DataFile))
	assert.FileExists(t, filepath.Join(c.root, "work", "meeting-notes.md"))
	assert.FileExists(t, filepath.Join(c.root, ".mirror", "journal.db"))

	out, err = c.run(t, "pull")
	require.NoError(t, err)
	assert.Contains(t, out, "pull: 2 unchanged")
}

func TestPullCommand_SelectedIDs(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run(t, "pull", "--id", "db-1")
	require.NoError(t, err)
	assert.Contains(t, out, "pull: 1 created")
	assert.NoFileExists(t, filepath.Join(c.root, "work", "meeting-notes.md"))
}

func TestPullCommand_JSON(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run(t, "pull", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		RunID  string `json:"run_id"`
		Data   struct {
			Results []struct {
				RecordID string `json:"record_id"`
				Outcome  string `json:"outcome"`
				Hash     string `json:"hash"`
			} `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.RunID)
	require.Len(t, resp.Data.Results, 2)
	assert.Equal(t, "db-1", resp.Data.Results[0].RecordID)
	assert.Equal(t, "created", resp.Data.Results[0].Outcome)
	assert.Len(t, resp.Data.Results[0].Hash, 16)
}

func TestPullCommand_ConflictExitCode(t *testing.T) {
	c := newTestCLI(t)
	_, err := c.run(t, "pull")
	require.NoError(t, err)

	c.editTasks(t, "r1", "Done")

	out, err := c.run(t, "pull")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 record(s) in conflict")
	assert.Contains(t, out, "conflict   work/tasks")
	assert.Contains(t, out, "local changes not pushed")

	db, ok := c.store().LoadDatabase("work", "tasks")
	require.True(t, ok)
	assert.Equal(t, "Done", db.Rows[0].Value("p-status"), "conflicting pull leaves local edits alone")

	_, err = c.run(t, "pull", "--force")
	require.NoError(t, err)
	db, _ = c.store().LoadDatabase("work", "tasks")
	assert.Equal(t, "Todo", db.Rows[0].Value("p-status"))
}

func TestPushCommand(t *testing.T) {
	c := newTestCLI(t)
	_, err := c.run(t, "pull")
	require.NoError(t, err)

	c.editTasks(t, "r1", "Done")

	out, err := c.run(t, "push")
	require.NoError(t, err)
	assert.Contains(t, out, "pushed     work/tasks")
	assert.Contains(t, out, "push: 1 pushed, 1 unchanged")

	snap, err := c.remote.FetchDatabase(context.Background(), "db-1")
	require.NoError(t, err)
	assert.Equal(t, "Done", snap.Rows[0].Value("p-status"))
}

func TestPushCommand_RemoteChangedConflict(t *testing.T) {
	c := newTestCLI(t)
	_, err := c.run(t, "pull")
	require.NoError(t, err)

	c.editTasks(t, "r1", "Done")
	rows := testutil.TasksRows()
	rows[1].Properties["p-notes"] = model.Text("changed upstream")
	c.remote.PutDatabase(testutil.TasksSchema(), rows)

	out, err := c.run(t, "push")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "remote changed since last pull")

	_, err = c.run(t, "push", "--force")
	require.NoError(t, err)
}

func TestStatusCommand(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run(t, "status")
	require.NoError(t, err)
	assert.Equal(t, "No local records.\n", out)

	_, err = c.run(t, "pull")
	require.NoError(t, err)
	c.editTasks(t, "r2", "Todo")

	out, err = c.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "modified   work/tasks")
	assert.Contains(t, out, "synced     work/meeting-notes.md")
}

func TestStatusCommand_NoRemoteNeeded(t *testing.T) {
	c := newTestCLI(t)

	_, err := c.runWith(t, &RootOptions{Logger: logging.Discard()}, "status")
	require.NoError(t, err)
}

func TestListCommand(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "db-1")
	assert.Contains(t, out, "not pulled")

	_, err = c.run(t, "pull", "--id", "pg-1")
	require.NoError(t, err)

	out, err = c.run(t, "list", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []ListEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "db-1", resp.Data[0].ID)
	assert.Empty(t, resp.Data[0].Local)
	assert.Equal(t, model.KindPage, resp.Data[1].Kind)
	assert.Equal(t, filepath.Join("work", "meeting-notes.md"), resp.Data[1].Local)
}

func TestLogCommand(t *testing.T) {
	c := newTestCLI(t)

	out, err := c.run(t, "log")
	require.NoError(t, err)
	assert.Equal(t, "No sync runs recorded.\n", out)

	_, err = c.run(t, "pull")
	require.NoError(t, err)
	c.editTasks(t, "r1", "Done")
	_, err = c.run(t, "push")
	require.NoError(t, err)

	out, err = c.run(t, "log", "--format", "json")
	require.NoError(t, err)
	var runs struct {
		Data []journal.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs.Data, 2)
	assert.Equal(t, journal.DirectionPush, runs.Data[0].Direction, "newest first")
	assert.Equal(t, 2, runs.Data[0].Entries)

	out, err = c.run(t, "log", "--run", runs.Data[1].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "work/tasks  db-1")

	out, err = c.run(t, "log", "--record", "db-1", "--format", "json")
	require.NoError(t, err)
	var history struct {
		Data []journal.Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	require.Len(t, history.Data, 2)
	assert.Equal(t, "created", history.Data[0].Outcome)
	assert.Equal(t, "pushed", history.Data[1].Outcome)
}

func TestInvalidFormat(t *testing.T) {
	c := newTestCLI(t)

	_, err := c.run(t, "status", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestMissingEndpoint(t *testing.T) {
	c := newTestCLI(t)

	_, err := c.runWith(t, &RootOptions{Logger: logging.Discard()}, "pull")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no remote endpoint configured")
}

func TestMissingConfigFile(t *testing.T) {
	c := newTestCLI(t)
	c.config = filepath.Join(t.TempDir(), "absent.yaml")

	_, err := c.run(t, "status")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
