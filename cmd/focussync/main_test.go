package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focussync/internal/models"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return strings.TrimSpace(out.String()), err
}

func useDevice(t *testing.T, dir, name string) {
	t.Setenv("FOCUSSYNC_LOCAL_PATH", filepath.Join(dir, name+".db"))
}

func TestCLITwoDeviceFlow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOCUSSYNC_REMOTE_DRIVER", "sqlite")
	t.Setenv("FOCUSSYNC_REMOTE_DSN", "file:"+filepath.Join(dir, "cloud.db"))
	t.Setenv("FOCUSSYNC_LOG_LEVEL", "error")
	t.Setenv("FOCUSSYNC_USER_ID", "u1")

	useDevice(t, dir, "phone")
	out, err := runCLI(t, "reminders", "add", "--id", "r1", "--title", "Drink water", "--time", "09:00")
	require.NoError(t, err)
	assert.Equal(t, "r1", out)

	out, err = runCLI(t, "decide")
	require.NoError(t, err)
	assert.Equal(t, "prompt-upload", out)

	_, err = runCLI(t, "resolve", "--choice", "upload")
	require.NoError(t, err)

	out, err = runCLI(t, "decide")
	require.NoError(t, err)
	assert.Equal(t, "noop", out, "migrated device is not prompted again")

	useDevice(t, dir, "tablet")
	out, err = runCLI(t, "presence", "--user", "u1")
	require.NoError(t, err)
	assert.Equal(t, "true", out)

	out, err = runCLI(t, "signin")
	require.NoError(t, err)
	assert.Equal(t, "pull", out)

	out, err = runCLI(t, "reminders", "list")
	require.NoError(t, err)
	var reminders []models.Reminder
	require.NoError(t, json.Unmarshal([]byte(out), &reminders))
	require.Len(t, reminders, 1)
	assert.Equal(t, "Drink water", reminders[0].Title)
	assert.True(t, reminders[0].Enabled)

	out, err = runCLI(t, "download")
	require.NoError(t, err)
	var snap models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Len(t, snap.Reminders, 1)

	out, err = runCLI(t, "merge")
	require.NoError(t, err)
	assert.JSONEq(t, `{"remindersChanged":0,"analyticsAdded":0}`, out)
}

func TestCLIRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOCUSSYNC_REMOTE_DRIVER", "sqlite")
	t.Setenv("FOCUSSYNC_REMOTE_DSN", "file:"+filepath.Join(dir, "cloud.db"))
	t.Setenv("FOCUSSYNC_LOG_LEVEL", "error")
	t.Setenv("FOCUSSYNC_USER_ID", "")
	t.Setenv("USER_ID", "")
	useDevice(t, dir, "d")

	_, err := runCLI(t, "upload")
	assert.ErrorIs(t, err, models.ErrInvalidArgument, "user id is required")

	_, err = runCLI(t, "resolve", "--user", "u1", "--choice", "bogus")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = runCLI(t, "reminders", "add", "--title", "x", "--type", "hourly")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}
