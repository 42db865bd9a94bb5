package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, dbPath string, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd := newRootCommand(out)
	cmd.SetArgs(append([]string{"--store", "bolt", "--url", dbPath, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "actflow.db")

	output, err := execute(t, dbPath, "workflows")
	require.NoError(t, err)
	assert.Equal(t, "approval\nreminder\n", output)

	output, err = execute(t, dbPath, "start", "approval", "requester=ann", "--key", "order-1")
	require.NoError(t, err)
	fields := strings.Fields(output)
	require.Len(t, fields, 2)
	id := fields[0]
	assert.Equal(t, "idle", fields[1])

	var testCases = []struct {
		description string
		args        []string
		expect      string
		hasError    bool
	}{
		{description: "list idle", args: []string{"list", "--state", "idle"}, expect: id + " approval idle executing\n"},
		{description: "list other workflow", args: []string{"list", "--workflow", "reminder"}, expect: ""},
		{description: "unknown bookmark", args: []string{"resume", id, "reject", "no"}, expect: "notFound\n"},
		{description: "approve by key", args: []string{"resume", "--key", "order-1", "approve", "yes"}, expect: "success\n"},
		{description: "key released", args: []string{"resume", "--key", "order-1", "approve", "yes"}, hasError: true},
		{description: "list complete", args: []string{"list", "--state", "complete"}, expect: id + " approval complete closed\n"},
		{description: "missing id", args: []string{"resume", "approve"}, hasError: true},
		{description: "unknown workflow", args: []string{"start", "missing"}, hasError: true},
	}
	for _, testCase := range testCases {
		output, err := execute(t, dbPath, testCase.args...)
		if testCase.hasError {
			assert.Error(t, err, testCase.description)
			continue
		}
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expect, output, testCase.description)
	}

	output, err = execute(t, dbPath, "show", id)
	require.NoError(t, err)
	assert.Contains(t, output, "state: complete")
	assert.Contains(t, output, "approved: true")
	assert.Contains(t, output, "requester: ann")
}

func TestCommands_Reminder(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "actflow.db")

	output, err := execute(t, dbPath, "start", "reminder", "after=0s")
	require.NoError(t, err)
	fields := strings.Fields(output)
	require.Len(t, fields, 2)
	assert.Equal(t, "complete", fields[1])

	output, err = execute(t, dbPath, "start", "reminder", "after=1h")
	require.NoError(t, err)
	fields = strings.Fields(output)
	require.Len(t, fields, 2)
	assert.Equal(t, "idle", fields[1])

	output, err = execute(t, dbPath, "tick", "--timeout", "10ms")
	require.NoError(t, err)
	assert.Equal(t, "", output)

	output, err = execute(t, dbPath, "cancel", fields[0])
	require.NoError(t, err)
	output, err = execute(t, dbPath, "list", "--workflow", "reminder", "--state", "complete")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(output, "\n"))
	assert.Contains(t, output, fields[0]+" reminder complete canceled")
}
