package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rc := newRootCommand(&stdout, &stderr)
	rc.SetArgs(args)
	err := rc.Execute()
	return stdout.String(), err
}

func TestCounterCommand(t *testing.T) {
	out, err := execute(t, "counter", "--workers", "1", "--tasks", "100000")
	require.NoError(t, err)
	assert.Equal(t, "counter=100000\n", out)
}

func TestCounterCommand_ManyWorkers(t *testing.T) {
	out, err := execute(t, "counter", "-w", "8", "-n", "5000", "--submitters", "3")
	require.NoError(t, err)
	assert.Equal(t, "counter=5000\n", out)
}

func TestFibonacciCommand(t *testing.T) {
	out, err := execute(t, "fibonacci", "--steps", "7")
	require.NoError(t, err)

	var fib, tri []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		switch {
		case strings.HasPrefix(line, "fib "):
			fib = append(fib, strings.TrimPrefix(line, "fib "))
		case strings.HasPrefix(line, "tri "):
			tri = append(tri, strings.TrimPrefix(line, "tri "))
		}
	}
	assert.Equal(t, []string{"1", "1", "2", "3", "5", "8", "13"}, fib)
	assert.Equal(t, []string{"1", "3", "6", "10", "15", "21", "28"}, tri)
	assert.True(t, strings.HasPrefix(out, "fib 1\ntri 1\nfib 1\ntri 3\n"), "sequences should alternate: %q", out)
}

func TestPriorityCommand(t *testing.T) {
	out, err := execute(t, "priority", "--tasks", "50")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "user-blocking "))
	assert.True(t, strings.HasPrefix(lines[1], "user-visible "))
	assert.True(t, strings.HasPrefix(lines[2], "best-effort "))
}

func TestRunPriority_OrdersByPriority(t *testing.T) {
	ranks, err := runPriority(context.Background(), nil, 100, 1)
	require.NoError(t, err)

	high, normal, low := ranks[2], ranks[1], ranks[0]
	assert.Less(t, high, normal)
	assert.Less(t, normal, low)
}

func TestConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pool]\nworkers = 2\n[log]\nlevel = \"error\"\n"), 0644))

	out, err := execute(t, "counter", "--config", path, "-n", "10")
	require.NoError(t, err)
	assert.Equal(t, "counter=10\n", out)
}

func TestConfigFlag_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pool]\nworkers = 0\n"), 0644))

	_, err := execute(t, "counter", "--config", path)
	assert.Error(t, err)
}

func TestWorkersFlag_Invalid(t *testing.T) {
	_, err := execute(t, "counter", "--workers", "0")
	assert.Error(t, err)
}
