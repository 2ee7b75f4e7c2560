package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBenchCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping route benchmark in short mode")
	}
	corpus := newCorpus(t)
	csvPath := filepath.Join(t.TempDir(), "bench.csv")
	query := filepath.Join(corpus.Root, corpus.General[0])

	out, stderr, err := executeCommand(t, "bench", query,
		"--dataset", corpus.Root, "--iterations", "1", "--csv", csvPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Route benchmark over 7 corpus items")
	assert.Contains(t, out, "airplane_01.png (320x240")
	assert.Contains(t, stderr, "Running 1 iterations per route")
	assert.Contains(t, stderr, "Results saved to: "+csvPath)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "airplane_01.png,320x240,"))
}

func TestBenchCommand_Errors(t *testing.T) {
	corpus := newCorpus(t)
	query := filepath.Join(corpus.Root, corpus.General[0])

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no images", []string{"bench", "--dataset", corpus.Root}, "requires at least 1 arg"},
		{"no dataset", []string{"bench", query}, "no dataset directory"},
		{"zero iterations", []string{"bench", query, "--dataset", corpus.Root, "--iterations", "0"}, "iterations must be positive"},
		{"bad query", []string{"bench", filepath.Join(corpus.Root, "missing.png"), "--dataset", corpus.Root}, "failed to load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
