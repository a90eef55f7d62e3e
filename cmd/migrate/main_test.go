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

func TestRunOfflineCommands(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), options{cmd: "list"}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "20260301090000_create_users.sql", lines[0])

	out.Reset()
	require.NoError(t, run(context.Background(), options{cmd: "validate"}, &out))
	assert.Contains(t, out.String(), "migration validation passed")
}

func TestRunCreateWritesIntoDir(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), options{cmd: "create", dir: dir, name: "add loyalty points"}, &out))

	matches, err := filepath.Glob(filepath.Join(dir, "*_add_loyalty_points.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	_, err = os.Stat(matches[0])
	assert.NoError(t, err)
}

func TestRunRejectsBadUsageBeforeConfig(t *testing.T) {
	for _, opts := range []options{
		{cmd: "create"},
		{cmd: "version", version: "yesterday"},
		{cmd: "sideways"},
	} {
		err := run(context.Background(), opts, &bytes.Buffer{})
		assert.ErrorIs(t, err, errUsage, opts.cmd)
	}
}
