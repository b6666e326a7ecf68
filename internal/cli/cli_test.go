package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestQueryCommand(t *testing.T) {
	out, err := runCLI(t, "query", "--db", ":memory:", "SELECT 41 + 1 AS answer")
	require.NoError(t, err)
	assert.Contains(t, out, "answer")
	assert.Contains(t, out, "42")
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "setup.bql")
	require.NoError(t, os.WriteFile(script, []byte(`
		CREATE TABLE t AS SELECT 1 AS a;
		CREATE POPULATION p FOR t WITH SCHEMA (MODEL a AS numerical);
	`), 0o644))

	dbPath := filepath.Join(dir, "x.db")
	_, err := runCLI(t, "run", "--db", dbPath, script)
	require.NoError(t, err)

	out, err := runCLI(t, "query", "--db", dbPath, "SELECT name FROM bayesdb_population")
	require.NoError(t, err)
	assert.Contains(t, out, "p")
}

func TestQueryCommandReportsErrors(t *testing.T) {
	_, err := runCLI(t, "query", "--db", ":memory:", "SELECT FROM")
	require.Error(t, err)
}

func TestUnknownLogLevel(t *testing.T) {
	_, err := runCLI(t, "query", "--db", ":memory:", "--log-level", "loud", "SELECT 1")
	require.Error(t, err)
}
