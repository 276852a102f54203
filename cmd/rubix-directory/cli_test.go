package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kubex/rubix-directory/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig points the CLI at the jsonfile fixtures shared with the storage tests.
func writeConfig(t *testing.T, provider, configuration string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rubix.yaml")
	body := "logging:\n  level: error\nstorage:\n  provider: " + provider + "\n  configuration:\n" + configuration
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func jsonfileConfig(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs("../../storage/jsonfile/_testdata")
	require.NoError(t, err)
	return writeConfig(t, "jsonfile", "    dataDirectory: "+dir+"\n")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryAsLead(t *testing.T) {
	cfg := jsonfileConfig(t)
	out, err := run(t, "query", "--config", cfg, "--as", "a", "-o", "json")
	require.NoError(t, err)

	var res directory.ResultPage
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 4, res.TotalCount)
	require.Len(t, res.Items, 4)
	assert.Equal(t, "a", res.Items[0].ID)
}

func TestQueryTable(t *testing.T) {
	cfg := jsonfileConfig(t)
	out, err := run(t, "query", "--config", cfg, "--search", "smi")
	require.NoError(t, err)
	assert.Contains(t, out, "bsmith")
	assert.NotContains(t, out, "cjones")
	assert.Contains(t, out, "page 1 of 1, 1 users")
}

func TestCount(t *testing.T) {
	cfg := jsonfileConfig(t)

	out, err := run(t, "count", "--config", cfg, "--as", "d")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = run(t, "count", "--config", cfg, "--as", "d", "--scope-team", "t1", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"count": 4}`, out)

	_, err = run(t, "count", "--config", cfg, "--visible", "--hidden")
	assert.Error(t, err)
}

func TestDeleteUserReadOnly(t *testing.T) {
	cfg := jsonfileConfig(t)
	_, err := run(t, "delete-user", "b", "--config", cfg, "--replacement", "a")
	assert.Error(t, err)
}

func TestMigrateAndDeleteOnSQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "cli.db")
	cfg := writeConfig(t, "sql", "    sqlLite: true\n    primaryDsn: "+dsn+"\n")

	out, err := run(t, "migrate", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "schema up to date")

	out, err = run(t, "count", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)

	_, err = run(t, "delete-user", "ghost", "--config", cfg)
	assert.Error(t, err)
}

func TestMigrateUnsupported(t *testing.T) {
	cfg := jsonfileConfig(t)
	_, err := run(t, "migrate", "--config", cfg)
	assert.Error(t, err)
}
