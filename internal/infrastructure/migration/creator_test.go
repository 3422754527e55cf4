package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/erp/ledger/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add accounts table", "add_accounts_table"},
		{"Add-Posting-Failures", "add_posting_failures"},
		{"ADD__INDEX", "add_index"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "special_chars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "create accounts", "chart of accounts")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_create_accounts.up.sql"), first.UpPath)
	assert.Equal(t, filepath.Join(dir, "000001_create_accounts.down.sql"), first.DownPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: create accounts")
	assert.Contains(t, string(up), "chart of accounts")

	down, err := os.ReadFile(first.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Rollback: create accounts")

	second, err := CreateMigration(dir, "add index", "")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000002_add_index.up.sql",
		"000002_add_index.down.sql",
		"000001_init.up.sql",
		"000001_init.down.sql",
		"README.md",
		"notes.up.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	list, err := ListMigrations(os.DirFS(dir))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, Migration{Version: 1, Name: "init", UpPath: "000001_init.up.sql", DownPath: "000001_init.down.sql"}, list[0])
	assert.Equal(t, uint(2), list[1].Version)
	assert.Equal(t, "add_index", list[1].Name)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	list, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "absent")))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	list, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, list)

	for i, mig := range list {
		assert.Equal(t, uint(i+1), mig.Version, "versions must be contiguous")
		assert.NotEmpty(t, mig.UpPath, "missing up file for %d", mig.Version)
		assert.NotEmpty(t, mig.DownPath, "missing down file for %d", mig.Version)
	}
}
