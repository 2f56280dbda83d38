package migration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add mandate index", "add_mandate_index"},
		{"Add-Mandate-Index", "add_mandate_index"},
		{"ADD__MANDATE__INDEX", "add_mandate_index"},
		{"sdd files v2", "sdd_files_v2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading and trailing_", "leading_and_trailing"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")
	at := time.Date(2025, 3, 1, 9, 30, 15, 0, time.UTC)

	mf, err := CreateMigration(dir, "Add file reconciliation", "Track reconciled files", at)
	require.NoError(t, err)
	assert.Equal(t, uint(20250301093015), mf.Version)
	assert.Equal(t, "add_file_reconciliation", mf.Name)
	assert.Equal(t, filepath.Join(dir, "20250301093015_add_file_reconciliation.up.sql"), mf.UpPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Description: Track reconciled files")
	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(Rollback)")

	_, err = CreateMigration(dir, "add file reconciliation", "", at)
	assert.Error(t, err, "existing files are not overwritten")

	_, err = CreateMigration(dir, "!!!", "", at)
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{
		"20250301090000_create_sdd_tables.up.sql",
		"20250301090000_create_sdd_tables.down.sql",
		"20250115120000_seed.up.sql",
		"20250115120000_seed.down.sql",
		"20250401000000_orphan.up.sql",
		"README.md",
		"notes.sql",
		"abc_bad.up.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("-- test"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "1_subdir.up.sql"), 0o755))

	files, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "20250115120000_seed", files[0].Base())
	assert.Equal(t, "20250301090000_create_sdd_tables", files[1].Base())
	assert.Equal(t, "orphan", files[2].Name)
	assert.Empty(t, files[2].DownPath)

	err = CheckPairs(files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "20250401000000_orphan")
	assert.NoError(t, CheckPairs(files[:2]))
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	files, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestListMigrations_RepositoryMigrations(t *testing.T) {
	files, err := ListMigrations(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.NoError(t, CheckPairs(files))
}
