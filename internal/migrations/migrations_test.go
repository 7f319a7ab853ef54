package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Content dedup points many file records at one remote object, so the
// schema must never enforce row-level uniqueness over the synced
// (owner, file_hash, remote_path) triple.
func TestFilesSchema_AllowsSharedRemoteObjects(t *testing.T) {
	raw, err := Migrations.ReadFile("00001_create_files.sql")
	require.NoError(t, err)
	sql := strings.ToLower(string(raw))

	for _, stmt := range strings.Split(sql, ";") {
		if !strings.Contains(stmt, "create unique index") {
			continue
		}
		assert.NotContains(t, stmt, "remote_path",
			"unique index over remote_path would reject deduplicated records")
	}
}
