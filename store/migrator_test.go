package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSQL(t *testing.T) {
	script := `-- header comment
CREATE TABLE a (
  id INTEGER
);

-- second
CREATE INDEX idx_a ON a (id);
`
	statements := splitSQL(script)
	assert.Equal(t, []string{
		"CREATE TABLE a (\n  id INTEGER\n)",
		"CREATE INDEX idx_a ON a (id)",
	}, statements)
}

func TestMigrationFilesEmbedded(t *testing.T) {
	for _, driver := range []string{"postgres", "sqlite"} {
		bytes, err := migrationFS.ReadFile("migration/" + driver + "/" + LatestSchemaFileName)
		assert.NoError(t, err, driver)
		assert.Contains(t, string(bytes), "CREATE TABLE content_chunk", driver)
	}
}

func TestContentSourceValid(t *testing.T) {
	assert.True(t, SourceTwitter.Valid())
	assert.False(t, ContentSource("myspace").Valid())
}
