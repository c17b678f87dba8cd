package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	sql := `
-- add column
ALTER TABLE users ADD COLUMN IF NOT EXISTS last_login TIMESTAMPTZ;

-- only a comment;
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);
`
	assert.Equal(t, []string{
		"ALTER TABLE users ADD COLUMN IF NOT EXISTS last_login TIMESTAMPTZ",
		"CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)",
	}, splitStatements(sql))
}
