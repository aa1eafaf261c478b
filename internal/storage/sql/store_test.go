package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMySQLDSNWithFoundRows(t *testing.T) {
	// Bare DSN gets the parameter appended
	assert.Equal(t,
		"user:pass@tcp(localhost:3306)/fieldreport?clientFoundRows=true",
		mysqlDSNWithFoundRows("user:pass@tcp(localhost:3306)/fieldreport"),
	)

	// Existing query string is extended, not replaced
	assert.Equal(t,
		"user:pass@tcp(localhost:3306)/fieldreport?parseTime=true&clientFoundRows=true",
		mysqlDSNWithFoundRows("user:pass@tcp(localhost:3306)/fieldreport?parseTime=true"),
	)

	// A caller-provided setting is left untouched
	dsn := "user:pass@tcp(localhost:3306)/fieldreport?clientFoundRows=false"
	assert.Equal(t, dsn, mysqlDSNWithFoundRows(dsn))
}
