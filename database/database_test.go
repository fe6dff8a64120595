package database

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteCreatesSchema(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dsn := "file:" + filepath.Join(t.TempDir(), "nested", "runs.db")
	db, err := New(DriverSQLite, dsn, logger)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM grouping_runs`))
	assert.Zero(t, count)

	// idempotent
	assert.NoError(t, Migrate(db))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New("mysql", "whatever", logrus.New())
	assert.Error(t, err)
}
