package pg

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePingAndRepositories(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	s := New(db)
	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))

	assert.NotNil(t, s.Auth())
	assert.NotNil(t, s.Audit())
	assert.NotNil(t, s.Projects())
	assert.Same(t, db, s.DB())

	mock.ExpectClose()
	require.NoError(t, s.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
