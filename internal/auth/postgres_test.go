package auth

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPGStore(db), mock
}

func TestPGPrincipalCreateAssignsRoles(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`insert into principals(id, email, password_hash, created_at, updated_at)`)).
		WithArgs(sqlmock.AnyArg(), "alice@x.com", "hash", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into principal_roles(principal_id, role_id)`)).
		WithArgs(sqlmock.AnyArg(), "DEVELOPER").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p := &Principal{Email: " Alice@X.com ", PasswordHash: "hash", Roles: []RoleName{RoleDeveloper}}
	require.NoError(t, store.Principals(ctx).Create(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "alice@x.com", p.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGPrincipalCreateFailsWithoutRoleRow(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`insert into principals`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`insert into principal_roles(principal_id, role_id)`)).
		WithArgs(sqlmock.AnyArg(), "MANAGER").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	p := &Principal{Email: "mia@x.com", PasswordHash: "hash", Roles: []RoleName{RoleManager}}
	err := store.Principals(ctx).Create(ctx, p)
	require.ErrorIs(t, err, ErrRoleCreation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGPrincipalCreateDuplicate(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`insert into principals`)).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
	mock.ExpectRollback()

	err := store.Principals(ctx).Create(ctx, &Principal{Email: "alice@x.com", PasswordHash: "hash"})
	require.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGPrincipalFindByEmailLoadsRoles(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`select id, email, password_hash, created_at, updated_at from principals where email=$1`)).
		WithArgs("alice@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "created_at", "updated_at"}).
			AddRow("p1", "alice@x.com", "hash", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`select r.name from roles r`)).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("DEVELOPER"))

	p, err := store.Principals(ctx).FindByEmail(ctx, "ALICE@x.com")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, []RoleName{RoleDeveloper}, p.Roles)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGPrincipalFindMissing(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`from principals where id=$1`)).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Principals(ctx).Find(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPGPrincipalTouchMissing(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`update principals set updated_at=$2 where id=$1`)).
		WithArgs("p1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Principals(ctx).Touch(ctx, "p1", time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPGRoleLifecycle(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`select id, name, created_at from roles where name=$1`)).
		WithArgs("MANAGER").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta(`insert into roles(id, name, created_at)`)).
		WithArgs(sqlmock.AnyArg(), "MANAGER", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

	_, err := store.Roles(ctx).FindByName(ctx, RoleManager)
	require.ErrorIs(t, err, ErrNotFound)

	err = store.Roles(ctx).Create(ctx, &Role{Name: RoleManager})
	require.ErrorIs(t, err, ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGProfileCreate(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`insert into profiles(id, principal_id, name, email, created_at)`)).
		WithArgs(sqlmock.AnyArg(), "p1", "alice", "alice@x.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Profiles(ctx).Create(ctx, &Profile{PrincipalID: "p1", Name: "alice", Email: "alice@x.com"}))
	require.NoError(t, mock.ExpectationsWereMet())
}
