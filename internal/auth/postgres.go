package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Moadams/ProjectTracker/internal/ids"
)

var _ Store = (*PGStore)(nil)

const pgUniqueViolation = "23505"

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Principals(context.Context) PrincipalStore { return &principalStore{db: s.db} }
func (s *PGStore) Roles(context.Context) RoleStore           { return &roleStore{db: s.db} }
func (s *PGStore) Profiles(context.Context) ProfileStore     { return &profileStore{db: s.db} }

// Principal store ----------------------------------------------------------
type principalStore struct{ db *sql.DB }

func (s *principalStore) Create(ctx context.Context, p *Principal) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	p.Email = normalizeEmail(p.Email)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`insert into principals(id, email, password_hash, created_at, updated_at) values($1,$2,$3,$4,$5)`,
		p.ID, p.Email, p.PasswordHash, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return translatePGError(err)
	}
	for _, role := range p.Roles {
		res, err := tx.ExecContext(ctx,
			`insert into principal_roles(principal_id, role_id)
			 select $1, id from roles where name=$2`, p.ID, string(role),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("%w: role %s is not persisted", ErrRoleCreation, role)
		}
	}
	return tx.Commit()
}

func (s *principalStore) Find(ctx context.Context, id string) (*Principal, error) {
	return s.findOne(ctx, `select id, email, password_hash, created_at, updated_at from principals where id=$1`, id)
}

func (s *principalStore) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	return s.findOne(ctx, `select id, email, password_hash, created_at, updated_at from principals where email=$1`, normalizeEmail(email))
}

func (s *principalStore) findOne(ctx context.Context, query string, arg string) (*Principal, error) {
	var p Principal
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&p.ID, &p.Email, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	roles, err := s.roles(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Roles = roles
	return &p, nil
}

func (s *principalStore) roles(ctx context.Context, principalID string) ([]RoleName, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.name from roles r
		 join principal_roles pr on pr.role_id=r.id
		 where pr.principal_id=$1 order by pr.created_at`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []RoleName
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		roles = append(roles, RoleName(name))
	}
	return roles, rows.Err()
}

func (s *principalStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`select exists(select 1 from principals where email=$1)`, normalizeEmail(email),
	).Scan(&exists)
	return exists, err
}

func (s *principalStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `update principals set updated_at=$2 where id=$1`, id, at)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Role store ---------------------------------------------------------------
type roleStore struct{ db *sql.DB }

func (s *roleStore) FindByName(ctx context.Context, name RoleName) (*Role, error) {
	var (
		role Role
		raw  string
	)
	err := s.db.QueryRowContext(ctx,
		`select id, name, created_at from roles where name=$1`, string(name),
	).Scan(&role.ID, &raw, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	role.Name = RoleName(raw)
	return &role, nil
}

func (s *roleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, name, created_at) values($1,$2,$3)`,
		role.ID, string(role.Name), role.CreatedAt,
	)
	return translatePGError(err)
}

// Profile store ------------------------------------------------------------
type profileStore struct{ db *sql.DB }

func (s *profileStore) FindByEmail(ctx context.Context, email string) (*Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx,
		`select id, principal_id, name, email, created_at from profiles where email=$1`, normalizeEmail(email),
	).Scan(&p.ID, &p.PrincipalID, &p.Name, &p.Email, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *profileStore) Create(ctx context.Context, p *Profile) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Email = normalizeEmail(p.Email)
	_, err := s.db.ExecContext(ctx,
		`insert into profiles(id, principal_id, name, email, created_at) values($1,$2,$3,$4,$5)`,
		p.ID, p.PrincipalID, p.Name, p.Email, p.CreatedAt,
	)
	return translatePGError(err)
}

// translatePGError maps unique violations onto ErrAlreadyExists.
func translatePGError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrAlreadyExists
	}
	return err
}
