package project

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var _ Repository = (*PGRepository)(nil)

const projectColumns = `id, name, description, deadline, status, created_at, updated_at`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db *sql.DB
}

func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) Create(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx,
		`insert into projects(`+projectColumns+`) values($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Name, p.Description, p.Deadline, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *PGRepository) Get(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `select `+projectColumns+` from projects where id=$1`, id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGRepository) List(ctx context.Context) ([]Project, error) {
	return r.query(ctx, `select `+projectColumns+` from projects order by created_at, id`)
}

func (r *PGRepository) Overdue(ctx context.Context, asOf time.Time) ([]Project, error) {
	return r.query(ctx,
		`select `+projectColumns+` from projects where deadline < $1 and status = $2 order by deadline, id`,
		asOf, string(StatusActive),
	)
}

func (r *PGRepository) Update(ctx context.Context, p *Project) error {
	res, err := r.db.ExecContext(ctx,
		`update projects set name=$2, description=$3, deadline=$4, status=$5, updated_at=$6 where id=$1`,
		p.ID, p.Name, p.Description, p.Deadline, string(p.Status), p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `delete from projects where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepository) query(ctx context.Context, q string, args ...any) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (Project, error) {
	var (
		p      Project
		status string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Deadline, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Project{}, err
	}
	p.Status = Status(status)
	return p, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
