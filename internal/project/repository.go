package project

import (
	"context"
	"time"
)

// Repository persists projects.
type Repository interface {
	Create(ctx context.Context, p *Project) error
	Get(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error
	// Overdue lists ACTIVE projects whose deadline is before asOf.
	Overdue(ctx context.Context, asOf time.Time) ([]Project, error)
}
