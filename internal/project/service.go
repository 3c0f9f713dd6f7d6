package project

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Moadams/ProjectTracker/internal/audit"
	"github.com/Moadams/ProjectTracker/internal/cache"
)

const (
	maxNameLen        = 100
	maxDescriptionLen = 500
	listKey           = "all"
)

type updateArgs struct {
	ID      string      `json:"id"`
	Changes UpdateInput `json:"changes"`
}

// Service serves project reads from cache regions and invalidates them on
// every write. Writes are audited.
type Service struct {
	repo  Repository
	cache *cache.Regions
	now   func() time.Time

	create audit.Op[CreateInput, Project]
	update audit.Op[updateArgs, Project]
	remove audit.Op[string, string]
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires repo with the cache and audit sink. Both may be nil.
func NewService(repo Repository, regions *cache.Regions, sink *audit.Sink, opts ...Option) *Service {
	s := &Service{repo: repo, cache: regions, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.create = audit.Audited(sink, audit.ActionCreate, audit.EntityProject, s.doCreate,
		func(in CreateInput, out Project) (string, any) {
			if out.ID == "" {
				return "", in
			}
			return out.ID, out
		})
	s.update = audit.Audited(sink, audit.ActionUpdate, audit.EntityProject, s.doUpdate,
		func(in updateArgs, out Project) (string, any) {
			if out.ID == "" {
				return in.ID, in.Changes
			}
			return out.ID, out
		})
	s.remove = audit.Audited(sink, audit.ActionDelete, audit.EntityProject, s.doDelete,
		func(id string, _ string) (string, any) { return id, nil })
	return s
}

// Create validates and stores a new ACTIVE project.
func (s *Service) Create(ctx context.Context, in CreateInput) (Project, error) {
	return s.create(ctx, in)
}

// Update applies the non-nil fields of in.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Project, error) {
	return s.update(ctx, updateArgs{ID: id, Changes: in})
}

// Delete removes a project.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.remove(ctx, id)
	return err
}

// Get returns one project.
func (s *Service) Get(ctx context.Context, id string) (Project, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.Projects, id, func(ctx context.Context) (Project, error) {
		p, err := s.repo.Get(ctx, id)
		if err != nil {
			return Project{}, err
		}
		return *p, nil
	})
}

// List returns every project, oldest first.
func (s *Service) List(ctx context.Context) ([]Project, error) {
	list, err := cache.GetOrLoad(ctx, s.cache, cache.AllProjects, listKey, s.repo.List)
	return slices.Clone(list), err
}

// Overdue returns ACTIVE projects whose deadline has passed.
func (s *Service) Overdue(ctx context.Context) ([]Project, error) {
	list, err := cache.GetOrLoad(ctx, s.cache, cache.OverdueProjects, listKey, func(ctx context.Context) ([]Project, error) {
		return s.repo.Overdue(ctx, startOfDay(s.now()))
	})
	return slices.Clone(list), err
}

func (s *Service) doCreate(ctx context.Context, in CreateInput) (Project, error) {
	now := s.now().UTC()
	p := Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Deadline:    startOfDay(in.Deadline),
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Deadline.IsZero() {
		return Project{}, fmt.Errorf("%w: deadline is required", ErrInvalidInput)
	}
	if p.Deadline.Before(startOfDay(now)) {
		return Project{}, fmt.Errorf("%w: deadline must be in the present or future", ErrInvalidInput)
	}
	if err := validate(p); err != nil {
		return Project{}, err
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		return Project{}, err
	}
	s.cache.Invalidate(cache.All(cache.AllProjects))
	return p, nil
}

func (s *Service) doUpdate(ctx context.Context, args updateArgs) (Project, error) {
	existing, err := s.repo.Get(ctx, args.ID)
	if err != nil {
		return Project{}, err
	}
	p := *existing
	in := args.Changes
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Deadline != nil {
		p.Deadline = startOfDay(*in.Deadline)
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if err := validate(p); err != nil {
		return Project{}, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, &p); err != nil {
		return Project{}, err
	}
	s.cache.Invalidate(
		cache.Key(cache.Projects, p.ID),
		cache.All(cache.OverdueProjects),
		cache.All(cache.AllProjects),
		cache.All(cache.ProjectsWithoutTasks),
	)
	return p, nil
}

func (s *Service) doDelete(ctx context.Context, id string) (string, error) {
	if err := s.repo.Delete(ctx, id); err != nil {
		return "", err
	}
	s.cache.Invalidate(
		cache.Key(cache.Projects, id),
		cache.All(cache.AllProjects),
		cache.All(cache.OverdueProjects),
		cache.All(cache.ProjectsWithoutTasks),
	)
	return id, nil
}

func validate(p Project) error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: project name cannot be blank", ErrInvalidInput)
	case len(p.Name) > maxNameLen:
		return fmt.Errorf("%w: project name cannot exceed %d characters", ErrInvalidInput, maxNameLen)
	case len(p.Description) > maxDescriptionLen:
		return fmt.Errorf("%w: project description cannot exceed %d characters", ErrInvalidInput, maxDescriptionLen)
	case !p.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, p.Status)
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
