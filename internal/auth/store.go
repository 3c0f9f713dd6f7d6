package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Principals(ctx context.Context) PrincipalStore
	Roles(ctx context.Context) RoleStore
	Profiles(ctx context.Context) ProfileStore
}

// PrincipalStore manages identities. Create reports ErrAlreadyExists when the
// email is taken.
type PrincipalStore interface {
	Create(ctx context.Context, p *Principal) error
	Find(ctx context.Context, id string) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

// RoleStore resolves and creates roles by name.
type RoleStore interface {
	FindByName(ctx context.Context, name RoleName) (*Role, error)
	Create(ctx context.Context, role *Role) error
}

// ProfileStore manages developer profiles keyed by email.
type ProfileStore interface {
	FindByEmail(ctx context.Context, email string) (*Profile, error)
	Create(ctx context.Context, p *Profile) error
}
