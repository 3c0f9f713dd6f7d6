package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Moadams/ProjectTracker/internal/audit"
	"github.com/Moadams/ProjectTracker/internal/ids"
	"github.com/Moadams/ProjectTracker/internal/notify"
	"github.com/Moadams/ProjectTracker/internal/obs"
	"github.com/Moadams/ProjectTracker/internal/worker"
)

const (
	minPasswordLen           = 8
	maxPasswordLen           = 72
	defaultSideEffectTimeout = 30 * time.Second
	tokenTypeBearer          = "Bearer"

	taskProfileBootstrap = "profile.bootstrap"
	taskNotifyRegistered = "notify.principal_registered"
)

// Orchestrator coordinates registration and login. The primary path is
// synchronous; profile bootstrap, audit and notification run detached and
// never affect the caller's result.
type Orchestrator struct {
	store     Store
	codec     *TokenCodec
	roles     *RoleCache
	hasher    Hasher
	audit     *audit.Sink
	tasks     worker.Submitter
	publisher notify.Publisher
	now       func() time.Time
	timeout   time.Duration

	// dummyHash is verified for unknown emails so both login failures cost a hash compare.
	dummyHash string
}

// Option configures Orchestrator behavior.
type Option func(*Orchestrator)

// WithHasher overrides the bcrypt hasher.
func WithHasher(h Hasher) Option {
	return func(o *Orchestrator) {
		if h != nil {
			o.hasher = h
		}
	}
}

// WithAuditSink routes audit records to sink.
func WithAuditSink(sink *audit.Sink) Option {
	return func(o *Orchestrator) { o.audit = sink }
}

// WithTasks sets where detached side effects are submitted.
func WithTasks(tasks worker.Submitter) Option {
	return func(o *Orchestrator) {
		if tasks != nil {
			o.tasks = tasks
		}
	}
}

// WithPublisher enables the registration event.
func WithPublisher(p notify.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithRoleCache shares a role cache between components.
func WithRoleCache(c *RoleCache) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.roles = c
		}
	}
}

// WithSideEffectTimeout bounds each detached task.
func WithSideEffectTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTimeSource overrides time source (useful for tests).
func WithTimeSource(fn func() time.Time) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.now = fn
		}
	}
}

// NewOrchestrator wires the auth flows over store and codec.
func NewOrchestrator(store Store, codec *TokenCodec, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: token codec is required")
	}
	o := &Orchestrator{
		store:   store,
		codec:   codec,
		hasher:  NewBcryptHasher(0),
		tasks:   worker.Detached{},
		now:     time.Now,
		timeout: defaultSideEffectTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.roles == nil {
		o.roles = NewRoleCache(store)
	}
	hash, err := o.hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("auth: prepare dummy hash: %w", err)
	}
	o.dummyHash = hash
	return o, nil
}

// Roles exposes the role cache, e.g. for seeding.
func (o *Orchestrator) Roles() *RoleCache { return o.roles }

// Register creates a DEVELOPER principal and returns as soon as it is
// persisted. Profile bootstrap, the CREATE audit and the registration event
// follow in the background.
func (o *Orchestrator) Register(ctx context.Context, email, password string) (Registration, error) {
	email, err := validateEmail(email)
	if err != nil {
		return Registration{}, err
	}
	if len(password) < minPasswordLen {
		return Registration{}, fmt.Errorf("%w: password should be at least %d characters long", ErrInvalidInput, minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return Registration{}, fmt.Errorf("%w: password should be at most %d bytes long", ErrInvalidInput, maxPasswordLen)
	}

	principals := o.store.Principals(ctx)
	exists, err := principals.ExistsByEmail(ctx, email)
	if err != nil {
		return Registration{}, err
	}
	if exists {
		return Registration{}, ErrDuplicateIdentity
	}

	hash, err := o.hasher.Hash(password)
	if err != nil {
		return Registration{}, err
	}
	role, err := o.roles.GetOrCreate(ctx, RoleDeveloper)
	if err != nil {
		return Registration{}, err
	}

	now := o.now().UTC()
	p := &Principal{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Roles:        []RoleName{role.Name},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := principals.Create(ctx, p); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return Registration{}, ErrDuplicateIdentity
		}
		return Registration{}, err
	}

	o.bootstrapProfile(p.ID, email, localPart(email))
	o.audit.Append(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityUser,
		EntityID:   p.ID,
		Payload:    fmt.Sprintf("New user '%s' registered with %s.", email, role.Name.Claim()),
		Actor:      email,
	})
	o.publishRegistered(p, role.Name)

	return Registration{PrincipalID: p.ID, Email: email, Role: role.Name}, nil
}

// Login verifies credentials and issues an access and refresh token
// concurrently. A failed attempt is audited before returning.
func (o *Orchestrator) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		o.loginFailed(ctx, email, "", "missing credentials")
		return TokenPair{}, ErrInvalidCredentials
	}

	p, err := o.store.Principals(ctx).FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		_ = o.hasher.Verify(o.dummyHash, password)
		o.loginFailed(ctx, email, "", "unknown identity")
		return TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, err
	}
	if err := o.hasher.Verify(p.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			o.loginFailed(ctx, email, p.ID, "bad credentials")
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	pair, err := o.issuePair(p)
	if err != nil {
		return TokenPair{}, err
	}
	o.audit.Append(ctx, audit.Entry{
		Action:     audit.ActionLoginSuccess,
		EntityType: audit.EntityUser,
		EntityID:   p.ID,
		Payload:    "Successful login for user: " + email,
		Actor:      email,
	})
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The role claim is
// re-derived from the stored principal.
func (o *Orchestrator) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	vt, err := o.codec.Validate(refreshToken, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	p, err := o.store.Principals(ctx).FindByEmail(ctx, vt.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	return o.issuePair(p)
}

// FederatedLogin completes a login vouched for by an upstream identity
// provider. Unknown identities become CONTRACTOR principals without a usable
// password; known ones have their update timestamp refreshed.
func (o *Orchestrator) FederatedLogin(ctx context.Context, email, name string) (TokenPair, error) {
	email, err := validateEmail(email)
	if err != nil {
		return TokenPair{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = localPart(email)
	}

	principals := o.store.Principals(ctx)
	p, err := principals.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := principals.Touch(ctx, p.ID, o.now().UTC()); err != nil {
			return TokenPair{}, err
		}
	case errors.Is(err, ErrNotFound):
		p, err = o.createFederated(ctx, email)
		if err != nil {
			return TokenPair{}, err
		}
		o.audit.Append(ctx, audit.Entry{
			Action:     audit.ActionCreate,
			EntityType: audit.EntityUser,
			EntityID:   p.ID,
			Payload:    fmt.Sprintf("New user '%s' registered via federated login with %s.", email, RoleContractor.Claim()),
			Actor:      email,
		})
	default:
		return TokenPair{}, err
	}

	pair, err := o.issuePair(p)
	if err != nil {
		return TokenPair{}, err
	}
	o.bootstrapProfile(p.ID, email, name)
	o.audit.Append(ctx, audit.Entry{
		Action:     audit.ActionLoginSuccess,
		EntityType: audit.EntityUser,
		EntityID:   p.ID,
		Payload:    "Successful federated login for user: " + email,
		Actor:      email,
	})
	return pair, nil
}

func (o *Orchestrator) createFederated(ctx context.Context, email string) (*Principal, error) {
	role, err := o.roles.GetOrCreate(ctx, RoleContractor)
	if err != nil {
		return nil, err
	}
	// Nobody knows this secret, so password login stays impossible.
	hash, err := o.hasher.Hash(uuid.NewString() + uuid.NewString())
	if err != nil {
		return nil, err
	}
	now := o.now().UTC()
	p := &Principal{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Roles:        []RoleName{role.Name},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	principals := o.store.Principals(ctx)
	if err := principals.Create(ctx, p); err != nil {
		if !errors.Is(err, ErrAlreadyExists) {
			return nil, err
		}
		// Concurrent first login for the same identity.
		return principals.FindByEmail(ctx, email)
	}
	return p, nil
}

// Me loads the principal named by an access token subject.
func (o *Orchestrator) Me(ctx context.Context, subject string) (*Principal, error) {
	p, err := o.store.Principals(ctx).FindByEmail(ctx, subject)
	if err != nil {
		return nil, err
	}
	p.PasswordHash = ""
	return p, nil
}

// Authenticate validates an access token and returns the caller identity.
func (o *Orchestrator) Authenticate(token string) (Identity, error) {
	vt, err := o.codec.Validate(token, KindAccess)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Subject: vt.Subject, Role: vt.Role}, nil
}

func (o *Orchestrator) issuePair(p *Principal) (TokenPair, error) {
	roleClaim := FallbackRoleClaim
	if r, ok := p.PrimaryRole(); ok {
		roleClaim = r.Claim()
	}

	var access, refresh string
	var g errgroup.Group
	g.Go(func() (err error) {
		access, err = o.codec.Issue(p.Email, roleClaim, KindAccess)
		return err
	})
	g.Go(func() (err error) {
		refresh, err = o.codec.Issue(p.Email, roleClaim, KindRefresh)
		return err
	})
	if err := g.Wait(); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(o.codec.TTL(KindAccess) / time.Second),
		Role:         roleClaim,
	}, nil
}

func (o *Orchestrator) loginFailed(ctx context.Context, email, principalID, reason string) {
	actor := email
	if actor == "" {
		actor = "anonymous"
	}
	o.audit.AppendNow(ctx, audit.Entry{
		Action:     audit.ActionLoginFailure,
		EntityType: audit.EntityUser,
		EntityID:   principalID,
		Payload:    fmt.Sprintf("Failed login for user: %s (%s)", email, reason),
		Actor:      actor,
	})
}

// bootstrapProfile creates the developer profile for email unless one exists.
func (o *Orchestrator) bootstrapProfile(principalID, email, name string) {
	o.tasks.Submit(worker.Task{
		Name:    taskProfileBootstrap,
		Timeout: o.timeout,
		Fields:  []zap.Field{zap.String("principal", email)},
		Run: func(ctx context.Context) error {
			profiles := o.store.Profiles(ctx)
			_, err := profiles.FindByEmail(ctx, email)
			if err == nil {
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			err = profiles.Create(ctx, &Profile{
				ID:          ids.New(),
				PrincipalID: principalID,
				Name:        name,
				Email:       email,
				CreatedAt:   o.now().UTC(),
			})
			if errors.Is(err, ErrAlreadyExists) {
				return nil
			}
			return err
		},
	})
}

func (o *Orchestrator) publishRegistered(p *Principal, role RoleName) {
	if o.publisher == nil {
		return
	}
	ev := notify.Event{
		ID:         ids.New(),
		Type:       notify.EventPrincipalRegistered,
		OccurredAt: p.CreatedAt,
		Subject:    p.Email,
		Attributes: map[string]string{"principal_id": p.ID, "role": role.Claim()},
	}
	o.tasks.Submit(worker.Task{
		Name:    taskNotifyRegistered,
		Timeout: o.timeout,
		Fields:  []zap.Field{zap.String("principal", p.Email)},
		Run: func(ctx context.Context) error {
			return o.publisher.Publish(ctx, ev)
		},
	})
}

// Seed ensures every builtin role exists and, when credentials are given,
// an ADMIN principal.
func (o *Orchestrator) Seed(ctx context.Context, adminEmail, adminPassword string) error {
	if err := o.roles.Warm(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(adminEmail) == "" {
		return nil
	}
	email, err := validateEmail(adminEmail)
	if err != nil {
		return err
	}
	principals := o.store.Principals(ctx)
	exists, err := principals.ExistsByEmail(ctx, email)
	if err != nil || exists {
		return err
	}
	hash, err := o.hasher.Hash(adminPassword)
	if err != nil {
		return err
	}
	now := o.now().UTC()
	err = principals.Create(ctx, &Principal{
		ID:           ids.New(),
		Email:        email,
		PasswordHash: hash,
		Roles:        []RoleName{RoleAdmin},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, ErrAlreadyExists) {
		return nil
	}
	if err == nil {
		obs.Logger().Info("admin principal seeded", zap.String("principal", email))
	}
	return err
}

func validateEmail(raw string) (string, error) {
	email := normalizeEmail(raw)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: enter a valid email address", ErrInvalidInput)
	}
	return email, nil
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
