package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Moadams/ProjectTracker/internal/obs"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "projecttracker"

	// DefaultLeeway is the clock skew tolerated on exp and iat.
	DefaultLeeway = 30 * time.Second
)

// TokenKind discriminates access from refresh tokens. It travels in the typ claim.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// TokenClaims is the claim set carried by every session token.
type TokenClaims struct {
	Role string    `json:"role"`
	Kind TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// VerifiedToken is what Validate hands back once signature, expiry and kind checks pass.
type VerifiedToken struct {
	Subject   string
	Role      string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and validates HS256 session tokens. The secret is read-only
// after construction, so a codec is safe for concurrent use.
type TokenCodec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// CodecOption configures TokenCodec behavior.
type CodecOption func(*TokenCodec) error

// WithIssuer overrides the iss claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) error {
		if v := strings.TrimSpace(issuer); v != "" {
			c.issuer = v
		}
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *TokenCodec) error {
		if ttl > 0 {
			c.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *TokenCodec) error {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
		return nil
	}
}

// WithLeeway overrides the clock skew grace window.
func WithLeeway(d time.Duration) CodecOption {
	return func(c *TokenCodec) error {
		if d < 0 {
			return errors.New("auth: leeway must not be negative")
		}
		c.leeway = d
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) CodecOption {
	return func(c *TokenCodec) error {
		if fn != nil {
			c.now = fn
		}
		return nil
	}
}

// NewTokenCodec builds a codec around secret. An empty secret is accepted; Issue
// then fails with ErrSigningKeyUnavailable.
func NewTokenCodec(secret string, opts ...CodecOption) (*TokenCodec, error) {
	c := &TokenCodec{
		secret:     []byte(strings.TrimSpace(secret)),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		leeway:     DefaultLeeway,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.refreshTTL <= c.accessTTL {
		return nil, fmt.Errorf("auth: refresh ttl %s must exceed access ttl %s", c.refreshTTL, c.accessTTL)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(c.leeway),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(c.issuer),
	)
	return c, nil
}

// TTL returns the lifetime configured for kind.
func (c *TokenCodec) TTL(kind TokenKind) time.Duration {
	if kind == KindRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue signs a token of the given kind for subject carrying roleClaim.
func (c *TokenCodec) Issue(subject, roleClaim string, kind TokenKind) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	if kind != KindAccess && kind != KindRefresh {
		return "", fmt.Errorf("%w: unknown token kind %q", ErrInvalidInput, kind)
	}
	if len(c.secret) == 0 {
		return "", ErrSigningKeyUnavailable
	}

	now := c.now().UTC()
	claims := TokenClaims{
		Role: roleClaim,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL(kind))),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}
	return signed, nil
}

// Validate verifies signature, then expiry, then that the token is of kind want.
func (c *TokenCodec) Validate(token string, want TokenKind) (VerifiedToken, error) {
	vt, err := c.validate(token, want)
	if err != nil {
		obs.ObserveTokenFailure(failureReason(err))
		return VerifiedToken{}, err
	}
	return vt, nil
}

func (c *TokenCodec) validate(token string, want TokenKind) (VerifiedToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return VerifiedToken{}, ErrMalformedToken
	}
	if len(c.secret) == 0 {
		return VerifiedToken{}, ErrSigningKeyUnavailable
	}

	claims := &TokenClaims{}
	parsed, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return VerifiedToken{}, translateJWTError(err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return VerifiedToken{}, ErrMalformedToken
	}
	if claims.Kind != want {
		return VerifiedToken{}, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenKind, claims.Kind, want)
	}
	return VerifiedToken{
		Subject:   claims.Subject,
		Role:      claims.Role,
		Kind:      claims.Kind,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// translateJWTError maps library errors onto the token taxonomy. The parser
// checks the signature before claims, so an expired forgery reports a mismatch.
func translateJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureMismatch
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrSignatureMismatch):
		return "signature"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrWrongTokenKind):
		return "kind"
	case errors.Is(err, ErrSigningKeyUnavailable):
		return "key"
	default:
		return "malformed"
	}
}
