package auth

import "time"

// Principal is an authenticated identity record. It is never deleted by this package.
type Principal struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []RoleName
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role is immutable once created.
type Role struct {
	ID        string
	Name      RoleName
	CreatedAt time.Time
}

// Profile is the developer record bootstrapped for a newly registered principal.
type Profile struct {
	ID          string
	PrincipalID string
	Name        string
	Email       string
	CreatedAt   time.Time
}

// TokenPair is returned by login, refresh and federated login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64  `json:"expiresIn"`
	Role      string `json:"role"`
}

// Registration is the outcome of a successful Register call.
type Registration struct {
	PrincipalID string   `json:"id"`
	Email       string   `json:"email"`
	Role        RoleName `json:"role"`
}

// PrimaryRole returns the first role membership, if any.
func (p Principal) PrimaryRole() (RoleName, bool) {
	if len(p.Roles) == 0 {
		return "", false
	}
	return p.Roles[0], true
}
