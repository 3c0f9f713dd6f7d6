package auth

import "strings"

// RoleName is the closed set of roles known to the service.
type RoleName string

const (
	RoleAdmin      RoleName = "ADMIN"
	RoleManager    RoleName = "MANAGER"
	RoleDeveloper  RoleName = "DEVELOPER"
	RoleContractor RoleName = "CONTRACTOR"
)

// FallbackRoleClaim is placed into tokens of principals with no role membership.
const FallbackRoleClaim = "ROLE_USER"

const claimPrefix = "ROLE_"

// BuiltinRoles lists every role in seeding order.
var BuiltinRoles = []RoleName{RoleAdmin, RoleManager, RoleDeveloper, RoleContractor}

// Valid reports whether r belongs to the closed set.
func (r RoleName) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleDeveloper, RoleContractor:
		return true
	}
	return false
}

// Claim renders the role as it appears in tokens, e.g. ROLE_DEVELOPER.
func (r RoleName) Claim() string {
	return claimPrefix + string(r)
}

// RoleFromClaim parses a token role claim back into a RoleName.
func RoleFromClaim(claim string) (RoleName, bool) {
	claim = strings.TrimSpace(claim)
	if !strings.HasPrefix(claim, claimPrefix) {
		return "", false
	}
	r := RoleName(strings.TrimPrefix(claim, claimPrefix))
	return r, r.Valid()
}
