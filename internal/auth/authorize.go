package auth

// HasRole reports whether principal holds any of the given roles.
func (p Principal) HasRole(roles ...RoleName) bool {
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Identity is the authenticated caller as derived from an access token.
type Identity struct {
	Subject string
	Role    string
}

// HasRole reports whether the identity's role claim matches any of roles.
func (i Identity) HasRole(roles ...RoleName) bool {
	r, ok := RoleFromClaim(i.Role)
	if !ok {
		return false
	}
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}
