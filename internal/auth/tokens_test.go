package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCodec(t *testing.T, secret string, clock *fakeClock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(secret,
		WithClock(clock.Now),
		WithAccessTTL(15*time.Minute),
		WithRefreshTTL(7*24*time.Hour),
	)
	require.NoError(t, err)
	return codec
}

func TestIssueValidateRoundTrip(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, "round-trip-secret", clock)

	for i, role := range BuiltinRoles {
		subject := fmt.Sprintf("user%d@x.com", i)
		for _, kind := range []TokenKind{KindAccess, KindRefresh} {
			token, err := codec.Issue(subject, role.Claim(), kind)
			require.NoError(t, err)

			got, err := codec.Validate(token, kind)
			require.NoError(t, err)
			assert.Equal(t, subject, got.Subject)
			assert.Equal(t, role.Claim(), got.Role)
			assert.Equal(t, kind, got.Kind)
			assert.True(t, clock.Now().Add(codec.TTL(kind)).Equal(got.ExpiresAt))
		}
	}
}

func TestTokenWireFormat(t *testing.T) {
	codec := newTestCodec(t, "wire-secret", newFakeClock())
	token, err := codec.Issue("alice@x.com", RoleDeveloper.Claim(), KindAccess)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Contains(t, string(header), `"alg":"HS256"`)

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(raw, &claims))
	for _, key := range []string{"sub", "role", "iat", "exp", "typ"} {
		assert.Contains(t, claims, key)
	}
	assert.Equal(t, "access", claims["typ"])
	assert.Equal(t, "ROLE_DEVELOPER", claims["role"])
}

func TestValidateExpiry(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, "expiry-secret", clock)

	token, err := codec.Issue("bob@x.com", RoleManager.Claim(), KindAccess)
	require.NoError(t, err)

	clock.Advance(15*time.Minute + DefaultLeeway - time.Second)
	_, err = codec.Validate(token, KindAccess)
	require.NoError(t, err, "token within grace window must validate")

	clock.Advance(2 * time.Second)
	_, err = codec.Validate(token, KindAccess)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestCodec(t, "secret-one", clock)
	verifier := newTestCodec(t, "secret-two", clock)

	for _, kind := range []TokenKind{KindAccess, KindRefresh} {
		token, err := issuer.Issue("carol@x.com", RoleAdmin.Claim(), kind)
		require.NoError(t, err)
		_, err = verifier.Validate(token, kind)
		require.ErrorIs(t, err, ErrSignatureMismatch)
	}

	// Signature is checked before expiry.
	token, err := issuer.Issue("carol@x.com", RoleAdmin.Claim(), KindAccess)
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, err = verifier.Validate(token, KindAccess)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestValidateRejectsTamperedClaims(t *testing.T) {
	codec := newTestCodec(t, "tamper-secret", newFakeClock())
	token, err := codec.Issue("dave@x.com", RoleContractor.Claim(), KindAccess)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	forged := strings.Replace(mustDecode(t, parts[1]), "ROLE_CONTRACTOR", "ROLE_ADMIN", 1)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(forged))

	_, err = codec.Validate(strings.Join(parts, "."), KindAccess)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestValidateRejectsUnsignedAlgorithm(t *testing.T) {
	codec := newTestCodec(t, "none-secret", newFakeClock())
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	claims := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"eve@x.com","role":"ROLE_ADMIN","typ":"access","iat":1772366400,"exp":9999999999,"iss":"projecttracker"}`))

	_, err := codec.Validate(header+"."+claims+".", KindAccess)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestValidateMalformed(t *testing.T) {
	codec := newTestCodec(t, "malformed-secret", newFakeClock())
	for _, token := range []string{"", "abc", "a.b", "a.b.c", "!!!.???.###"} {
		_, err := codec.Validate(token, KindAccess)
		require.ErrorIs(t, err, ErrMalformedToken, "token %q", token)
	}
}

func TestValidateWrongKind(t *testing.T) {
	codec := newTestCodec(t, "kind-secret", newFakeClock())

	refresh, err := codec.Issue("frank@x.com", RoleDeveloper.Claim(), KindRefresh)
	require.NoError(t, err)
	_, err = codec.Validate(refresh, KindAccess)
	require.ErrorIs(t, err, ErrWrongTokenKind)

	access, err := codec.Issue("frank@x.com", RoleDeveloper.Claim(), KindAccess)
	require.NoError(t, err)
	_, err = codec.Validate(access, KindRefresh)
	require.ErrorIs(t, err, ErrWrongTokenKind)
	assert.True(t, IsTokenError(err))
}

func TestIssueWithoutSecret(t *testing.T) {
	codec, err := NewTokenCodec("")
	require.NoError(t, err)
	_, err = codec.Issue("gina@x.com", RoleDeveloper.Claim(), KindAccess)
	require.ErrorIs(t, err, ErrSigningKeyUnavailable)
}

func TestNewTokenCodecRequiresLongerRefresh(t *testing.T) {
	_, err := NewTokenCodec("s", WithAccessTTL(time.Hour), WithRefreshTTL(time.Hour))
	require.Error(t, err)

	_, err = NewTokenCodec("s", WithLeeway(-time.Second))
	require.Error(t, err)
}

func TestConcurrentIssue(t *testing.T) {
	codec := newTestCodec(t, "concurrent-secret", newFakeClock())
	var wg sync.WaitGroup
	tokens := make([]string, 32)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := codec.Issue(fmt.Sprintf("u%d@x.com", i), RoleDeveloper.Claim(), KindAccess)
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()
	for i, tok := range tokens {
		got, err := codec.Validate(tok, KindAccess)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("u%d@x.com", i), got.Subject)
	}
}

func mustDecode(t *testing.T, seg string) string {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	require.NoError(t, err)
	return string(raw)
}
