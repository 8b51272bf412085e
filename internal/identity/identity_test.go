package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, subject, username, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := JWTClaims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newTestResolver() *Resolver {
	return NewResolver(NewJWTVerifier(testSecret))
}

func TestResolveVerifiedToken(t *testing.T) {
	resolver := newTestResolver()
	token := signToken(t, "u2", "Bruno", "user", time.Hour)

	id, err := resolver.Resolve(context.Background(), Credentials{Token: token})
	require.NoError(t, err)
	require.Equal(t, TrustVerified, id.Trust)
	require.Equal(t, "u2", id.UserID)
	require.Equal(t, "Bruno", id.Username)
	require.Equal(t, "user", id.Role)
}

func TestResolveClaimedIdentity(t *testing.T) {
	resolver := newTestResolver()

	id, err := resolver.Resolve(context.Background(), Credentials{ClaimedUserID: "u1", ClaimedUsername: "Ana"})
	require.NoError(t, err)
	require.Equal(t, TrustUnverified, id.Trust)
	require.Equal(t, "u1", id.UserID)
	require.Equal(t, "Ana", id.Username)
}

func TestResolveClaimedIdentityWithoutUsername(t *testing.T) {
	resolver := newTestResolver()

	id, err := resolver.Resolve(context.Background(), Credentials{ClaimedUserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, PlaceholderUsername, id.Username)
}

func TestResolveBadTokenFallsThroughToClaimedID(t *testing.T) {
	resolver := newTestResolver()
	expired := signToken(t, "u2", "Bruno", "user", -time.Hour)

	id, err := resolver.Resolve(context.Background(), Credentials{Token: expired, ClaimedUserID: "u2", ClaimedUsername: "Bruno"})
	require.NoError(t, err)
	require.Equal(t, TrustUnverified, id.Trust)
	require.Equal(t, "u2", id.UserID)
}

func TestResolveBadTokenWithoutFallbackRejects(t *testing.T) {
	resolver := newTestResolver()

	_, err := resolver.Resolve(context.Background(), Credentials{Token: "not-a-token"})
	require.ErrorIs(t, err, ErrInsufficientAuth)
}

func TestResolveEmptyCredentialsRejects(t *testing.T) {
	resolver := newTestResolver()

	_, err := resolver.Resolve(context.Background(), Credentials{})
	require.ErrorIs(t, err, ErrInsufficientAuth)
}

func TestReauthSuccessUpgradesTrust(t *testing.T) {
	resolver := newTestResolver()
	token := signToken(t, "u3", "Carla", "coach", time.Hour)

	id, err := resolver.Reauth(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, TrustVerified, id.Trust)
	require.Equal(t, "u3", id.UserID)
	require.Equal(t, "coach", id.Role)
}

func TestReauthExpiredTokenRejected(t *testing.T) {
	resolver := newTestResolver()
	expired := signToken(t, "u3", "Carla", "user", -time.Hour)

	_, err := resolver.Reauth(context.Background(), expired)
	require.ErrorIs(t, err, ErrTokenRejected)
}

func TestJWTVerifierRejectsWrongSecret(t *testing.T) {
	verifier := NewJWTVerifier("other-secret")
	token := signToken(t, "u2", "Bruno", "user", time.Hour)

	_, err := verifier.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifierExpired(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	expired := signToken(t, "u2", "Bruno", "user", -time.Hour)

	_, err := verifier.Verify(context.Background(), expired)
	require.ErrorIs(t, err, ErrExpiredToken)
}
