package identity

import (
	"context"
	"errors"
	"log"
)

var (
	// ErrInsufficientAuth is returned when a handshake carries neither a
	// verifiable token nor a claimed user id. It is the only error that
	// terminates a connection attempt.
	ErrInsufficientAuth = errors.New("insufficient authentication")
	// ErrTokenRejected is returned by a failed post-handshake re-authentication.
	ErrTokenRejected = errors.New("token rejected")
)

// TrustLevel says whether a connection's identity was cryptographically
// verified or merely asserted by the client.
type TrustLevel string

const (
	TrustNone       TrustLevel = "none"
	TrustUnverified TrustLevel = "unverified"
	TrustVerified   TrustLevel = "verified"
)

// PlaceholderUsername is used when no display name is known for a connection.
const PlaceholderUsername = "Usuario"

// Credentials are the handshake inputs supplied with a connection attempt.
type Credentials struct {
	Token           string
	ClaimedUserID   string
	ClaimedUsername string
}

// Identity is the trust-annotated result of resolving handshake credentials.
type Identity struct {
	UserID   string
	Username string
	Role     string
	Trust    TrustLevel
}

// Claims is what the token verifier extracts from a valid token.
type Claims struct {
	UserID   string
	Username string
	Role     string
}

// TokenVerifier is the black-box token verification collaborator.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// Resolver classifies handshake credentials into a trust-annotated identity.
type Resolver struct {
	verifier TokenVerifier
}

func NewResolver(verifier TokenVerifier) *Resolver {
	return &Resolver{verifier: verifier}
}

// Resolve prefers a verified token but falls back to a bare claimed id so
// older clients keep working. A token that fails verification only rejects
// the handshake when no claimed id is available as fallback.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (Identity, error) {
	if creds.Token != "" {
		claims, err := r.verifier.Verify(ctx, creds.Token)
		if err == nil && claims.UserID != "" {
			return Identity{
				UserID:   claims.UserID,
				Username: claims.Username,
				Role:     claims.Role,
				Trust:    TrustVerified,
			}, nil
		}
		if err != nil {
			log.Printf("identity: token verification failed: %v", err)
		}
	}

	if creds.ClaimedUserID != "" {
		username := creds.ClaimedUsername
		if username == "" {
			username = PlaceholderUsername
		}
		return Identity{
			UserID:   creds.ClaimedUserID,
			Username: username,
			Trust:    TrustUnverified,
		}, nil
	}

	return Identity{Trust: TrustNone}, ErrInsufficientAuth
}

// Reauth handles a post-handshake token_updated event. On success the caller
// upgrades the connection identity in place; on failure the existing trust
// level is retained and the client is signaled, the connection is not dropped.
func (r *Resolver) Reauth(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrTokenRejected
	}
	claims, err := r.verifier.Verify(ctx, token)
	if err != nil || claims.UserID == "" {
		return Identity{}, ErrTokenRejected
	}
	return Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		Trust:    TrustVerified,
	}, nil
}
