// Package auth provides bearer-credential identity for the notes service:
// Ed25519-signed tokens, their verification into an owner identifier, and
// the account surface that issues them.
package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/google/uuid"
)

// Token verification errors. The boundary collapses all of these into one
// generic unauthenticated response; the distinctions exist for logs and
// tests only.
var (
	ErrNoToken          = errors.New("auth: no bearer token provided")
	ErrMalformedToken   = errors.New("auth: malformed bearer token")
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrTokenExpired     = errors.New("auth: token expired")
	ErrTokenNotYetValid = errors.New("auth: token not yet valid")
	ErrInvalidIssuer    = errors.New("auth: invalid token issuer")
)

// DefaultTokenTTL matches the original deployment's one-day tokens.
const DefaultTokenTTL = 24 * time.Hour

// clockSkew is the tolerance for iat checks across machines.
const clockSkew = time.Minute

// KeyPairFromSeed derives an Ed25519 key pair from a 64-hex-character seed.
func KeyPairFromSeed(seedHex string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, nil, fmt.Errorf("decode signing key seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, nil, fmt.Errorf("signing key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return priv, priv.Public().(ed25519.PublicKey), nil
}

// TokenIssuer signs bearer tokens for verified identities.
type TokenIssuer struct {
	issuer     string
	signingKey ed25519.PrivateKey
	ttl        time.Duration
}

// NewTokenIssuer creates a token issuer. ttl of 0 means DefaultTokenTTL.
func NewTokenIssuer(issuer string, signingKey ed25519.PrivateKey, ttl time.Duration) *TokenIssuer {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{issuer: issuer, signingKey: signingKey, ttl: ttl}
}

// Issue signs a token whose subject is ownerID.
func (i *TokenIssuer) Issue(ownerID string) (token string, expiresAt time.Time, err error) {
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.EdDSA,
		Key:       i.signingKey,
	}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: create signer: %w", err)
	}

	now := time.Now().UTC()
	expiresAt = now.Add(i.ttl)
	claims := jwt.Claims{
		Issuer:   i.issuer,
		Subject:  ownerID,
		Expiry:   jwt.NewNumericDate(expiresAt),
		IssuedAt: jwt.NewNumericDate(now),
		ID:       uuid.NewString(),
	}

	token, err = jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return token, expiresAt, nil
}

// TokenVerifier validates bearer credentials and yields the owner
// identifier they carry. It holds no mutable state.
type TokenVerifier struct {
	issuer    string
	publicKey ed25519.PublicKey
}

// NewTokenVerifier creates a verifier for tokens signed by the matching key.
func NewTokenVerifier(issuer string, publicKey ed25519.PublicKey) *TokenVerifier {
	return &TokenVerifier{issuer: issuer, publicKey: publicKey}
}

// Verify checks the credential and returns the stable owner identifier
// used to scope every downstream operation.
//
// Steps: parse, verify Ed25519 signature, check issuer, require and check
// expiry, check issued-at with one minute of clock skew, require subject.
func (v *TokenVerifier) Verify(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrNoToken
	}

	parsed, err := jwt.ParseSigned(credential)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	var claims jwt.Claims
	if err := parsed.Claims(v.publicKey, &claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	now := time.Now()

	if claims.Issuer != v.issuer {
		return "", fmt.Errorf("%w: expected %q, got %q", ErrInvalidIssuer, v.issuer, claims.Issuer)
	}

	if claims.Expiry == nil {
		return "", fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}
	if expiresAt := claims.Expiry.Time(); now.After(expiresAt) {
		return "", fmt.Errorf("%w: expired at %v", ErrTokenExpired, expiresAt)
	}

	if claims.IssuedAt != nil {
		if issuedAt := claims.IssuedAt.Time(); issuedAt.After(now.Add(clockSkew)) {
			return "", fmt.Errorf("%w: issued at %v", ErrTokenNotYetValid, issuedAt)
		}
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrMalformedToken)
	}

	return claims.Subject, nil
}
