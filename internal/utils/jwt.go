package utils // package utils provides helper functions for token creation, hashing and money

import (
	"crypto/sha256" // SHA‑256 hashing for refresh tokens
	"encoding/hex"  // hex encoding of the digest
	"errors"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // unique jti per refresh token

	"github.com/iliyamo/cliora-storefront/internal/model"
)

// Audiences keep the two token kinds apart: an access token is rejected where
// a refresh token is expected and vice versa.
const (
	audienceAccess  = "access"
	audienceRefresh = "refresh"
	issuer          = "cliora-api"
)

// ErrInvalidToken is returned for any token that fails signature, audience or
// expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the payload of an access token: {id, role, email}.
type AccessClaims struct {
	UserID uint64 `json:"id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token: {id} plus a unique jti.
type RefreshClaims struct {
	UserID uint64 `json:"id"`
	jwt.RegisteredClaims
}

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short‑lived and sent in the Authorization header when
// calling protected endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long‑lived token used to obtain new access
// tokens.  Raw is returned to the client in an HTTP-only cookie; in the
// database only a SHA‑256 hash of Raw is stored.
type RefreshToken struct {
	Raw string    // signed token string returned to the client
	Exp time.Time // UTC expiration time
}

// TokenIssuer signs and verifies both token kinds with one HS256 secret.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer returns an issuer for the given secret and lifetimes.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source; tests use it to move past expiry.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *t
	cp.now = now
	return &cp
}

// RefreshTTL is the lifetime given to refresh tokens and their cookie.
func (t *TokenIssuer) RefreshTTL() time.Duration { return t.refreshTTL }

// NewAccessToken builds and signs an access token carrying the user's id,
// role and email.
func (t *TokenIssuer) NewAccessToken(userID uint64, role model.Role, email string) (AccessToken, error) {
	now := t.now()
	exp := now.Add(t.accessTTL)
	claims := AccessClaims{
		UserID: userID,
		Role:   string(role),
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audienceAccess},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken signs a refresh token for the user.  Each token gets a
// random jti so two tokens issued within the same second never collide on
// their stored hash.
func (t *TokenIssuer) NewRefreshToken(userID uint64) (RefreshToken, error) {
	now := t.now()
	exp := now.Add(t.refreshTTL)
	claims := RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audienceRefresh},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: signed, Exp: exp}, nil
}

// ParseAccess verifies an access token and returns the identity it carries.
func (t *TokenIssuer) ParseAccess(raw string) (model.Identity, error) {
	var claims AccessClaims
	if err := t.parse(raw, &claims, audienceAccess); err != nil {
		return model.Identity{}, err
	}
	if claims.UserID == 0 {
		return model.Identity{}, ErrInvalidToken
	}
	return model.Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   model.ParseRole(claims.Role),
	}, nil
}

// ParseRefresh verifies a refresh token's signature and expiry and returns
// the user id it was issued to.  Revocation is checked by the caller against
// storage.
func (t *TokenIssuer) ParseRefresh(raw string) (uint64, error) {
	var claims RefreshClaims
	if err := t.parse(raw, &claims, audienceRefresh); err != nil {
		return 0, err
	}
	if claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

func (t *TokenIssuer) parse(raw string, claims jwt.Claims, audience string) error {
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	return nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.  Storing only the hash in the database prevents attackers from
// using stolen database entries to refresh sessions.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
