// Package token mints and verifies the signed credentials of the auth
// subsystem: short-lived stateless access tokens, long-lived store-backed
// refresh tokens, and random single-use tokens for email verification and
// password reset.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/coursehub/apiserver/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any cryptographic, expiry, or claim
// failure during verification. Callers get no finer-grained detail.
var ErrInvalidToken = errors.New("invalid token")

// Pair bundles a freshly minted access and refresh token.
type Pair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	IssuedAt     time.Time `json:"-"`
	ExpiresAt    time.Time `json:"-"`
}

// Issuer signs and verifies access and refresh tokens. The two token
// classes use separate secrets so that leaking one cannot be used to
// mint the other.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewIssuer validates the signing configuration and constructs an Issuer.
func NewIssuer(cfg config.AuthConfig) (*Issuer, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if access == "" || refresh == "" {
		return nil, errors.New("access and refresh signing secrets are required")
	}
	if access == refresh {
		return nil, errors.New("access and refresh signing secrets must differ")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &Issuer{
		accessSecret:  []byte(access),
		refreshSecret: []byte(refresh),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
	}, nil
}

// IssuePair mints a new access/refresh token pair for the user. The
// returned IssuedAt/ExpiresAt describe the refresh token, which the
// caller must persist for the dual-check in VerifyRefresh to hold.
func (i *Issuer) IssuePair(userID string, now time.Time) (Pair, error) {
	accessToken, err := sign(userID, i.accessSecret, now, i.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refreshToken, err := sign(userID, i.refreshSecret, now, i.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IssuedAt:     now,
		ExpiresAt:    now.Add(i.refreshTTL),
	}, nil
}

// VerifyAccess checks signature and expiry against the access secret and
// returns the embedded user id.
func (i *Issuer) VerifyAccess(tokenString string) (string, error) {
	return parseSubject(tokenString, i.accessSecret)
}

// VerifyRefresh checks signature and expiry against the refresh secret
// and returns the embedded user id. A valid signature alone is not
// sufficient for rotation; the token must also still be present in the
// credential store.
func (i *Issuer) VerifyRefresh(tokenString string) (string, error) {
	return parseSubject(tokenString, i.refreshSecret)
}

func sign(userID string, secret []byte, now time.Time, ttl time.Duration) (string, error) {
	// The jti keeps two tokens minted for one user within the same
	// second from colliding, which matters because refresh tokens are
	// persisted verbatim under a unique constraint.
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
