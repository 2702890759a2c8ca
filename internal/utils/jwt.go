package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload of a session token.  Subject carries the user id
// and ID (jti) the session identifier stored alongside the token.
type Claims struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject back into a numeric id.
func (c *Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// SessionToken is a signed JWT plus the values the session row needs.
type SessionToken struct {
	Token     string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewSessionToken signs an HS256 JWT for a user valid for ttl from now.
func NewSessionToken(secret string, userID uint64, login, name, role string, ttl time.Duration, now time.Time) (SessionToken, error) {
	now = now.UTC().Truncate(time.Second)
	exp := now.Add(ttl)
	jti := uuid.NewString()
	claims := Claims{
		Login: login,
		Name:  name,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, SessionID: jti, IssuedAt: now, ExpiresAt: exp}, nil
}

// ErrInvalidToken covers bad signatures, malformed tokens and expiry.
var ErrInvalidToken = errors.New("invalid token")

// ParseToken verifies signature, algorithm and expiry and returns the claims.
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashToken returns the SHA-256 hex digest of a raw token.  It keys cache
// entries so that raw tokens never leave the database.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// PeekClaims decodes the claims without verifying the signature.  It is only
// fit for labelling audit records of a token whose validity was already
// decided elsewhere.
func PeekClaims(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
