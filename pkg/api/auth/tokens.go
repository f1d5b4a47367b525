package auth

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid bearer token")

// Claims identifies the user a bearer token was minted for.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// SignToken mints an HS256 token for userID. A zero ttl never expires.
func SignToken(secret []byte, userID int64, now time.Time, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies raw and returns its claims.
func ParseToken(secret []byte, raw string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, errors.Wrap(ErrInvalidToken, "no signing secret configured")
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse token"), ErrInvalidToken)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
