package access

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenLifetime is the validity of issued tokens
const TokenLifetime = 24 * time.Hour

// Claims are the claims of issued tokens
type Claims struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 signed JWTs
type Tokens struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewTokens returns a token issuer for the secret
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), lifetime: TokenLifetime, now: time.Now}
}

// Issue creates a signed token for the requester
func (t *Tokens) Issue(r *Requester) (string, error) {
	if len(t.secret) == 0 {
		return "", errors.New("no token secret configured")
	}
	now := t.now()
	claims := Claims{
		ID:    r.ID,
		Email: r.Email,
		Role:  r.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(r.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(t.secret)
}

// Parse verifies a token and returns its claims. Only HS256 is accepted.
func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	if len(t.secret) == 0 {
		return nil, errors.New("no token secret configured")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
