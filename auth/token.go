package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"storerate/apperr"
)

// ErrInvalidToken signals a missing, malformed, expired or forged token.
var ErrInvalidToken = apperr.New(apperr.KindUnauthenticated, "Not authorized, token failed")

// Claims is the token payload: {id, role, name} plus registered claims.
type Claims struct {
	UserID int64  `json:"id"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Identity returns the caller identity carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.UserID, Role: c.Role, Name: c.Name}
}

// IssueToken creates a signed, time-limited token for the user.
func (s *Service) IssueToken(user User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyToken validates a token and returns its claims.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: invalid role %q", ErrInvalidToken, claims.Role)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: invalid user id", ErrInvalidToken)
	}

	return claims, nil
}

// TokenTTL reports how long issued tokens stay valid.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
