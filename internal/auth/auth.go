package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	// RoleAdmin may run every tournament command, overrides included.
	RoleAdmin Role = "admin"
	// RoleService is a collaborator: game rooms, presence, registration.
	RoleService Role = "service"
	// RoleParticipant may only read and follow the live feed.
	RoleParticipant Role = "participant"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUnknownRole  = errors.New("unknown role")
)

// Claims are the JWT claims of an API caller.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and validates API tokens.
type Service struct {
	jwtSecret []byte
	issuer    string
}

// NewService creates a token service using an HMAC secret.
func NewService(secret string) *Service {
	return &Service{jwtSecret: []byte(secret), issuer: "championship-engine"}
}

// GenerateToken signs a token for subject with the given role.
func (s *Service) GenerateToken(subject string, role Role, ttl time.Duration) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses tokenString and rejects bad signatures or claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(s.issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleService, RoleParticipant:
		return true
	}
	return false
}

// Allows reports whether r satisfies a requirement of at least need.
// Admin satisfies everything; service satisfies participant.
func (r Role) Allows(need Role) bool {
	return r.rank() >= need.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleService:
		return 2
	case RoleParticipant:
		return 1
	}
	return 0
}
