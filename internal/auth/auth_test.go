package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	s := NewService("secret")
	token, err := s.GenerateToken("ops-1", RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops-1", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestValidateToken_Rejects(t *testing.T) {
	s := NewService("secret")

	expired, err := s.GenerateToken("p1", RoleParticipant, -time.Minute)
	require.NoError(t, err)
	_, err = s.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewService("other").GenerateToken("p1", RoleParticipant, time.Hour)
	require.NoError(t, err)
	_, err = s.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "root", RegisteredClaims: jwt.RegisteredClaims{
		Subject: "x", Issuer: "championship-engine", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	signed, err := forged.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = s.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.GenerateToken("x", "root", time.Hour)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestRoleAllows(t *testing.T) {
	assert.True(t, RoleAdmin.Allows(RoleService))
	assert.True(t, RoleService.Allows(RoleParticipant))
	assert.False(t, RoleService.Allows(RoleAdmin))
	assert.False(t, RoleParticipant.Allows(RoleService))
	assert.False(t, Role("").Allows(RoleParticipant))
}
