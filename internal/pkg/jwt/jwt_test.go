package jwt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	agentID := uint(7)
	token, err := GenerateAccessToken(3, &agentID, "somchai", "agent", "secret", 5)
	require.NoError(t, err)

	claims, err := ValidateAccessToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.UserID)
	require.NotNil(t, claims.AgentID)
	assert.Equal(t, uint(7), *claims.AgentID)
	assert.Equal(t, "agent", claims.Role)
}

func TestValidateAccessToken_Errors(t *testing.T) {
	token, err := GenerateAccessToken(1, nil, "admin", "admin", "secret", 5)
	require.NoError(t, err)

	_, err = ValidateAccessToken(token, "other-secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired, err := GenerateAccessToken(1, nil, "admin", "admin", "secret", -5)
	require.NoError(t, err)
	_, err = ValidateAccessToken(expired, "secret")
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = ValidateAccessToken("garbage", "secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
