package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateToken("secret", userID, "admin", time.Hour)
	require.NoError(t, err)

	parsedID, role, err := ParseToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, userID, parsedID)
	assert.Equal(t, "admin", role)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", uuid.New(), "customer", time.Hour)
	require.NoError(t, err)

	_, _, err = ParseToken("another-secret", token)
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("secret", uuid.New(), "customer", -time.Minute)
	require.NoError(t, err)

	_, _, err = ParseToken("secret", token)
	assert.Error(t, err)
}

func TestRound2(t *testing.T) {
	assert.InDelta(t, 230.0, Round2(229.999999), 0.0001)
	assert.InDelta(t, 19.99, Round2(19.994), 0.0001)
	assert.InDelta(t, 20.0, Round2(19.996), 0.0001)
	assert.InDelta(t, 0.0, Round2(0), 0.0001)
}
