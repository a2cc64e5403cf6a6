package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	token, err := SignSession("user-1", "sess-1", time.Minute)
	require.NoError(t, err)

	claims, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestParseRejectsExpiredAndForeign(t *testing.T) {
	expired, err := Sign("user-1", -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired)
	assert.Error(t, err)

	token, err := Sign("user-1", time.Minute)
	require.NoError(t, err)
	SetSecret("another-secret")
	defer SetSecret(defaultSecret)
	_, err = Parse(token)
	assert.Error(t, err)
}
