package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	token, err := Issue("secret", "seller-1", "s1@campus.edu", time.Hour)
	require.NoError(t, err)

	claims, err := Parse("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "seller-1", claims.UserID)
	assert.Equal(t, "s1@campus.edu", claims.Email)

	unverified, err := Parse("", token)
	require.NoError(t, err)
	assert.Equal(t, "seller-1", unverified.UserID)
}

func TestParseRejects(t *testing.T) {
	good, err := Issue("secret", "seller-1", "", time.Hour)
	require.NoError(t, err)
	expired, err := Issue("secret", "seller-1", "", -time.Minute)
	require.NoError(t, err)
	anonymous, err := Issue("secret", "", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "secret", expired},
		{"expired unverified", "", expired},
		{"missing user id", "secret", anonymous},
		{"garbage", "secret", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.secret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
