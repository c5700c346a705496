package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlab/backend/pkg/config"
)

func testIssuer(expiry time.Duration) *TokenIssuer {
	return NewTokenIssuer(config.AuthConfig{
		Secret:      "test-secret-key",
		Issuer:      "indexlab",
		TokenExpiry: expiry,
	})
}

func TestIssueAndVerify(t *testing.T) {
	issuer := testIssuer(time.Hour)

	token, err := issuer.Issue("analyst")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "analyst", subject)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := testIssuer(time.Hour).Issue("analyst")
	require.NoError(t, err)

	other := NewTokenIssuer(config.AuthConfig{
		Secret:      "a-different-secret",
		Issuer:      "indexlab",
		TokenExpiry: time.Hour,
	})

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongIssuer(t *testing.T) {
	token, err := NewTokenIssuer(config.AuthConfig{
		Secret:      "test-secret-key",
		Issuer:      "someone-else",
		TokenExpiry: time.Hour,
	}).Issue("analyst")
	require.NoError(t, err)

	_, err = testIssuer(time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	issuer := testIssuer(-time.Minute)

	token, err := issuer.Issue("analyst")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	_, err := testIssuer(time.Hour).Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pw")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pw", hash)

	assert.True(t, CheckPassword("s3cret-pw", hash))
	assert.False(t, CheckPassword("wrong", hash))
	assert.False(t, CheckPassword("s3cret-pw", "not-a-hash"))
}
