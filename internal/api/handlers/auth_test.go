package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indexlab/backend/internal/auth"
	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/config"
	"github.com/indexlab/backend/pkg/logger"
)

type fakeUsers struct {
	domain.UserRepository
	byUsername map[string]*domain.User
	created    []*domain.User
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	u, ok := f.byUsername[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	if _, exists := f.byUsername[u.Username]; exists {
		return domain.ErrDuplicate
	}
	u.ID = int64(len(f.created) + 1)
	f.created = append(f.created, u)
	return nil
}

func testAuthHandler(t *testing.T) (*AuthHandler, *fakeUsers) {
	t.Helper()

	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)

	users := &fakeUsers{byUsername: map[string]*domain.User{
		"analyst": {ID: 1, Username: "analyst", HashedPassword: hash, IsActive: true},
		"retired": {ID: 2, Username: "retired", HashedPassword: hash, IsActive: false},
	}}

	issuer := auth.NewTokenIssuer(config.AuthConfig{
		Secret:      "test-secret",
		Issuer:      "indexlab",
		TokenExpiry: time.Hour,
	})

	return NewAuthHandler(users, issuer, logger.NewNop()), users
}

func postToken(handler *AuthHandler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.Token(rec, req)
	return rec
}

func TestToken(t *testing.T) {
	handler, _ := testAuthHandler(t)

	rec := postToken(handler, url.Values{
		"grant_type": {"password"},
		"username":   {"analyst"},
		"password":   {"correct-horse"},
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var payload tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.NotEmpty(t, payload.AccessToken)
	assert.Equal(t, "bearer", payload.TokenType)
	assert.Equal(t, int64(3600), payload.ExpiresIn)
}

func TestToken_WrongPassword(t *testing.T) {
	handler, _ := testAuthHandler(t)

	rec := postToken(handler, url.Values{
		"username": {"analyst"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestToken_UnknownUser(t *testing.T) {
	handler, _ := testAuthHandler(t)

	rec := postToken(handler, url.Values{
		"username": {"nobody"},
		"password": {"whatever"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestToken_InactiveUser(t *testing.T) {
	handler, _ := testAuthHandler(t)

	rec := postToken(handler, url.Values{
		"username": {"retired"},
		"password": {"correct-horse"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestToken_UnsupportedGrant(t *testing.T) {
	handler, _ := testAuthHandler(t)

	rec := postToken(handler, url.Values{
		"grant_type": {"client_credentials"},
		"username":   {"analyst"},
		"password":   {"correct-horse"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister(t *testing.T) {
	handler, users := testAuthHandler(t)

	body := `{"email":"new@example.com","username":"newuser","password":"long-enough-pw"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, users.created, 1)
	assert.Equal(t, "newuser", users.created[0].Username)
	assert.NotEqual(t, "long-enough-pw", users.created[0].HashedPassword)
	assert.NotContains(t, rec.Body.String(), "hashed_password")
}

func TestRegister_Invalid(t *testing.T) {
	handler, _ := testAuthHandler(t)

	body := `{"email":"not-an-email","username":"","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload struct {
		Details []domain.FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Details, 3)
}
