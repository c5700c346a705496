package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/indexlab/backend/internal/auth"
	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/logger"
)

type contextKey string

const userContextKey contextKey = "user"

// ContextWithUser attaches the authenticated user to a request context
func ContextWithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, if any
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok
}

// userID returns the authenticated user's id, or zero for anonymous
func userID(r *http.Request) int64 {
	if user, ok := UserFromContext(r.Context()); ok {
		return user.ID
	}
	return 0
}

// AuthHandler handles account registration and token issuance.
type AuthHandler struct {
	users  domain.UserRepository
	issuer *auth.TokenIssuer
	logger *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users domain.UserRepository, issuer *auth.TokenIssuer, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		issuer: issuer,
		logger: log,
	}
}

// tokenResponse is the OAuth2 token payload
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token issues an access token for a password grant
// POST /api/v1/auth/token (form: grant_type, username, password)
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form body")
		return
	}

	grantType := r.PostFormValue("grant_type")
	if grantType != "" && grantType != "password" {
		respondError(w, http.StatusBadRequest, "Unsupported grant type")
		return
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "Incorrect username or password")
			return
		}
		h.logger.WithError(err).Error("Failed to load user")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !user.IsActive || !auth.CheckPassword(password, user.HashedPassword) {
		respondError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := h.issuer.Issue(user.Username)
	if err != nil {
		h.logger.WithError(err).Error("Failed to issue token")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.issuer.Expiry().Seconds()),
	})
}

// registerRequest is the account creation payload
type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Password string `json:"password"`
}

// Register creates a new account
// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var verrs domain.ValidationErrors
	if strings.TrimSpace(req.Username) == "" {
		verrs = append(verrs, domain.FieldError{Field: "username", Message: "must not be empty"})
	}
	if !strings.Contains(req.Email, "@") {
		verrs = append(verrs, domain.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if len(req.Password) < 8 {
		verrs = append(verrs, domain.FieldError{Field: "password", Message: "must be at least 8 characters"})
	}
	if len(verrs) > 0 {
		respondValidationErrors(w, verrs)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user := &domain.User{
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Username:       strings.TrimSpace(req.Username),
		FullName:       req.FullName,
		HashedPassword: hash,
		IsActive:       true,
	}

	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			respondError(w, http.StatusConflict, "Username or email already registered")
			return
		}
		h.logger.WithError(err).Error("Failed to create user")
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusCreated, user)
}
