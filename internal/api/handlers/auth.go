package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/finsight-app/finsight/internal/api/middleware"
	"github.com/finsight-app/finsight/internal/infra/bigquery"
)

// AuthHandler handles registration, login, and profile endpoints.
type AuthHandler struct {
	users    bigquery.UserStore
	secret   string
	tokenTTL time.Duration
	log      zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(users bigquery.UserStore, secret string, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		secret:   secret,
		tokenTTL: middleware.DefaultTokenTTL,
		log:      log,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name, email, and password are required")
		return
	}
	if len(req.Password) < 6 {
		middleware.WriteError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	existing, err := h.users.FindUserByEmail(ctx, req.Email)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to check existing user")
		middleware.WriteError(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	if existing != nil {
		middleware.WriteError(w, http.StatusConflict, "An account with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to hash password")
		middleware.WriteError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	user := &bigquery.UserRow{
		UserID:       uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedTS:    time.Now(),
	}
	if err := h.users.InsertUser(ctx, user); err != nil {
		h.log.Error().Err(err).Msg("Failed to insert user")
		middleware.WriteError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	token, err := middleware.IssueToken(user.UserID, h.secret, h.tokenTTL)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to issue token")
		middleware.WriteError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.users.FindUserByEmail(ctx, req.Email)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to look up user")
		middleware.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if user == nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := middleware.IssueToken(user.UserID, h.secret, h.tokenTTL)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to issue token")
		middleware.WriteError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// GetProfile handles GET /api/users/profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get user")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	if user == nil {
		middleware.WriteError(w, http.StatusNotFound, "User not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, user)
}

type profileUpdateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateProfile handles PUT /api/users/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get user")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	if user == nil {
		middleware.WriteError(w, http.StatusNotFound, "User not found")
		return
	}

	if req.Email != user.Email {
		other, err := h.users.FindUserByEmail(ctx, req.Email)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to check email availability")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to update profile")
			return
		}
		if other != nil {
			middleware.WriteError(w, http.StatusConflict, "An account with this email already exists")
			return
		}
	}

	if err := h.users.UpdateUser(ctx, userID, req.Name, req.Email); err != nil {
		h.log.Error().Err(err).Msg("Failed to update user")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	user.Name = req.Name
	user.Email = req.Email
	middleware.WriteJSON(w, http.StatusOK, user)
}
