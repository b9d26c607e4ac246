package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/candidate"
	"github.com/garnizeh/recruiter/internal/validation"
	"github.com/garnizeh/recruiter/pkg/models"
	"github.com/garnizeh/recruiter/pkg/repository"
)

type AuthHandler struct {
	users         repository.UserRepo
	profiles      *candidate.Service
	jwtSecret     string
	tokenDuration time.Duration
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(users repository.UserRepo, profiles *candidate.Service, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{users: users, profiles: profiles, jwtSecret: jwtSecret, tokenDuration: tokenDuration}
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token  string   `json:"token"`
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// Signup registers a candidate account with its profile and candidate record.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	existing, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if existing != nil {
		writeError(w, r, apperr.E(apperr.ErrConflict, "email already registered"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Roles:        []string{models.RoleCandidate},
	}
	if err := h.users.CreateUser(ctx, u); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.profiles.GetOrCreateProfile(ctx, u.ID, req.Name, u.Email, u.Roles)
	if err != nil {
		h.discardUser(ctx, u.ID)
		writeError(w, r, err)
		return
	}
	if _, err := h.profiles.EnsureCandidate(ctx, p.ID); err != nil {
		if derr := h.profiles.DiscardProfile(ctx, p.ID); derr != nil {
			logger.Error("signup: discard profile", slog.String("profile_id", p.ID), slog.String("error", derr.Error()))
		}
		h.discardUser(ctx, u.ID)
		writeError(w, r, err)
		return
	}
	logger.Info("user signed up", slog.String("user_id", u.ID))

	h.respondToken(w, r, u, http.StatusCreated)
}

// discardUser backs out a signup whose profile could not be set up, so the
// email can register again.
func (h *AuthHandler) discardUser(ctx context.Context, userID string) {
	if err := h.users.DeleteUser(ctx, userID); err != nil {
		logger.Error("signup: discard user", slog.String("user_id", userID), slog.String("error", err.Error()))
	}
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, r, apperr.E(apperr.ErrUnauthorized, "invalid credentials"))
		return
	}

	h.respondToken(w, r, u, http.StatusOK)
}

func (h *AuthHandler) respondToken(w http.ResponseWriter, r *http.Request, u *models.User, status int) {
	tok, err := IssueToken(h.jwtSecret, h.tokenDuration, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, authResponse{Token: tok, UserID: u.ID, Roles: u.Roles}, status)
}

func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	// For stateless JWT, signout is client-side (just delete token)
	writeJSON(w, map[string]string{"message": "signed out"}, http.StatusOK)
}

// Me returns the caller's token claims.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	writeJSON(w, map[string]any{"user_id": c.UserID, "email": c.Email, "roles": c.Roles}, http.StatusOK)
}

type rolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,oneof=Admin Recruiter Candidate"`
}

// SetRoles replaces a user's roles. Admin only.
func (h *AuthHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	var req rolesRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(&req); err != nil {
		writeError(w, r, err)
		return
	}

	ctx := r.Context()
	id := mux.Vars(r)["id"]
	u, err := h.users.GetUserByID(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if u == nil {
		writeError(w, r, apperr.E(apperr.ErrNotFound, "user not found"))
		return
	}
	if err := h.users.UpdateUserRoles(ctx, id, req.Roles); err != nil {
		writeError(w, r, err)
		return
	}
	logger.Info("roles updated", slog.String("user_id", id), slog.Any("roles", req.Roles))
	writeJSON(w, map[string]any{"user_id": id, "roles": req.Roles}, http.StatusOK)
}
