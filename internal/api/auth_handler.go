package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/digest-api/internal/api/shared"
	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/service"
)

// UserService is the account surface the auth handlers use.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*service.TokenPair, *domain.User, error)
	Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, *domain.User, error)
	Get(ctx context.Context, userID int64) (*domain.User, error)
}

// AuthHandler handles signup, token issue and refresh, and the current-user
// endpoint.
type AuthHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(users UserService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{users: users, logger: logger.With(slog.String("handler", "auth"))}
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, userToResponse(user))
}

// Token handles POST /api/auth/token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pair, user, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.logger.InfoContext(r.Context(), "tokens issued", slog.Int64("user_id", user.ID))
	shared.RespondWithJSON(w, r, http.StatusOK, tokenResponse(pair))
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pair, user, err := h.users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	h.logger.InfoContext(r.Context(), "tokens refreshed", slog.Int64("user_id", user.ID))
	shared.RespondWithJSON(w, r, http.StatusOK, tokenResponse(pair))
}

func tokenResponse(pair *service.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	}
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}
