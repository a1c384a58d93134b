package api

import (
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
)

// SignupRequest is the payload for POST /api/auth/signup.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// TokenRequest is the payload for POST /api/auth/token.
type TokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the payload for POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse carries an access and refresh token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

// CreditsResponse reports a balance.
type CreditsResponse struct {
	Credits int `json:"credits"`
}

// AddCreditsRequest is the payload for POST /api/credits/add.
type AddCreditsRequest struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

// CreateJobRequest is the payload for POST /api/jobs.
type CreateJobRequest struct {
	Text string `json:"text" validate:"required"`
}

// JobResponse is the public view of a job. OutputText is null until the
// job reaches a terminal status.
type JobResponse struct {
	ID         int64     `json:"id"`
	Status     string    `json:"status"`
	InputText  string    `json:"input_text"`
	OutputText *string   `json:"output_text"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NotificationResponse is the public view of a notification.
type NotificationResponse struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func userToResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Credits:   u.Credits,
		CreatedAt: u.CreatedAt,
	}
}

func jobToResponse(j *domain.Job) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Status:     string(j.Status),
		InputText:  j.InputText,
		OutputText: j.OutputText,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}

func notificationToResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}
