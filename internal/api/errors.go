package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/digest-api/internal/api/shared"
	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/service"
	"github.com/phrazzld/digest-api/internal/service/auth"
	"github.com/phrazzld/digest-api/internal/store"
)

// MapErrorToStatusCode maps service and store errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrExpiredRefreshToken),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrInsufficientCredits):
		return http.StatusPaymentRequired

	// Another user's resource is reported as missing.
	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	var credits *service.InsufficientCreditsError
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.As(err, &credits):
		return credits.Error()
	case errors.Is(err, service.ErrInsufficientCredits):
		return "Insufficient credits"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"
	case errors.Is(err, auth.ErrExpiredRefreshToken):
		return "Refresh token expired"
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return "Invalid refresh token"
	case errors.Is(err, store.ErrUsernameExists):
		return "Username already registered"
	case errors.Is(err, store.ErrEmailExists):
		return "Email already registered"
	case errors.Is(err, store.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, store.ErrJobNotFound), errors.Is(err, service.ErrNotOwned):
		return "Job not found"
	case errors.Is(err, store.ErrNotificationNotFound):
		return "Notification not found"
	case errors.Is(err, service.ErrInvalidAmount):
		return "Amount must be positive"
	case errors.Is(err, domain.ErrEmptyContent):
		return "Text must not be empty"
	case errors.Is(err, domain.ErrInvalidEmail):
		return "Invalid email format"
	case errors.Is(err, domain.ErrValidation):
		return "Validation error"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and message mapped from err. A non-empty
// message overrides the mapped one.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	if message == "" {
		message = GetSafeErrorMessage(err)
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), message, err)
}

// SanitizeValidationError turns validator errors into a message naming the
// first failing field.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), validationTagMessage(fe.Tag()))
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gt":
		return "must be positive"
	default:
		return "validation failed"
	}
}
