package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/digest-api/internal/api/shared"
	"github.com/phrazzld/digest-api/internal/service/auth"
)

type stubJWTService struct {
	claims *auth.Claims
	err    error
}

func (s *stubJWTService) GenerateToken(context.Context, int64) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubJWTService) ValidateToken(context.Context, string) (*auth.Claims, error) {
	return s.claims, s.err
}

func (s *stubJWTService) GenerateRefreshToken(context.Context, int64) (string, error) {
	return "", errors.New("not implemented")
}

func (s *stubJWTService) ValidateRefreshToken(context.Context, string) (*auth.Claims, error) {
	return nil, auth.ErrWrongTokenType
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		header     string
		service    *stubJWTService
		wantStatus int
		wantUserID int64
	}{
		{
			name:       "valid token",
			header:     "Bearer good",
			service:    &stubJWTService{claims: &auth.Claims{UserID: 42}},
			wantStatus: http.StatusOK,
			wantUserID: 42,
		},
		{
			name:       "lowercase scheme",
			header:     "bearer good",
			service:    &stubJWTService{claims: &auth.Claims{UserID: 7}},
			wantStatus: http.StatusOK,
			wantUserID: 7,
		},
		{"missing header", "", &stubJWTService{}, http.StatusUnauthorized, 0},
		{"wrong scheme", "Basic abc", &stubJWTService{}, http.StatusUnauthorized, 0},
		{"expired", "Bearer old", &stubJWTService{err: auth.ErrExpiredToken}, http.StatusUnauthorized, 0},
		{"invalid", "Bearer bad", &stubJWTService{err: auth.ErrInvalidToken}, http.StatusUnauthorized, 0},
		{"unexpected", "Bearer x", &stubJWTService{err: errors.New("boom")}, http.StatusInternalServerError, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotUserID int64
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID, _ = shared.UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()

			NewAuthMiddleware(tc.service).Authenticate(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantUserID, gotUserID)
		})
	}
}

func TestTraceMiddleware(t *testing.T) {
	t.Parallel()
	var traceID string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
	})

	NewTraceMiddleware(nil)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, traceID, 32)
}
