package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/service"
	"github.com/phrazzld/digest-api/internal/service/auth"
)

type fakeUserService struct {
	RefreshFn func(ctx context.Context, refreshToken string) (*service.TokenPair, *domain.User, error)
}

func (f *fakeUserService) Register(context.Context, string, string, string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserService) Login(context.Context, string, string) (*service.TokenPair, *domain.User, error) {
	return nil, nil, errors.New("not implemented")
}

func (f *fakeUserService) Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, *domain.User, error) {
	return f.RefreshFn(ctx, refreshToken)
}

func (f *fakeUserService) Get(context.Context, int64) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func TestAuthHandler_Refresh(t *testing.T) {
	t.Parallel()

	const validRefresh = "valid-refresh-token"
	user := &domain.User{ID: 7, Username: "alice"}

	tests := []struct {
		name       string
		payload    map[string]any
		refreshErr error
		wantStatus int
		wantError  string
	}{
		{
			name:       "valid refresh token",
			payload:    map[string]any{"refresh_token": validRefresh},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing refresh token",
			payload:    map[string]any{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid refresh token",
			payload:    map[string]any{"refresh_token": "garbage"},
			refreshErr: auth.ErrInvalidRefreshToken,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid refresh token",
		},
		{
			name:       "expired refresh token",
			payload:    map[string]any{"refresh_token": "expired"},
			refreshErr: auth.ErrExpiredRefreshToken,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Refresh token expired",
		},
		{
			name:       "access token in place of refresh token",
			payload:    map[string]any{"refresh_token": "access"},
			refreshErr: auth.ErrWrongTokenType,
			wantStatus: http.StatusUnauthorized,
			wantError:  "Invalid token",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			users := &fakeUserService{
				RefreshFn: func(_ context.Context, token string) (*service.TokenPair, *domain.User, error) {
					if tc.refreshErr != nil {
						return nil, nil, tc.refreshErr
					}
					require.Equal(t, validRefresh, token)
					return &service.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}, user, nil
				},
			}
			h := NewAuthHandler(users, slog.New(slog.NewTextHandler(io.Discard, nil)))

			body, err := json.Marshal(tc.payload)
			require.NoError(t, err)
			req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			h.Refresh(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusOK {
				var resp TokenResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "new-access", resp.AccessToken)
				assert.Equal(t, "new-refresh", resp.RefreshToken)
				assert.Equal(t, "bearer", resp.TokenType)
				return
			}
			if tc.wantError != "" {
				var resp map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tc.wantError, resp["error"])
			}
		})
	}
}
