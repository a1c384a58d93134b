package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/digest-api/internal/api/shared"
	"github.com/phrazzld/digest-api/internal/domain"
)

// CreditService reads and tops up balances.
type CreditService interface {
	Balance(ctx context.Context, userID int64) (int, error)
	Add(ctx context.Context, userID int64, amount int) (*domain.User, error)
}

// CreditHandler handles the credit endpoints.
type CreditHandler struct {
	credits CreditService
}

// NewCreditHandler creates a CreditHandler.
func NewCreditHandler(credits CreditService) *CreditHandler {
	return &CreditHandler{credits: credits}
}

// Balance handles GET /api/credits.
func (h *CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	balance, err := h.credits.Balance(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CreditsResponse{Credits: balance})
}

// Add handles POST /api/credits/add.
func (h *CreditHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req AddCreditsRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.credits.Add(r.Context(), userID, req.Amount)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, CreditsResponse{Credits: user.Credits})
}
