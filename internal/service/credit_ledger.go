package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/phrazzld/digest-api/internal/store"
)

// CreditLedger is the only writer of user credit balances.
type CreditLedger struct {
	users    store.UserStore
	emitter  *NotificationEmitter
	tx       store.Transactor
	baseline int
	logger   *slog.Logger
}

// NewCreditLedger creates a ledger. baseline is the balance ResetAll
// restores; tx is used by ResetAll to make the reset atomic.
func NewCreditLedger(
	users store.UserStore,
	emitter *NotificationEmitter,
	tx store.Transactor,
	baseline int,
	logger *slog.Logger,
) *CreditLedger {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreditLedger{
		users:    users,
		emitter:  emitter,
		tx:       tx,
		baseline: baseline,
		logger:   logger.With(slog.String("component", "credit_ledger")),
	}
}

// WithTx returns a ledger whose writes belong to tx.
func (l *CreditLedger) WithTx(tx *sql.Tx) *CreditLedger {
	return &CreditLedger{
		users:    l.users.WithTx(tx),
		emitter:  l.emitter.WithTx(tx),
		tx:       l.tx,
		baseline: l.baseline,
		logger:   l.logger,
	}
}

// Deduct subtracts amount from the user's balance and returns the updated
// user. Balances are not floored at zero here; submission checks the
// balance before a job is admitted.
func (l *CreditLedger) Deduct(ctx context.Context, userID int64, amount int) (*domain.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return l.adjust(ctx, userID, -amount)
}

// Add credits the user's balance.
func (l *CreditLedger) Add(ctx context.Context, userID int64, amount int) (*domain.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return l.adjust(ctx, userID, amount)
}

func (l *CreditLedger) adjust(ctx context.Context, userID int64, delta int) (*domain.User, error) {
	log := logger.FromContextOrDefault(ctx, l.logger)

	user, err := l.users.AdjustCredits(ctx, userID, delta)
	if err != nil {
		log.ErrorContext(ctx, "failed to adjust credits",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID),
			slog.Int("delta", delta))
		return nil, fmt.Errorf("failed to adjust credits: %w", err)
	}

	log.InfoContext(ctx, "credits adjusted",
		slog.Int64("user_id", userID),
		slog.Int("delta", delta),
		slog.Int("balance", user.Credits))
	return user, nil
}

// Balance returns the user's current credits.
func (l *CreditLedger) Balance(ctx context.Context, userID int64) (int, error) {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return user.Credits, nil
}

// ResetResult reports the users whose balance changed during a reset.
type ResetResult struct {
	UsersAffected []int64
}

// ResetAll sets every balance to the baseline and notifies each user whose
// balance changed. The updates and notifications commit together or not at
// all, so rerunning it after a failure is safe; with every balance already
// at the baseline it changes nothing.
func (l *CreditLedger) ResetAll(ctx context.Context) (ResetResult, error) {
	log := logger.FromContextOrDefault(ctx, l.logger)
	message := fmt.Sprintf("Your credits have been reset to %d!", l.baseline)

	var result ResetResult
	err := l.tx.RunInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		ids, err := l.users.WithTx(tx).ResetCredits(ctx, l.baseline)
		if err != nil {
			return fmt.Errorf("failed to reset balances: %w", err)
		}

		emitter := l.emitter.WithTx(tx)
		for _, id := range ids {
			if _, err := emitter.Emit(ctx, id, message, domain.NotificationInfo); err != nil {
				return err
			}
		}

		result.UsersAffected = ids
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "credit reset rolled back", slog.String("error", err.Error()))
		return ResetResult{}, newOperationError("reset_credits", "no balances were changed", err)
	}

	log.InfoContext(ctx, "credits reset",
		slog.Int("baseline", l.baseline),
		slog.Int("users_affected", len(result.UsersAffected)))
	return result, nil
}
