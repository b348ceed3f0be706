package quota

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/cardsum/cardsum_service/internal/model"
)

var ErrInsufficientQuota = errors.New("insufficient points")

// Ledger tracks per-user generation points. Deduct and Add are single
// UPDATE statements so concurrent requests against the same account
// cannot lose updates; the guard column doubles as the CAS condition.
type Ledger struct {
	db *sqlx.DB
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// Deduct takes points from the account. Returns the new remaining balance,
// or ErrInsufficientQuota when the balance is short. The WHERE clause
// rejects the update instead of clamping at zero.
func (l *Ledger) Deduct(ctx context.Context, userID int64, points int) (int, error) {
	res, err := l.db.ExecContext(ctx, `
		UPDATE quota_accounts
		SET remaining_points = remaining_points - ?,
			used_points = used_points + ?,
			last_usage_time = NOW(),
			updated_at = NOW()
		WHERE user_id = ? AND remaining_points >= ?`,
		points, points, userID, points)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrInsufficientQuota
	}

	var remaining int
	if err := l.db.GetContext(ctx, &remaining,
		`SELECT remaining_points FROM quota_accounts WHERE user_id = ?`, userID); err != nil {
		return 0, err
	}
	return remaining, nil
}

// Add puts points back on the account. Only used as the compensating
// action after a downstream failure, never as a top-up.
func (l *Ledger) Add(ctx context.Context, userID int64, points int) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE quota_accounts
		SET remaining_points = remaining_points + ?, updated_at = NOW()
		WHERE user_id = ?`,
		points, userID)
	return err
}

// Grant creates the account with an initial balance if it does not exist.
// Called on first login; re-login keeps the existing balance.
func (l *Ledger) Grant(ctx context.Context, userID int64, points int) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO quota_accounts (user_id, remaining_points, used_points, created_at, updated_at)
		VALUES (?, ?, 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE user_id = user_id`,
		userID, points)
	return err
}

func (l *Ledger) Get(ctx context.Context, userID int64) (model.QuotaAccount, error) {
	var acc model.QuotaAccount
	err := l.db.GetContext(ctx, &acc, `
		SELECT id, user_id, remaining_points, used_points, last_usage_time, created_at, updated_at
		FROM quota_accounts WHERE user_id = ?`, userID)
	return acc, err
}
