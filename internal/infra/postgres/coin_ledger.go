package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"signquiz-service/internal/domain"
)

// CoinLedger keeps balances in the coin_balances table. Both mutations are
// single UPDATE/UPSERT statements, and the CHECK constraint plus the guarded
// WHERE clause keep balances from going negative.
type CoinLedger struct {
	db *bun.DB
}

type coinBalance struct {
	bun.BaseModel `bun:"table:coin_balances,alias:cb"`

	UserID              string `bun:"user_id,pk"`
	Balance             int    `bun:"balance"`
	ChallengesCompleted int    `bun:"challenges_completed"`
}

func NewCoinLedger(db *bun.DB) *CoinLedger {
	return &CoinLedger{db: db}
}

func (l *CoinLedger) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := l.db.NewSelect().Table("coin_balances").Column("balance").
		Where("user_id = ?", userID).
		Scan(ctx, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (l *CoinLedger) Add(ctx context.Context, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidAmount
	}
	row := &coinBalance{UserID: userID, Balance: amount}
	_, err := l.db.NewInsert().Model(row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("balance = ?TableAlias.balance + EXCLUDED.balance").
		Set("updated_at = now()").
		Returning("balance").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("add coins: %w", err)
	}
	return row.Balance, nil
}

func (l *CoinLedger) Subtract(ctx context.Context, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidAmount
	}
	// a zero debit always succeeds, even for a user without a row
	if amount == 0 {
		return l.GetBalance(ctx, userID)
	}
	var balance int
	err := l.db.NewUpdate().Table("coin_balances").
		Set("balance = balance - ?", amount).
		Set("updated_at = now()").
		Where("user_id = ?", userID).
		Where("balance >= ?", amount).
		Returning("balance").
		Scan(ctx, &balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("subtract coins: %w", err)
	}

	available, err := l.GetBalance(ctx, userID)
	if err != nil {
		return 0, err
	}
	return available, &domain.InsufficientFundsError{Required: amount, Available: available}
}

// Increment counts a completed challenge for userID.
func (l *CoinLedger) Increment(ctx context.Context, userID string) (int, error) {
	row := &coinBalance{UserID: userID, ChallengesCompleted: 1}
	_, err := l.db.NewInsert().Model(row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("challenges_completed = ?TableAlias.challenges_completed + 1").
		Set("updated_at = now()").
		Returning("challenges_completed").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("increment challenges: %w", err)
	}
	return row.ChallengesCompleted, nil
}
