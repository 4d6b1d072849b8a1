package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"signquiz-service/internal/domain"
)

func newMockLedger(t *testing.T) (*CoinLedger, sqlmock.Sqlmock) {
	t.Helper()
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return NewCoinLedger(db), mock
}

func TestCoinLedgerGetBalanceDefaultsToZero(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectQuery(`SELECT "balance" FROM "coin_balances"`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	balance, err := ledger.GetBalance(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoinLedgerAddUpserts(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectQuery(`INSERT INTO "coin_balances" .*ON CONFLICT \(user_id\) DO UPDATE SET balance = .*\.balance \+ EXCLUDED\.balance`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(150))

	balance, err := ledger.Add(context.Background(), "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, 150, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoinLedgerRejectsNegativeAmounts(t *testing.T) {
	ledger, mock := newMockLedger(t)

	_, err := ledger.Add(context.Background(), "u1", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = ledger.Subtract(context.Background(), "u1", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoinLedgerSubtractSucceeds(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectQuery(`UPDATE "coin_balances" SET balance = balance - 100.* WHERE .*balance >= 100`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(50))

	balance, err := ledger.Subtract(context.Background(), "u1", 100)
	require.NoError(t, err)
	assert.Equal(t, 50, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoinLedgerSubtractReportsShortfall(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectQuery(`UPDATE "coin_balances" SET balance`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectQuery(`SELECT "balance" FROM "coin_balances"`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(50))

	balance, err := ledger.Subtract(context.Background(), "u1", 100)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, 50, balance)

	var shortfall *domain.InsufficientFundsError
	require.True(t, errors.As(err, &shortfall))
	assert.Equal(t, 100, shortfall.Required)
	assert.Equal(t, 50, shortfall.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoinLedgerZeroDebitNeedsNoRow(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectQuery(`SELECT "balance" FROM "coin_balances"`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	balance, err := ledger.Subtract(context.Background(), "newcomer", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoinLedgerWrapsDriverErrors(t *testing.T) {
	ledger, mock := newMockLedger(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery(`UPDATE "coin_balances" SET balance`).WillReturnError(boom)

	_, err := ledger.Subtract(context.Background(), "u1", 100)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestCoinLedgerIncrementCountsChallenges(t *testing.T) {
	ledger, mock := newMockLedger(t)
	mock.ExpectQuery(`DO UPDATE SET challenges_completed = .*\.challenges_completed \+ 1`).
		WillReturnRows(sqlmock.NewRows([]string{"challenges_completed"}).AddRow(3))

	n, err := ledger.Increment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedQuestionsRunsInTransaction(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO questions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM scenario_questions`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO scenarios`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO scenario_questions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	q := domain.Question{
		ID:         "coffee",
		Prompt:     "Which sign means coffee?",
		Answers:    []domain.Answer{{Text: "coffee", IsCorrect: true}, {Text: "tea"}},
		CoinReward: 50,
	}
	err = SeedQuestions(context.Background(), db, []domain.Question{q},
		[]Scenario{{Name: "cafe", QuestionIDs: []string{"coffee"}}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
