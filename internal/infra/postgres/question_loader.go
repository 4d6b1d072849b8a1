package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"signquiz-service/internal/domain"
)

// QuestionLoader loads question JSONB from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadBank(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (l *QuestionLoader) LoadScenario(ctx context.Context, name string) ([]domain.Question, error) {
	var exists bool
	err := l.pool.QueryRow(ctx, `SELECT true FROM scenarios WHERE name=$1`, name).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	rows, err := l.pool.Query(ctx, `
		SELECT q.data
		FROM scenario_questions sq
		JOIN questions q ON q.id = sq.question_id
		WHERE sq.scenario = $1
		ORDER BY sq.position`, name)
	if err != nil {
		return nil, fmt.Errorf("load scenario questions: %w", err)
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func scanQuestions(rows pgx.Rows) ([]domain.Question, error) {
	var out []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return out, nil
}
