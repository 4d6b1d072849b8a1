package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"

	"signquiz-service/internal/domain"
)

// Scenario is an ordered list of question IDs played in simulation mode.
type Scenario struct {
	Name        string
	QuestionIDs []string
}

// SeedQuestions upserts the question bank and replaces the given scenarios in one transaction.
func SeedQuestions(ctx context.Context, db *bun.DB, questions []domain.Question, scenarios []Scenario) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, q := range questions {
			data, err := json.Marshal(q)
			if err != nil {
				return fmt.Errorf("marshal question %s: %w", q.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO questions (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
				q.ID, string(data)); err != nil {
				return fmt.Errorf("upsert question %s: %w", q.ID, err)
			}
		}
		for _, sc := range scenarios {
			if _, err := tx.ExecContext(ctx, `DELETE FROM scenario_questions WHERE scenario = ?`, sc.Name); err != nil {
				return fmt.Errorf("clear scenario %s: %w", sc.Name, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO scenarios (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, sc.Name); err != nil {
				return fmt.Errorf("upsert scenario %s: %w", sc.Name, err)
			}
			for i, id := range sc.QuestionIDs {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO scenario_questions (scenario, position, question_id) VALUES (?, ?, ?)`,
					sc.Name, i, id); err != nil {
					return fmt.Errorf("add %s to scenario %s: %w", id, sc.Name, err)
				}
			}
		}
		return nil
	})
}
