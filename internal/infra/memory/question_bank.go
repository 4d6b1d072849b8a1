package memory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"signquiz-service/internal/domain"
)

// Bank is the on-disk question bank: every question once, plus named
// scenarios listing question IDs in play order.
type Bank struct {
	Questions []domain.Question   `yaml:"questions"`
	Scenarios map[string][]string `yaml:"scenarios"`
}

// ReadBankFile parses and validates a YAML question bank.
func ReadBankFile(path string) (Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bank{}, err
	}
	var bank Bank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return Bank{}, fmt.Errorf("parse question bank: %w", err)
	}
	if err := bank.Validate(); err != nil {
		return Bank{}, err
	}
	return bank, nil
}

// Validate checks every question and that scenarios only reference known IDs.
func (b Bank) Validate() error {
	seen := make(map[string]struct{}, len(b.Questions))
	for _, q := range b.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	for name, ids := range b.Scenarios {
		for _, id := range ids {
			if _, ok := seen[id]; !ok {
				return fmt.Errorf("%w: scenario %s references unknown question %s", domain.ErrInvalidQuestion, name, id)
			}
		}
	}
	return nil
}

// StaticQuestionLoader serves a Bank held in memory (useful for tests/demos).
type StaticQuestionLoader struct {
	bank Bank
	byID map[string]domain.Question
}

func NewStaticQuestionLoader(bank Bank) *StaticQuestionLoader {
	byID := make(map[string]domain.Question, len(bank.Questions))
	for _, q := range bank.Questions {
		byID[q.ID] = q
	}
	return &StaticQuestionLoader{bank: bank, byID: byID}
}

func (l *StaticQuestionLoader) LoadBank(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(l.bank.Questions))
	for i, q := range l.bank.Questions {
		out[i] = q.Clone()
	}
	return out, nil
}

func (l *StaticQuestionLoader) LoadScenario(_ context.Context, name string) ([]domain.Question, error) {
	ids, ok := l.bank.Scenarios[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, name)
	}
	out := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.byID[id].Clone())
	}
	return out, nil
}
