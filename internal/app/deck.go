package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"signquiz-service/internal/domain"
)

// Deck deals questions from a loader: shuffled for solo and team play,
// in scenario order for simulations.
type Deck struct {
	loader         QuestionLoader
	shuffleAnswers bool

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewDeck(loader QuestionLoader, shuffleAnswers bool) *Deck {
	return &Deck{
		loader:         loader,
		shuffleAnswers: shuffleAnswers,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetRandomized returns the whole bank in random order.
func (d *Deck) GetRandomized(ctx context.Context) ([]domain.Question, error) {
	bank, err := d.loader.LoadBank(ctx)
	if err != nil {
		return nil, err
	}
	if len(bank) == 0 {
		return nil, domain.ErrEmptyQuestionSet
	}

	questions := cloneAll(bank)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rnd.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	if d.shuffleAnswers {
		for _, q := range questions {
			d.rnd.Shuffle(len(q.Answers), func(i, j int) {
				q.Answers[i], q.Answers[j] = q.Answers[j], q.Answers[i]
			})
		}
	}
	return questions, nil
}

// GetSequential returns a named scenario in its fixed order.
func (d *Deck) GetSequential(ctx context.Context, scenario string) ([]domain.Question, error) {
	questions, err := d.loader.LoadScenario(ctx, scenario)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, domain.ErrEmptyQuestionSet
	}
	return cloneAll(questions), nil
}

func cloneAll(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	for i, q := range in {
		out[i] = q.Clone()
	}
	return out
}
