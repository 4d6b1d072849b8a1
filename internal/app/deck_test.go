package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signquiz-service/internal/app"
	"signquiz-service/internal/domain"
	"signquiz-service/internal/infra/memory"
)

func TestDeckSequentialKeepsScenarioOrder(t *testing.T) {
	deck := app.NewDeck(memory.NewStaticQuestionLoader(testBank()), true)

	questions, err := deck.GetSequential(context.Background(), "greetings")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "hello", questions[0].ID)
	assert.Equal(t, "thanks", questions[1].ID)
	// answers keep their authored order in simulations
	assert.Equal(t, 1, questions[0].CorrectIndex())
}

func TestDeckRandomizedDealsWholeBank(t *testing.T) {
	deck := app.NewDeck(memory.NewStaticQuestionLoader(testBank()), true)

	questions, err := deck.GetRandomized(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 2)

	ids := []string{questions[0].ID, questions[1].ID}
	assert.ElementsMatch(t, []string{"hello", "thanks"}, ids)
	for _, q := range questions {
		require.NoError(t, q.Validate(), "shuffling must keep exactly one correct answer")
	}
}

func TestDeckReturnsCopies(t *testing.T) {
	loader := memory.NewStaticQuestionLoader(testBank())
	deck := app.NewDeck(loader, false)

	questions, err := deck.GetSequential(context.Background(), "greetings")
	require.NoError(t, err)
	questions[0].Answers[0].IsCorrect = true

	again, err := deck.GetSequential(context.Background(), "greetings")
	require.NoError(t, err)
	assert.False(t, again[0].Answers[0].IsCorrect)
}

func TestDeckErrors(t *testing.T) {
	ctx := context.Background()
	empty := app.NewDeck(memory.NewStaticQuestionLoader(memory.Bank{
		Scenarios: map[string][]string{"nothing": nil},
	}), false)

	_, err := empty.GetRandomized(ctx)
	assert.ErrorIs(t, err, domain.ErrEmptyQuestionSet)
	_, err = empty.GetSequential(ctx, "nothing")
	assert.ErrorIs(t, err, domain.ErrEmptyQuestionSet)
	_, err = empty.GetSequential(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrScenarioNotFound)
}
