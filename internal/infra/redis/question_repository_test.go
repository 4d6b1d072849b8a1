package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"signquiz-service/internal/domain"
	"signquiz-service/internal/infra/memory"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{StaticQuestionLoader: memory.NewStaticQuestionLoader(sampleBank())}
	repo := NewQuestionRepository(client, loader, time.Minute)

	bank, err := repo.LoadBank(context.Background())
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	if len(bank) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(bank))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("questions:bank") {
		t.Fatalf("expected bank cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	cached, _ := repo.LoadBank(context.Background())
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached[0].Answers[1].Text != "Coffee" || !cached[0].Answers[1].IsCorrect {
		t.Fatalf("cached question lost content: %+v", cached[0])
	}
}

func TestQuestionRepositoryScenarioMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewQuestionRepository(newClient(mr), memory.NewStaticQuestionLoader(sampleBank()), time.Minute)
	if _, err := repo.LoadScenario(context.Background(), "airport"); !errors.Is(err, domain.ErrScenarioNotFound) {
		t.Fatalf("expected scenario not found, got %v", err)
	}
	if mr.Exists("questions:scenario:airport") {
		t.Fatalf("misses must not be cached")
	}

	cafe, err := repo.LoadScenario(context.Background(), "cafe")
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if cafe[0].ID != "please" {
		t.Fatalf("scenario order lost: %+v", cafe)
	}
}

func TestQuestionRepositoryInvalidate(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	repo := NewQuestionRepository(newClient(mr), memory.NewStaticQuestionLoader(sampleBank()), time.Minute)
	_, _ = repo.LoadBank(context.Background())
	_, _ = repo.LoadScenario(context.Background(), "cafe")

	if err := repo.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("questions:bank") || mr.Exists("questions:scenario:cafe") {
		t.Fatalf("expected cache keys removed")
	}
}

type countingLoader struct {
	*memory.StaticQuestionLoader
	calls int
}

func (l *countingLoader) LoadBank(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.StaticQuestionLoader.LoadBank(ctx)
}

func sampleBank() memory.Bank {
	return memory.Bank{
		Questions: []domain.Question{
			{
				ID:    "coffee",
				Media: "signs/coffee.mp4",
				Answers: []domain.Answer{
					{Text: "Tea"},
					{Text: "Coffee", IsCorrect: true},
				},
				CoinReward: 20,
			},
			{
				ID:    "please",
				Media: "signs/please.mp4",
				Answers: []domain.Answer{
					{Text: "Please", IsCorrect: true},
					{Text: "Sorry"},
				},
				CoinReward: 10,
			},
		},
		Scenarios: map[string][]string{"cafe": {"please", "coffee"}},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
