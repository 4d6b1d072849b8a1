package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"signquiz-service/internal/app"
	"signquiz-service/internal/domain"
)

// QuestionRepository caches question sets in Redis as JSON and falls back to a loader on cache miss.
// The bank lives at questions:bank, scenarios at questions:scenario:{name}.
type QuestionRepository struct {
	client *redis.Client
	loader app.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader app.QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) LoadBank(ctx context.Context) ([]domain.Question, error) {
	return r.get(ctx, bankKey(), func() ([]domain.Question, error) {
		return r.loader.LoadBank(ctx)
	})
}

func (r *QuestionRepository) LoadScenario(ctx context.Context, name string) ([]domain.Question, error) {
	return r.get(ctx, scenarioKey(name), func() ([]domain.Question, error) {
		return r.loader.LoadScenario(ctx, name)
	})
}

func (r *QuestionRepository) get(ctx context.Context, key string, load func() ([]domain.Question, error)) ([]domain.Question, error) {
	if qs, ok := r.cached(ctx, key); ok {
		return qs, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := r.cached(ctx, key); ok {
			return qs, nil
		}

		qs, err := load()
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(qs); err == nil {
			// best-effort: a failed write only costs another load
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, false
	}
	return qs, true
}

// Invalidate drops every cached question set.
func (r *QuestionRepository) Invalidate(ctx context.Context) error {
	return InvalidateQuestions(ctx, r.client)
}

// InvalidateQuestions drops every cached question set, e.g. after seeding new content.
func InvalidateQuestions(ctx context.Context, client *redis.Client) error {
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, "questions:*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func bankKey() string {
	return "questions:bank"
}

func scenarioKey(name string) string {
	return "questions:scenario:" + name
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
