package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"signquiz-service/internal/app"
	"signquiz-service/internal/domain"
)

const bankKey = "bank"

// QuestionRepository caches loaded questions with a TTL to avoid repeated DB hits.
type QuestionRepository struct {
	loader app.QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader app.QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (r *QuestionRepository) LoadBank(ctx context.Context) ([]domain.Question, error) {
	return r.get(bankKey, func() ([]domain.Question, error) {
		return r.loader.LoadBank(ctx)
	})
}

func (r *QuestionRepository) LoadScenario(ctx context.Context, name string) ([]domain.Question, error) {
	return r.get("scenario:"+name, func() ([]domain.Question, error) {
		return r.loader.LoadScenario(ctx, name)
	})
}

func (r *QuestionRepository) get(key string, load func() ([]domain.Question, error)) ([]domain.Question, error) {
	if qs, ok := r.cached(key); ok {
		return qs, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if qs, ok := r.cached(key); ok {
			return qs, nil
		}

		qs, err := load()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedQuestions{
			questions: qs,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(key string) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
