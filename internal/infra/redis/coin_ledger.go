package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"signquiz-service/internal/domain"
)

// subtractScript debits ARGV[1] from KEYS[1] only if the balance covers it.
// It returns {1, newBalance} on success and {0, balance} otherwise.
var subtractScript = redis.NewScript(`
local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if balance < amount then
	return {0, balance}
end
return {1, redis.call('DECRBY', KEYS[1], amount)}
`)

// CoinLedger stores balances as integer keys (coins:{userID}). Credits use
// INCRBY and debits a Lua check-then-decrement, so both are atomic on the server.
type CoinLedger struct {
	client *redis.Client
}

func NewCoinLedger(client *redis.Client) *CoinLedger {
	return &CoinLedger{client: client}
}

func (l *CoinLedger) GetBalance(ctx context.Context, userID string) (int, error) {
	balance, err := l.client.Get(ctx, coinsKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
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
	balance, err := l.client.IncrBy(ctx, coinsKey(userID), int64(amount)).Result()
	if err != nil {
		return 0, fmt.Errorf("add coins: %w", err)
	}
	return int(balance), nil
}

func (l *CoinLedger) Subtract(ctx context.Context, userID string, amount int) (int, error) {
	if amount < 0 {
		return 0, domain.ErrInvalidAmount
	}
	res, err := subtractScript.Run(ctx, l.client, []string{coinsKey(userID)}, amount).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("subtract coins: %w", err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("subtract coins: unexpected reply %v", res)
	}
	if res[0] == 0 {
		return int(res[1]), &domain.InsufficientFundsError{Required: amount, Available: int(res[1])}
	}
	return int(res[1]), nil
}

// ChallengeCounter keeps completed-challenge counts at challenges:{userID}.
type ChallengeCounter struct {
	client *redis.Client
}

func NewChallengeCounter(client *redis.Client) *ChallengeCounter {
	return &ChallengeCounter{client: client}
}

func (c *ChallengeCounter) Increment(ctx context.Context, userID string) (int, error) {
	n, err := c.client.Incr(ctx, "challenges:"+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("increment challenges: %w", err)
	}
	return int(n), nil
}

func coinsKey(userID string) string {
	return "coins:" + userID
}
