package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DailyQuota conta operações por chave dentro do dia UTC corrente.
type DailyQuota struct {
	client *redis.Client
	prefix string
	limit  int64
	now    func() time.Time
}

func NewDailyQuota(client *redis.Client, prefix string, limit int64) *DailyQuota {
	return &DailyQuota{client: client, prefix: prefix, limit: limit, now: time.Now}
}

// Allow incrementa o contador de key e informa se ainda está dentro do limite.
// limit <= 0 desativa a cota.
func (q *DailyQuota) Allow(ctx context.Context, key string) (bool, int64, error) {
	if q.limit <= 0 {
		return true, 0, nil
	}
	now := q.now().UTC()
	redisKey := fmt.Sprintf("%s:%s:%s", q.prefix, now.Format("20060102"), key)

	count, err := q.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := q.client.Expire(ctx, redisKey, 24*time.Hour).Err(); err != nil {
			return false, count, err
		}
	}
	return count <= q.limit, count, nil
}
