// Package cache guarda no Redis respostas de consultas estáveis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gestaozabele/demandas/internal/demand"
)

const (
	departmentKeyPrefix = "secretaria:tipo:"
	// marcador gravado quando nenhuma secretaria atende o tipo.
	missingMarker = "-"
)

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Departments envolve um demand.DepartmentLookup e guarda FindByType por TTL.
// FindByName sempre vai à origem.
type Departments struct {
	next   demand.DepartmentLookup
	redis  redisCommander
	ttl    time.Duration
	logger zerolog.Logger
}

func NewDepartments(next demand.DepartmentLookup, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Departments {
	return &Departments{next: next, redis: client, ttl: ttl, logger: logger}
}

func (d *Departments) FindByType(ctx context.Context, t demand.Type) (demand.Department, error) {
	key := departmentKeyPrefix + string(t)

	raw, err := d.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		if raw == missingMarker {
			return demand.Department{}, demand.ErrNoDocument
		}
		var dep demand.Department
		if jsonErr := json.Unmarshal([]byte(raw), &dep); jsonErr == nil {
			return dep, nil
		}
		d.logger.Warn().Str("key", key).Msg("cache de secretaria corrompido")
	case !errors.Is(err, redis.Nil):
		// Redis fora do ar não derruba a criação de demandas.
		d.logger.Warn().Err(err).Str("key", key).Msg("falha ao ler cache de secretaria")
	}

	dep, err := d.next.FindByType(ctx, t)
	if errors.Is(err, demand.ErrNoDocument) {
		d.store(ctx, key, missingMarker)
		return demand.Department{}, err
	}
	if err != nil {
		return demand.Department{}, err
	}

	payload, err := json.Marshal(dep)
	if err == nil {
		d.store(ctx, key, string(payload))
	}
	return dep, nil
}

func (d *Departments) FindByName(ctx context.Context, name string) ([]demand.Department, error) {
	return d.next.FindByName(ctx, name)
}

func (d *Departments) store(ctx context.Context, key, value string) {
	if err := d.redis.Set(ctx, key, value, d.ttl).Err(); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("falha ao gravar cache de secretaria")
	}
}
