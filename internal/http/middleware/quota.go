package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Quota limita quantas vezes uma chave pode passar num período.
type Quota interface {
	Allow(ctx context.Context, key string) (bool, int64, error)
}

// CreateQuota aplica a cota diária de criação por usuário.
// Falha no Redis não bloqueia a requisição.
func CreateQuota(quota Quota) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := GetSubject(r.Context())
			if quota == nil || subject == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, count, err := quota.Allow(r.Context(), subject)
			if err != nil {
				log.Warn().Err(err).Str("usuario_id", subject).Msg("cota de criação indisponível")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				log.Info().Str("usuario_id", subject).Int64("contagem", count).Msg("cota diária de criação atingida")
				writeError(w, http.StatusTooManyRequests, "QUOTA", "Limite diário de demandas atingido")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
