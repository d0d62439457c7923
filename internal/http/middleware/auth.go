package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/demandas/internal/auth"
	"github.com/gestaozabele/demandas/internal/demand"
)

type contextKey string

const (
	ContextKeySubject contextKey = "subject"
	ContextKeyCaller  contextKey = "caller"
)

// Auth valida o JWT de acesso e injeta o subject no contexto.
func Auth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			claims, err := jwtManager.ParseAndValidate(strings.TrimSpace(parts[1]))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "token inválido")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySubject, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadCaller busca o usuário do token e injeta papéis e secretarias no contexto.
// Deve rodar depois de Auth.
func LoadCaller(users demand.UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := GetSubject(r.Context())
			if subject == "" {
				writeError(w, http.StatusUnauthorized, "AUTH", "token ausente")
				return
			}

			found, err := users.FindByIDs(r.Context(), []string{subject})
			if err != nil {
				log.Error().Err(err).Str("subject", subject).Msg("falha ao carregar usuário do token")
				writeError(w, http.StatusInternalServerError, "INTERNAL", "erro interno")
				return
			}
			if len(found) == 0 {
				writeError(w, http.StatusUnauthorized, "AUTH", "usuário não encontrado")
				return
			}

			ctx := WithCaller(r.Context(), demand.CallerFromUser(found[0]))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject recupera subject do contexto.
func GetSubject(ctx context.Context) string {
	val, _ := ctx.Value(ContextKeySubject).(string)
	return val
}

func WithCaller(ctx context.Context, caller demand.Caller) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

var errNoCaller = errors.New("caller ausente")

// GetCaller devolve o caller carregado por LoadCaller.
func GetCaller(ctx context.Context) (demand.Caller, error) {
	caller, ok := ctx.Value(ContextKeyCaller).(demand.Caller)
	if !ok {
		return demand.Caller{}, errNoCaller
	}
	return caller, nil
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
