package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// RequestObserver recebe o status de cada requisição atendida.
type RequestObserver interface {
	ObserveRequest(method, route string, status int)
}

// Logging escreve logs estruturados por requisição e alimenta o observer, se houver.
func Logging(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)

			event := log.Info().Str("method", r.Method).Str("path", r.URL.Path).Str("route", route).
				Int("status", status).Dur("duration", time.Since(start)).Str("ip", clientIP(r))

			if reqID := middleware.GetReqID(r.Context()); reqID != "" {
				event = event.Str("request_id", reqID)
			}
			if caller, err := GetCaller(r.Context()); err == nil {
				event = event.Str("usuario_id", caller.ID)
			}

			event.Msg("http_request")

			if observer != nil {
				observer.ObserveRequest(r.Method, route, status)
			}
		})
	}
}

// routePattern usa o padrão do chi para não explodir a cardinalidade das métricas.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "desconhecida"
}
