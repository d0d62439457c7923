package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gestaozabele/demandas/internal/attachment"
	"github.com/gestaozabele/demandas/internal/auth"
	"github.com/gestaozabele/demandas/internal/config"
	"github.com/gestaozabele/demandas/internal/demand"
	httpmiddleware "github.com/gestaozabele/demandas/internal/http/middleware"
	"github.com/gestaozabele/demandas/internal/metrics"
)

// Check verifica uma dependência para o /ready.
type Check func(ctx context.Context) error

// Dependencies reúne os colaboradores já construídos pelo main.
type Dependencies struct {
	Demands     *demand.Service
	Attachments *attachment.Pipeline
	Users       demand.UserLookup
	JWT         *auth.JWTManager
	Quota       httpmiddleware.Quota
	Metrics     *metrics.Metrics
	Checks      map[string]Check
}

type Handler struct {
	demands       *demand.Service
	attachments   *attachment.Pipeline
	checks        map[string]Check
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	h := &Handler{
		demands:       deps.Demands,
		attachments:   deps.Attachments,
		checks:        deps.Checks,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	var observer httpmiddleware.RequestObserver
	if deps.Metrics != nil {
		observer = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging(observer))
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		if deps.Metrics != nil {
			public.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
		}
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(deps.JWT))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))
		private.Use(httpmiddleware.LoadCaller(deps.Users))

		private.Route("/demandas", func(d chi.Router) {
			d.Get("/", h.ListDemands)
			d.With(httpmiddleware.CreateQuota(deps.Quota)).Post("/", h.CreateDemand)
			d.Get("/{id}", h.GetDemand)
			d.Patch("/{id}", h.UpdateDemand)
			d.Delete("/{id}", h.DeleteDemand)
			d.Post("/{id}/atribuir", h.AssignDemand)
			d.Post("/{id}/devolver", h.ReturnDemand)
			d.Post("/{id}/resolver", h.ResolveDemand)
			d.Post("/{id}/foto/{tipo}", h.UploadPhoto)
			d.Delete("/{id}/foto/{tipo}", h.DeletePhoto)
		})
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida as dependências registradas (banco, Redis).
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := map[string]any{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependências indisponíveis", failures)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
