package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paworker/internal/auth"
	"paworker/internal/config"
	"paworker/internal/http/handler"
	mw "paworker/internal/http/middleware"
	"paworker/internal/jobs"
	"paworker/internal/metrics"
	"paworker/internal/requests"
	"paworker/internal/store"
)

type Deps struct {
	DB      *gorm.DB
	Store   *store.Store
	Queue   jobs.Queue
	JWT     *auth.JWT
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	ah := &handler.AuthHandler{DB: d.DB, JWT: d.JWT, Logger: d.Logger}
	r.Post("/auth/register", ah.Register)
	r.Post("/auth/login", ah.Login)
	r.With(auth.RequireAuth(d.JWT)).Get("/me", ah.Me)

	svc := &requests.Service{DB: d.DB, Store: d.Store, Queue: d.Queue, Logger: d.Logger}
	prh := &handler.PARequestHandler{Svc: svc, Logger: d.Logger}

	r.Route("/pa-requests", func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))

		r.Post("/", prh.Create)
		r.Get("/{uuid}", prh.Get)
		r.Post("/{uuid}/documents", prh.UploadDocument)
		r.Get("/{uuid}/audit", prh.Audit)
	})

	dlh := &handler.DeadLetterHandler{Store: d.Store.DeadLetters, Logger: d.Logger}
	r.With(auth.RequireAuth(d.JWT)).Get("/dead-letters", dlh.List)

	return r
}
