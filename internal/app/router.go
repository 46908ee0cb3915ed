package app

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"qbank/internal/app/apiresp"
	"qbank/internal/app/observability"
	"qbank/internal/audit"
	"qbank/internal/auth"
	"qbank/internal/exporter"
	"qbank/internal/importer"
	"qbank/internal/question"
	"qbank/internal/subject"
)

func NewRouter(cfg Config, db *sql.DB, logger *slog.Logger) http.Handler {
	collector := observability.NewCollector(db, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(collector.Middleware)

	auditLog := audit.NewLog(db)

	authSvc := auth.NewService(db, auth.ServiceConfig{SessionTTL: cfg.SessionTTL})
	authHandler := auth.NewHandler(authSvc, cfg.IsProduction())

	subjectSvc := subject.NewService(db, auditLog)
	subjectHandler := subject.NewHandler(subjectSvc)

	questionSvc := question.NewService(db, subjectSvc, auditLog)
	questionHandler := question.NewHandler(questionSvc)

	committer := importer.NewCommitter(db, subjectSvc, questionSvc, auditLog)
	importHandler := importer.NewHandler(committer, importer.HandlerConfig{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Counter:        collector,
	})

	exportHandler := exporter.NewHandler(exporter.NewSelector(questionSvc), auditLog, collector)
	auditHandler := audit.NewHandler(auditLog)

	authLimiter := NewIPRateLimiter(cfg.AuthRateLimitPerMin, time.Minute)
	importLimiter := NewIPRateLimiter(cfg.ImportRateLimitMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			apiresp.WriteError(w, r, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		apiresp.WriteOK(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.With(RateLimitMiddleware(authLimiter)).Post("/auth/login", authHandler.Login)
		api.Get("/auth/csrf", CSRFTokenHandler(cfg.IsProduction()))

		api.Group(func(secure chi.Router) {
			secure.Use(authHandler.RequireAuth)
			secure.Use(collector.CaptureUser)
			secure.Use(CSRFMiddleware(cfg.CSRFEnforced))
			secure.Get("/auth/me", authHandler.Me)
			secure.Post("/auth/logout", authHandler.Logout)

			secure.Group(func(admin chi.Router) {
				admin.Use(authHandler.RequireRoles(auth.RoleAdmin))

				admin.Get("/admin/subjects", subjectHandler.List)
				admin.Post("/admin/subjects", subjectHandler.Create)
				admin.Delete("/admin/subjects/{id}", subjectHandler.Delete)

				// Static segments before {id}.
				admin.Get("/admin/questions", questionHandler.List)
				admin.Post("/admin/questions", questionHandler.Create)
				admin.Get("/admin/questions/export", exportHandler.Export)
				admin.Put("/admin/questions/bulk-move", questionHandler.BulkMove)
				admin.Get("/admin/questions/{id}", questionHandler.Get)
				admin.Delete("/admin/questions/{id}", questionHandler.Delete)
				admin.Put("/admin/questions/{id}/subject", questionHandler.Move)

				admin.Group(func(imp chi.Router) {
					imp.Use(RateLimitMiddleware(importLimiter))
					imp.Post("/admin/import/preview", importHandler.Preview)
					imp.Post("/admin/import/preview/edit", importHandler.Edit)
					imp.Post("/admin/import/confirm", importHandler.Confirm)
				})

				admin.Get("/admin/audit", auditHandler.List)
			})
		})
	})

	return r
}
