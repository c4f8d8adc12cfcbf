package router

import (
	"log/slog"
	"net/http"

	"lostfound-rest-api/internal/handler"
	"lostfound-rest-api/internal/images"
	"lostfound-rest-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	ItemHandler    *handler.ItemHandler
	AdminHandler   *handler.AdminHandler
	AllowedOrigins []string
	LoginKey       string // guards item deletion and /api/admin/*; empty leaves them open
	UploadDir      string // served at /uploads/ when images are stored locally
	Logger         *slog.Logger
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Login-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	adminOnly := middleware.AdminKey(cfg.LoginKey)

	r.Handle("/metrics", promhttp.Handler())

	if cfg.UploadDir != "" {
		fileServer := http.FileServer(http.Dir(cfg.UploadDir))
		r.Handle(images.URLPrefix+"*", http.StripPrefix(images.URLPrefix, noDirListing(fileServer)))
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
			r.Get("/status", cfg.Handler.Status)
		}

		if cfg.ItemHandler != nil {
			r.Route("/items", func(r chi.Router) {
				r.Get("/", cfg.ItemHandler.List)
				r.Post("/", cfg.ItemHandler.Create)
				r.Get("/stats/overview", cfg.ItemHandler.Stats)
				r.Get("/categories", cfg.ItemHandler.Categories)
				r.Post("/suggestions", cfg.ItemHandler.Suggest)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.ItemHandler.Get)
					r.Put("/", cfg.ItemHandler.Update)
					r.Put("/claim", cfg.ItemHandler.Claim)
					r.With(adminOnly).Delete("/", cfg.ItemHandler.Delete)
				})
			})
		}

		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Post("/login", cfg.AdminHandler.VerifyLogin)

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Post("/sweep", cfg.AdminHandler.RunSweep)
				})
			})
		}
	})

	return r
}

// noDirListing answers 404 for directory paths instead of listing uploads.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path[len(r.URL.Path)-1] == '/' {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
