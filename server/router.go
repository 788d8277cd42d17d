package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mynextid/sod-zk/common"
	"github.com/mynextid/sod-zk/server/api"
)

func setupRouter(server *api.Server, cfg *ServeConfig, logger common.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(cfg.MaxRequestSize))

	if cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CorsOrigins,
			AllowedMethods:   []string{"GET", "POST"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Use(middleware.Compress(5))

	r.Get("/health", server.HandleHealth)

	r.Route("/circuits", func(r chi.Router) {
		r.Get("/", server.HandleListCircuits)
		r.Get("/{circuit}", server.HandleGetCircuit)
	})

	// proving is slow, the write timeout bounds it
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.WriteTimeout))
		r.Post("/prove/{circuit}", server.HandleProve)
		r.Post("/verify/{circuit}", server.HandleVerify)
	})

	r.Route("/sod", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/verify", server.HandleVerifySOD)
	})

	if cfg.EnablePprof {
		r.Mount("/debug", middleware.Profiler())
	}

	return r
}
