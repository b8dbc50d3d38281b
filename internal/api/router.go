package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/ragserver/internal/api/handlers"
	"github.com/nikhilbhutani/ragserver/internal/api/middleware"
	"github.com/nikhilbhutani/ragserver/internal/cache"
	"github.com/nikhilbhutani/ragserver/internal/config"
	"github.com/nikhilbhutani/ragserver/internal/rag"
	"github.com/nikhilbhutani/ragserver/internal/vectorstore"
)

type Router struct {
	mux      *chi.Mux
	cfg      *config.Config
	pipeline *rag.Pipeline
	index    vectorstore.Index
	cache    *cache.Cache
}

func NewRouter(pipeline *rag.Pipeline, index vectorstore.Index, c *cache.Cache, cfg *config.Config) *Router {
	return &Router{
		mux:      chi.NewRouter(),
		cfg:      cfg,
		pipeline: pipeline,
		index:    index,
		cache:    c,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints
	health := handlers.NewHealthHandler(rt.index, rt.cache)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	statusH := handlers.NewStatusHandler(rt.pipeline)
	ragH := handlers.NewRAGHandler(rt.pipeline, rt.cfg.RAG.UploadDir)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.Status)

		r.Route("/rag", func(r chi.Router) {
			r.Post("/index", ragH.Index)
			r.Post("/chat", ragH.Chat)
		})
	})

	return r
}
