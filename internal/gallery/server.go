package gallery

import (
	"html/template"
	"io"
	"net/http"

	"gallery-service/internal/blob"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
)

type Options struct {
	MaxUploadBytes   int64
	UploadRatePerMin int
	UploadBurst      int

	// Media serves /media/{bucket}/{name} when blobs live on local disk.
	Media *blob.FSStore
	// WS handles /ws player sessions.
	WS http.Handler
}

type Server struct {
	lib     *Library
	opts    Options
	logger  *log.Logger
	tpl     *template.Template
	limiter *uploadLimiter
}

func NewServer(lib *Library, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	if opts.UploadRatePerMin <= 0 {
		opts.UploadRatePerMin = 30
	}
	if opts.UploadBurst <= 0 {
		opts.UploadBurst = 5
	}
	return &Server{
		lib:     lib,
		opts:    opts,
		logger:  logger,
		tpl:     parseTemplates(),
		limiter: newUploadLimiter(opts.UploadRatePerMin, opts.UploadBurst),
	}
}

// Router builds the chi router; middlewares are applied to every route.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.Use(requestLogMiddleware(s.logger))

	r.Get("/health", s.handleHealth)

	r.Get("/", s.handleIndex)
	r.Get("/fragments/memories", s.handleMemoriesFragment)
	r.Get("/fragments/playlist", s.handlePlaylistFragment)
	r.Get("/static/*", s.handleStatic)

	r.Route("/api", func(r chi.Router) {
		r.Get("/memories", s.handleListMemories)
		r.Get("/tracks", s.handleListTracks)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.middleware)
			r.Use(bodySizeLimitMiddleware(s.opts.MaxUploadBytes))

			r.Post("/memories", s.handleCreateMemory)
			r.Delete("/memories/{id}", s.handleDeleteMemory)
			r.Post("/tracks", s.handleCreateTrack)
			r.Delete("/tracks/{id}", s.handleDeleteTrack)
		})
	})

	if s.opts.Media != nil {
		r.Get("/media/{bucket}/{name}", s.handleMedia)
	}
	if s.opts.WS != nil {
		r.Handle("/ws", s.opts.WS)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gallery-service",
	})
}
