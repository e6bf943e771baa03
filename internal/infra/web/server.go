package web

import (
	"net/http"
	"strings"

	"integrity-pipeline/internal/domain/ports/adapter"
	"integrity-pipeline/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// TokenVerifier resolves a signed artifact token to the blob reference it grants.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Server is the diagnostic HTTP surface: health, metrics, job introspection and
// signed artifact downloads.
type Server struct {
	pipeline usecase.PipelineUseCase
	blobs    adapter.BlobStore
	tokens   TokenVerifier
	apiKey   string
	log      *zerolog.Logger
}

func NewServer(
	pipeline usecase.PipelineUseCase,
	blobs adapter.BlobStore,
	tokens TokenVerifier,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		pipeline: pipeline,
		blobs:    blobs,
		tokens:   tokens,
		apiKey:   apiKey,
		log:      &l,
	}
}

// Router builds the chi router with every route registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(traceID, requestLog(s.log), recoverer(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/blobs/*", blobHandler(s.blobs, s.tokens))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/jobs", jobsListHandler(s.pipeline))
		r.Get("/jobs/count", jobsCountHandler(s.pipeline))
		r.Post("/files/{fileID}/integrity", startIntegrityHandler(s.pipeline))
		r.Post("/files/{fileID}/word-count", startWordCountHandler(s.pipeline))
		r.Post("/files/{fileID}/retry", retryHandler(s.pipeline))
		r.Get("/files/{fileID}/report", reportURLHandler(s.pipeline))
	})
	return r
}

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
