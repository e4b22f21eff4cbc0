package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sozercan/recyclens/apimodels"
	"github.com/sozercan/recyclens/internal/config"
)

const shutdownTimeout = 30 * time.Second

// VisionAnalyzer classifies an item photo.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, image string) (*apimodels.VisionResult, error)
}

// RecyclabilityAnalyzer produces the final recommendation. visionResult may
// be nil when only a text description is available.
type RecyclabilityAnalyzer interface {
	Analyze(ctx context.Context, visionResult *apimodels.VisionResult, userContext, location string) (*apimodels.AnalyzeResponse, error)
}

// RegulationHealth reports on the optional retrieval service.
type RegulationHealth interface {
	Configured() bool
	Health(ctx context.Context) bool
}

type Server struct {
	cfg           config.ServerConfig
	router        *chi.Mux
	vision        VisionAnalyzer
	recyclability RecyclabilityAnalyzer
	regulations   RegulationHealth
}

func New(cfg config.ServerConfig, vision VisionAnalyzer, recyclability RecyclabilityAnalyzer, regulations RegulationHealth) *Server {
	s := &Server{
		cfg:           cfg,
		router:        chi.NewRouter(),
		vision:        vision,
		recyclability: recyclability,
		regulations:   regulations,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Route("/analyze", func(r chi.Router) {
			r.Post("/", s.handleAnalyze)
			r.Post("/vision", s.handleVision)
			r.Post("/recyclability", s.handleRecyclability)
		})
	})

	// Static files
	if s.cfg.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.cfg.StaticDir))
		s.router.Handle("/*", fs)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then gives outstanding requests
// shutdownTimeout to complete.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("address", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request completed")
	})
}
