// Package server provides the HTTP API for guia.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/guia/internal/config"
	"github.com/hyperjump/guia/internal/indexer"
	"github.com/hyperjump/guia/internal/models"
	"github.com/hyperjump/guia/internal/storage"
	"github.com/hyperjump/guia/internal/turn"
	"github.com/hyperjump/guia/internal/vector"
	"github.com/hyperjump/guia/pkg/utils"
)

// Conversation is the turn-level API served over HTTP.
type Conversation interface {
	ProcessTurn(ctx context.Context, sessionID, utterance string) (*turn.Result, error)
	Greet(ctx context.Context, sessionID string) (*turn.Result, error)
	GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error)
	UpdatePreferences(ctx context.Context, sessionID string, u models.PreferencesUpdate) (*models.ConversationSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ListPendingChoice(ctx context.Context, sessionID string) (*models.PendingChoice, error)
}

// Ingester adds and removes materials.
type Ingester interface {
	IndexMaterial(ctx context.Context, m *indexer.Material, baseDir string) (int, error)
	DeleteDocument(ctx context.Context, key string) error
}

// Invalidator drops cached topic listings after the material set changed.
type Invalidator interface {
	Invalidate()
}

// SessionCounter reports how many conversations are live.
type SessionCounter interface {
	Len() int
}

// Deps are the collaborators of a Server. Conversation is required.
type Deps struct {
	Conversation Conversation
	Topics       turn.TopicLister
	Ingester     Ingester
	Storage      storage.Storage
	Vectors      vector.Index
	Sessions     SessionCounter
	Logger       *zap.Logger
}

// Server is the HTTP server for the guia API.
type Server struct {
	conv     Conversation
	topics   turn.TopicLister
	ingester Ingester
	storage  storage.Storage
	vectors  vector.Index
	sessions SessionCounter
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config) *Server {
	return &Server{
		conv:     deps.Conversation,
		topics:   deps.Topics,
		ingester: deps.Ingester,
		storage:  deps.Storage,
		vectors:  deps.Vectors,
		sessions: deps.Sessions,
		config:   cfg,
		logger:   utils.LoggerOrNop(deps.Logger),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/turns", s.handleTurn)
			r.Post("/greeting", s.handleGreeting)
			r.Patch("/preferences", s.handleUpdatePreferences)
			r.Get("/pending-choice", s.handlePendingChoice)
		})
		r.Get("/topics", s.handleTopics)
		r.Get("/materials", s.handleListMaterials)
		r.Post("/materials", s.handleIndexMaterial)
		r.Delete("/materials", s.handleDeleteMaterial)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
