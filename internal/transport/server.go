// Package transport exposes the assistant over HTTP and WebSocket.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"

	"github.com/partselect-assistant/server/internal/agent/model"
	logx "github.com/partselect-assistant/server/pkg/logger"
)

const maxBodyBytes = 64 << 10

// ChatService answers chat requests; *assistant.Assistant satisfies it.
type ChatService interface {
	Chat(ctx context.Context, req model.ChatRequest) *model.ChatResponse
	Features() model.FeatureConfig
}

type Server struct {
	cfg     model.ServerConfig
	chat    ChatService
	metrics http.Handler
	router  chi.Router
}

// New builds the router. metrics may be nil, which disables /metrics.
func New(cfg model.ServerConfig, chat ChatService, metrics http.Handler) *Server {
	if metrics == nil {
		metrics = http.NotFoundHandler()
	}
	s := &Server{cfg: cfg, chat: chat, metrics: metrics}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logx.Logger()))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("http request")
	}))
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics)
	r.Post("/chat", s.handleChat)
	r.Get("/ws/{client_id}", s.handleWebSocket)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	shutdownTimeout := s.cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logx.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type healthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	PerformanceMode  bool   `json:"performance_mode"`
	MultiAgent       bool   `json:"multi_agent"`
	GuardrailEnabled bool   `json:"guardrail_enabled"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "PartSelect Chat Agent API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	f := s.chat.Features()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "healthy",
		Service:          "partselect-chat-agent",
		PerformanceMode:  f.PerformanceMode,
		MultiAgent:       f.MultiAgent,
		GuardrailEnabled: f.GuardrailEnabled,
	})
}

type chatBody struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("malformed chat body")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "request body must be JSON with a message field"})
		return
	}
	resp := s.chat.Chat(r.Context(), model.ChatRequest{
		Message:        body.Message,
		ConversationID: body.ConversationID,
		Channel:        model.ChannelHTTP,
	})
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warn().Err(err).Msg("failed to write response")
	}
}
