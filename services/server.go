package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/krshsl/mockinterview/repository"
	ws "github.com/krshsl/mockinterview/websocket"
)

var errNoProvider = errors.New("no AI provider configured")

// unavailableCompleter stands in when no provider key is set; every model
// call fails, so evaluations come back empty and generation returns 502.
type unavailableCompleter struct{}

func (unavailableCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errNoProvider
}

// Server holds all server dependencies
type Server struct {
	config           *Config
	store            repository.Store
	lease            SessionLease
	completer        Completer
	recognizer       SpeechRecognizer
	speaker          Speaker
	registry         *DialogueRegistry
	authService      *AuthService
	authEndpoints    *AuthEndpoints
	sessionEndpoints *SessionEndpoints
	websocketHandler *WebSocketHandler
	wsHub            *ws.Hub
	upgrader         websocket.Upgrader
}

// NewServer creates a new server instance
func NewServer(config *Config) *Server {
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.WebSocket.ReadBufferSize,
			WriteBufferSize: config.WebSocket.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
	}
}

// SetStore sets the session store. Without one an in-memory store is used.
func (s *Server) SetStore(store repository.Store) {
	s.store = store
}

// Store returns the store in use; valid after InitializeServices.
func (s *Server) Store() repository.Store {
	return s.store
}

// SetLease sets the dialogue lease. Without one leases are process local.
func (s *Server) SetLease(lease SessionLease) {
	s.lease = lease
}

// SetCompleter overrides the configured AI provider.
func (s *Server) SetCompleter(completer Completer) {
	s.completer = completer
}

// SetSpeech overrides the configured speech services; either may be nil.
func (s *Server) SetSpeech(recognizer SpeechRecognizer, speaker Speaker) {
	s.recognizer = recognizer
	s.speaker = speaker
}

// InitializeServices initializes all server services
func (s *Server) InitializeServices(ctx context.Context) error {
	if s.store == nil {
		slog.Warn("No database configured, using in-memory store")
		s.store = repository.NewMemoryRepository()
	}
	if s.lease == nil {
		s.lease = NewMemoryLease()
	}

	if s.completer == nil {
		if err := s.initProvider(ctx); err != nil {
			return err
		}
	}
	if s.speaker == nil && s.config.Speech.ElevenLabsKey != "" {
		cache := NewAudioCache(s.config.Speech.CacheDir)
		s.speaker = NewElevenLabsService(s.config.Speech.ElevenLabsKey, s.config.Speech.ElevenLabsModel, cache)
		slog.Info("ElevenLabs service initialized")
	}

	llm := NewLLMGateway(s.completer, s.config.AI.JSONRetries)

	var transcriber Transcriber
	if s.recognizer != nil {
		transcriber = NewSpeechTranscriber(s.recognizer, s.config.Speech.FFmpegPath, s.config.Speech.Language)
	}

	s.registry = NewDialogueRegistry(s.config.WebSocket.ReplyTimeout, s.config.WebSocket.TimeoutCheckPeriod)
	orchestrator := NewDialogueOrchestrator(
		s.store,
		NewEvaluationEngine(llm),
		NewFollowUpEngine(llm),
		transcriber,
		s.speaker,
		s.registry,
		s.config.WebSocket.MaxFollowUps,
	)

	s.authService = NewAuthService(s.store, s.config.JWT.Secret, s.config.JWT.Expiration, s.config.Server.Environment == "production")
	if !s.authService.Enabled() {
		slog.Warn("JWT_SECRET not set, session routes are unauthenticated")
	}
	s.authEndpoints = NewAuthEndpoints(s.authService)
	s.sessionEndpoints = NewSessionEndpoints(s.store, NewInterviewPreparer(llm), NewReportAggregator(llm))

	s.wsHub = ws.NewHub()
	s.websocketHandler = NewWebSocketHandler(s.store, s.wsHub, s.lease, orchestrator, s.upgrader, transcriber != nil)

	return nil
}

func (s *Server) initProvider(ctx context.Context) error {
	ai := s.config.AI
	switch strings.ToLower(ai.Provider) {
	case "openai":
		if ai.OpenAIAPIKey == "" {
			break
		}
		openai, err := NewOpenAIService(ai.OpenAIAPIKey, ai.OpenAIBaseURL, ai.OpenAIModel, ai.RequestTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize OpenAI service: %w", err)
		}
		s.completer = openai
		slog.Info("OpenAI service initialized", "model", ai.OpenAIModel)
	default:
		if ai.GeminiAPIKey == "" {
			break
		}
		gemini, err := NewGeminiService(ctx, ai.GeminiAPIKey, ai.GeminiModel, ai.RequestTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize Gemini service: %w", err)
		}
		s.completer = gemini
		if s.recognizer == nil {
			s.recognizer = gemini
		}
		slog.Info("Gemini service initialized", "model", ai.GeminiModel)
	}

	if s.completer == nil {
		slog.Warn("AI provider key not configured, model calls will fail", "provider", ai.Provider)
		s.completer = unavailableCompleter{}
	}
	return nil
}

// RunWorkers runs the WebSocket hub and the reply timeout checker until ctx ends.
func (s *Server) RunWorkers(ctx context.Context) {
	go s.wsHub.Run(ctx)
	go s.registry.Run(ctx)
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health endpoint
	r.Get("/health", s.healthHandler)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.sessionEndpoints.CreateSessionHandler)

		r.Route("/{code}", func(r chi.Router) {
			// Public: exchanges credentials for a token
			r.Post("/", s.authEndpoints.JoinHandler)

			r.Group(func(r chi.Router) {
				r.Use(s.authService.Middleware)

				r.Post("/leave", s.authEndpoints.LeaveHandler)
				r.Post("/profile", s.sessionEndpoints.SaveProfileHandler)
				r.Post("/interview_info", s.sessionEndpoints.SaveInterviewInfoHandler)
				r.Post("/persona", s.sessionEndpoints.GeneratePersonaHandler)
				r.Get("/persona", s.sessionEndpoints.GetPersonaHandler)
				r.Post("/questions", s.sessionEndpoints.GenerateQuestionsHandler)
				r.Get("/questions", s.sessionEndpoints.GetQuestionsHandler)
				r.Get("/interactions", s.sessionEndpoints.GetInteractionsHandler)
				r.Post("/chat/end", s.sessionEndpoints.EndChatHandler)
				r.Post("/final_eval", s.sessionEndpoints.FinalEvaluationHandler)
				r.Get("/report", s.sessionEndpoints.GetReportHandler)

				r.Get("/ws/chat", s.websocketHandler.ChatHandler)
				r.Get("/ws/stt", s.websocketHandler.SpeechHandler)
			})
		})
	})

	return r
}

// Start serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.RunWorkers(ctx)

	srv := &http.Server{
		Addr:              net.JoinHostPort(s.config.Server.Host, port),
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("Shutting down server...")
	// Live dialogues are hijacked connections; cancelling the workers ends them.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
	return nil
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks.
// Requests without an Origin header come from non-browser clients and are allowed.
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	// If no allowed origins are configured, deny all browser requests
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "up"

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		dbStatus = "down"
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           status,
		"database":         dbStatus,
		"active_dialogues": s.registry.ActiveCount(),
	})
}
