// Package server exposes a running playback engine over HTTP: a snapshot and
// control API plus a websocket event stream for remote displays.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alkime/podbook/internal/config"
	"github.com/alkime/podbook/internal/playback"
	"github.com/alkime/podbook/internal/transcript"
	"github.com/alkime/podbook/pkg/channels"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// Executor runs fn on the engine's scheduling context and waits for it.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}

// Player is the part of playback.Controller the API drives.
type Player interface {
	Snapshot() playback.Snapshot
	Play() error
	Pause() error
	TogglePlayPause() error
	Seek(g time.Duration) error
	SkipForward(d time.Duration) error
	SkipBackward(d time.Duration) error
}

// Transcript is the part of transcript.SyncEngine the API reads.
type Transcript interface {
	Segments() []transcript.Segment
	State() transcript.SyncState
	UserDidSelectSegment(id int) error
}

// EventSource hands out event subscriptions, usually a channels.Broadcaster.
type EventSource interface {
	SubscribeWithTimeout(ch chan<- Event, timeout time.Duration) (func(), error)
	Stats() []channels.SubscriberStats
}

// Questioner starts an interjection for a typed question.
type Questioner interface {
	Ask(ctx context.Context, text string) error
}

// Engine bundles what the server talks to. Loop and Player are required.
type Engine struct {
	Loop       Executor
	Player     Player
	Transcript Transcript
	Events     EventSource
	Questions  Questioner
}

// Server is the remote control HTTP server for one engine.
type Server struct {
	config *config.Config
	logger *slog.Logger
	router *gin.Engine
	engine Engine
}

// New builds the router: request logging, security headers, the optional
// web remote and the API routes.
func New(cfg *config.Config, logger *slog.Logger, engine Engine) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	// clients talk to the player directly; forwarded headers are not trusted
	if err := router.SetTrustedProxies(nil); err != nil {
		logger.Warn("failed to reset trusted proxies", "error", err)
	}

	s := &Server{
		config: cfg,
		logger: logger,
		router: router,
		engine: engine,
	}

	setupSecurityMiddleware(router, cfg, logger)
	s.setupRoutes()

	return s
}

// Router exposes the handler for tests and embedding.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "port", s.config.Port)
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := <-errC; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) setupRoutes() {
	if s.config.WebDir != "" {
		s.router.Use(static.Serve("/", static.LocalFile(s.config.WebDir, false)))
		s.logger.Debug("Serving web remote", "dir", s.config.WebDir)
	}

	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/v1")
	{
		api.GET("/playback", s.handleSnapshot)
		api.POST("/playback/play", s.handlePlay)
		api.POST("/playback/pause", s.handlePause)
		api.POST("/playback/toggle", s.handleToggle)
		api.POST("/playback/seek", s.handleSeek)
		api.POST("/playback/skip", s.handleSkip)

		api.GET("/transcript", s.handleTranscript)
		api.POST("/transcript/select", s.handleSelectSegment)

		api.POST("/questions", s.handleAsk)

		api.GET("/events", s.handleEvents)
	}
}

// handleHealth reports liveness and event stream delivery counters.
func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"service": "podbook",
	}
	if s.engine.Events != nil {
		var clients, dropped int
		for _, st := range s.engine.Events.Stats() {
			if !st.Inactive {
				clients++
			}
			dropped += st.Dropped
		}
		resp["event_clients"] = clients
		resp["events_dropped"] = dropped
	}

	c.JSON(http.StatusOK, resp)
}
