// Package server exposes a running chat session over a local HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/logger"
	"github.com/bz888/cognix/internal/models"
	"github.com/bz888/cognix/internal/preferences"
	"github.com/bz888/cognix/internal/session"
	"github.com/bz888/cognix/internal/speech"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 5 * time.Second

// Session is the part of *session.Controller the API drives.
type Session interface {
	Send(text string) (session.Submitted, error)
	ClearConversation()
	SelectModel(id string) error
	SetAutoSpeak(on bool)
	SetVoiceSpeed(v float64) float64
	StopPlayback()

	Transcript() []chat.Message
	State() session.RequestState
	Preferences() preferences.Preferences
	SelectedModel() models.Descriptor
	Models() []models.Descriptor
	Capturing() bool
	Speaking() bool
	Capabilities() speech.Capabilities
}

type Server struct {
	e   *echo.Echo
	s   Session
	log *logger.Logger
}

// New builds the API. A non-empty token is required as a bearer token on
// every route except /healthz.
func New(s Session, token string) *Server {
	srv := &Server{
		e:   echo.New(),
		s:   s,
		log: logger.NewLogger("server"),
	}
	srv.e.HideBanner = true
	srv.e.HidePort = true
	srv.e.Use(middleware.Recover())
	srv.e.Use(srv.requestLogger())
	if token != "" {
		srv.e.Use(bearerAuth(token))
	}
	srv.registerRoutes()
	return srv
}

// Handler returns the API as an http.Handler.
func (srv *Server) Handler() http.Handler {
	return srv.e
}

// Run serves on address until ctx is done, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context, address string) error {
	errCh := make(chan error, 1)
	go func() {
		srv.log.Info("Server started on http://" + address + "/")
		errCh <- srv.e.Start(address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srv.log.Info("Server shutting down")
	return srv.e.Shutdown(shutdownCtx)
}

func (srv *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			srv.log.Debug(v.Method, " ", v.URI, " ", v.Status, " ", v.Latency)
			return nil
		},
	})
}
