package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (srv *Server) registerRoutes() {
	srv.e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	srv.e.GET("/models", srv.listModels)
	srv.e.GET("/transcript", srv.transcript)
	srv.e.GET("/state", srv.state)
	srv.e.POST("/chat", srv.chat)
	srv.e.POST("/clear", srv.clear)
	srv.e.GET("/preferences", srv.preferences)
	srv.e.PUT("/preferences", srv.updatePreferences)
	srv.e.POST("/speech/stop", srv.stopSpeech)
}

func bearerAuth(token string) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Path(), "/healthz")
		},
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid bearer token"})
		},
	})
}
