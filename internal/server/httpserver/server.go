// Package httpserver exposes the user-management API over HTTP with echo.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/userportal/internal/logging"
	"github.com/dmitrijs2005/userportal/internal/server/metrics"
	"github.com/dmitrijs2005/userportal/internal/server/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	echo    *echo.Echo
	addr    string
	logger  logging.Logger
	metrics *metrics.Metrics
}

// NewServer wires middleware and routes. m may be nil, in which case
// /metrics is not served.
func NewServer(addr string, users UserAPI, m *metrics.Metrics, logger logging.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		ExposeHeaders: []string{"Jwt-Token"},
	}))
	e.Use(requestLogger(logger, m))

	s := &Server{echo: e, addr: addr, logger: logger, metrics: m}
	s.routes(&handlers{users: users}, users)
	return s
}

func (s *Server) routes(h *handlers, verifier TokenVerifier) {
	e := s.echo

	e.GET("/health", health)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	public := e.Group("/user")
	public.POST("/login", h.login)
	public.POST("/register", h.register)
	public.GET("/image/profile/:username", h.tempProfileImage)
	public.GET("/image/:username/:fileName", h.profileImage)

	secured := e.Group("/user", requireToken(verifier))
	secured.GET("/list", h.listUsers, requireAuthority(models.AuthorityRead))
	secured.GET("/find/:username", h.findUser, requireAuthority(models.AuthorityRead))
	secured.GET("/reset-password/:email", h.resetPassword, requireAuthority(models.AuthorityUpdate))
	secured.POST("/add", h.addUser, requireAuthority(models.AuthorityCreate))
	secured.PUT("/update", h.updateUser, requireAuthority(models.AuthorityUpdate))
	secured.PUT("/update-profile-image", h.updateProfileImage)
	secured.DELETE("/delete/:username", h.deleteUser, requireAuthority(models.AuthorityDelete))
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info(ctx, "http server shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
