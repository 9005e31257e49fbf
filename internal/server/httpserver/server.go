// Package httpserver exposes the service layer over the JSON/HTTP surface
// existing clients speak: cookie sessions, multipart uploads, X-Encryption-*
// download headers and token-addressed share redemption.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/avolkov/filevault/internal/logging"
	"github.com/avolkov/filevault/internal/server/config"
	"github.com/avolkov/filevault/internal/server/services"
)

// Server holds the HTTP surface and its collaborators.
type Server struct {
	logger logging.Logger

	jwtSecret            []byte
	sessionTokenValidity time.Duration
	publicBaseURL        string

	users       *services.UserService
	totp        *services.TOTPService
	files       *services.FileService
	permissions *services.PermissionService
	shares      *services.ShareService

	httpServer *http.Server
}

// NewServer wires the router and the underlying http.Server.
func NewServer(cfg *config.Config, logger logging.Logger,
	users *services.UserService, totp *services.TOTPService,
	files *services.FileService, permissions *services.PermissionService,
	shares *services.ShareService) *Server {

	s := &Server{
		logger:               logger.With("component", "http"),
		jwtSecret:            []byte(cfg.SecretKey),
		sessionTokenValidity: cfg.SessionTokenValidity,
		publicBaseURL:        cfg.PublicBaseURL,
		users:                users,
		totp:                 totp,
		files:                files,
		permissions:          permissions,
		shares:               shares,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.EndpointAddr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
