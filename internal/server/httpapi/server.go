package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/snapkeeper/snapkeeper/internal/logging"
)

// HTTPServer runs the API router until the context is cancelled, then shuts
// down gracefully.
type HTTPServer struct {
	address string
	handler *Handler
	logger  logging.Logger
}

func NewHTTPServer(a string, l logging.Logger, h *Handler) (*HTTPServer, error) {
	return &HTTPServer{
		address: a,
		handler: h,
		logger:  l.With("module", "http_server"),
	}, nil
}

func (s *HTTPServer) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:    s.address,
		Handler: NewRouter(s.handler),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
