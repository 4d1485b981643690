package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	handlerTimeout    = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 30 * time.Second
)

type HTTPServer struct {
	httpServer *http.Server
}

func NewHTTPServer(addr string, handler http.Handler) HTTPServer {
	handler = http.TimeoutHandler(handler, handlerTimeout, "unavailable")
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	return HTTPServer{s}
}

// Run serves until Close. Any other stop cancels the app through stopFn.
func (s HTTPServer) Run(stopFn context.CancelFunc) {
	const op = "HTTPServer.Run"
	log := slog.With("op", op)

	defer stopFn()
	log.Info("listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		log.Error("unexpected servers shutdown", "err", err)
	}
}

func (s HTTPServer) Close(ctx context.Context) {
	const op = "HTTPServer.Close"
	log := slog.With("op", op)

	log.Info("closing http server...")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		log.Error("failed to shutdown gracefully", "err", err)
	}
	log.Info("http server is closed")
}
