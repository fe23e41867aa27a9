package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebridge/internal/shared"
)

// Listener serves a [CallbackHandler] on a local port.
type Listener struct {
	handler  *CallbackHandler
	logger   *log.Logger
	listener net.Listener
	server   *http.Server
}

// NewListener binds 127.0.0.1:port. Port 0 picks a free port, see [Listener.Addr].
func NewListener(port int, handler *CallbackHandler, logger *log.Logger) (*Listener, error) {
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for callback: %w", err)
	}

	router := NewBasicRouter()
	router.Use(RequestLogger(logger))
	router.Handler(handler)

	return &Listener{
		handler:  handler,
		logger:   logger,
		listener: ln,
		server:   &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second},
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() string {
	return l.listener.Addr().String()
}

// CallbackURL is the redirect target to register with the backend.
func (l *Listener) CallbackURL() string {
	return "http://" + l.Addr() + CallbackPath
}

// Wait serves until one callback is processed or ctx ends, then shuts the server down.
func (l *Listener) Wait(ctx context.Context) (CallbackResult, error) {
	serveErr := make(chan error, 1)
	go func() {
		if err := l.server.Serve(l.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	l.logger.Info("waiting for login callback", "url", l.CallbackURL())

	var (
		result CallbackResult
		err    error
	)
	select {
	case result = <-l.handler.Result():
		err = result.Err
	case err = <-serveErr:
		if err == nil {
			err = http.ErrServerClosed
		}
	case <-ctx.Done():
		err = ctx.Err()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if shutdownErr := l.server.Shutdown(shutdownCtx); shutdownErr != nil {
		l.logger.Warn("callback server shutdown failed", "error", shutdownErr)
	}
	return result, err
}

// Close releases the port without waiting for a callback.
func (l *Listener) Close() error {
	return l.listener.Close()
}

// Listen is [NewListener] followed by [Listener.Wait].
func Listen(ctx context.Context, port int, handler *CallbackHandler, logger *log.Logger) (CallbackResult, error) {
	l, err := NewListener(port, handler, logger)
	if err != nil {
		return CallbackResult{}, err
	}
	return l.Wait(ctx)
}
