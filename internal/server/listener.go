package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Listener serves a handler on one address until it is shut down.
type Listener struct {
	name   string
	log    *zap.Logger
	server *http.Server
	addr   string
}

// NewListener creates a listener for handler on addr.
func NewListener(name, addr string, handler http.Handler, log *zap.Logger) *Listener {
	return &Listener{
		name: name,
		log:  log,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
	}
}

// Start binds the address and serves in the background. Serve errors other
// than a clean shutdown are sent to errCh.
func (l *Listener) Start(errCh chan<- error) error {
	ln, err := net.Listen("tcp", l.server.Addr)
	if err != nil {
		return err
	}

	l.addr = ln.Addr().String()
	l.log.Info("Listening", zap.String("listener", l.name), zap.String("addr", l.addr))

	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return nil
}

// Addr returns the bound address once started, the configured one before.
func (l *Listener) Addr() string {
	if l.addr != "" {
		return l.addr
	}
	return l.server.Addr
}

// Shutdown gracefully shuts down the listener.
func (l *Listener) Shutdown(ctx context.Context) error {
	return l.server.Shutdown(ctx)
}
