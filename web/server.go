package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Server runs an http.Handler until its context is cancelled.
type Server struct {
	Address         string
	Handler         http.Handler
	ShutdownTimeout time.Duration

	// Listening, when set, receives the bound address once serving starts.
	Listening chan<- net.Addr
}

// Serve blocks until ctx is done or the server fails. Shutdown drains
// in-flight requests for up to ShutdownTimeout.
func (s *Server) Serve(ctx context.Context) error {
	l, err := net.Listen("tcp", s.Address)
	if err != nil {
		slog.Error("error in listening on port", "port", s.Address, "err", err)
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}
	if s.Listening != nil {
		s.Listening <- l.Addr()
	}

	server := &http.Server{
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Starting http endpoint", "addr", l.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(l)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down http server...")
	timeout := s.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down %s: %w", s.Address, err)
	}
	slog.Info("http server stopped.")
	return nil
}

// Runnable is anything App can run alongside other servers.
type Runnable interface {
	Serve(ctx context.Context) error
}

// App runs a set of servers until its context is cancelled, SIGINT or
// SIGTERM arrives, or one of them fails. A failure stops the others.
type App struct {
	Ctx     context.Context
	servers []Runnable
}

func (a *App) AddServer(s Runnable) {
	a.servers = append(a.servers, s)
}

// Run blocks until every server has stopped and returns the first failure.
func (a *App) Run() error {
	ctx := a.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range a.servers {
		g.Go(func() error {
			return s.Serve(gctx)
		})
	}
	return g.Wait()
}
