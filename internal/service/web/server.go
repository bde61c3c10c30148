package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Server: HTTP-сервер чата, запускается в отдельной горутине, останавливается по отмене
// контекста или Stop.
type Server struct {
	srv     *http.Server
	logger  *zap.SugaredLogger
	running atomic.Bool
	addr    atomic.Value // string, actual listen address once started

	// baseCtx is the parent of every request context. It is cancelled after the graceful
	// phase of Stop so hijacked websocket connections end too.
	baseCtx    context.Context
	cancelBase context.CancelFunc
	inflight   sync.WaitGroup

	finishOnce sync.Once
	errCh      chan error
	done       chan struct{}
}

// NewServer wraps handler. writeTimeout must cover the slowest upstream call.
func NewServer(bindAddr string, handler http.Handler, writeTimeout time.Duration, logger *zap.SugaredLogger) *Server {
	if bindAddr == "" {
		bindAddr = "127.0.0.1:3000"
	}
	s := &Server{logger: logger, errCh: make(chan error, 1), done: make(chan struct{})}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.srv = &http.Server{
		Addr:              bindAddr,
		Handler:           s.track(handler),
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	s.addr.Store(bindAddr)
	return s
}

// track counts running handlers, hijacked ones included.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.inflight.Add(1)
		defer s.inflight.Done()
		next.ServeHTTP(w, r)
	})
}

// Start binds the listener and serves in the background. It returns once the address is bound.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.addr.Store(ln.Addr().String())

	go func() {
		s.logger.Infow("Chat server listening", "addr", s.Addr())
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			// Stop finishes once handlers have drained.
			return
		}
		s.logger.Errorw("Chat server stopped with error", "error", err)
		s.running.Store(false)
		s.cancelBase()
		s.finish(err)
	}()

	// Watch for context cancellation to stop the server
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop(context.WithoutCancel(ctx))
		case <-s.done:
		}
	}()
	return nil
}

// Stop shuts the server down gracefully: new connections are refused, in-flight requests
// get up to 5 seconds to complete, then remaining connections are closed and Stop waits for
// their handlers to return.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeoutCause(ctx, shutdownTimeout, errors.New("chat server shutdown timeout"))
	defer cancel()

	var err error
	if serr := s.srv.Shutdown(shutdownCtx); serr != nil {
		s.logger.Warnw("graceful shutdown error", "error", serr)
		err = s.srv.Close()
	}
	// Websocket handlers are not tracked by Shutdown; cancelling their context ends them.
	s.cancelBase()

	drained := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(shutdownTimeout):
		s.logger.Warnw("handlers still running after shutdown")
	}

	s.logger.Infow("Chat server stopped")
	s.finish(nil)
	return err
}

func (s *Server) finish(err error) {
	s.finishOnce.Do(func() {
		if err != nil {
			s.errCh <- err
		}
		close(s.errCh)
		close(s.done)
	})
}

// Done is closed once serving has ended and in-flight handlers have returned; it yields
// the serve error if there was one.
func (s *Server) Done() <-chan error { return s.errCh }

func (s *Server) Addr() string { return s.addr.Load().(string) }
