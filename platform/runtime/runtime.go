// Package runtime owns the process-level plumbing every service shares: the
// JSON logger, the HTTP and gRPC health listeners, background workers and the
// signal-driven graceful shutdown.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 10 * time.Second

func NewLogger(serviceID, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).With("service", serviceID)
	slog.SetDefault(logger)
	return logger
}

// Worker is a background loop that returns when its context ends.
type Worker func(ctx context.Context) error

type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	health     *health.Server
	workers    map[string]Worker
	order      []string
	cleanup    []func() error
}

func NewServer(logger *slog.Logger, httpPort, grpcPort int, handler http.Handler) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", grpcPort))
	if err != nil {
		return nil, fmt.Errorf("listen grpc: %w", err)
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{
		logger: logger,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", httpPort),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		grpcServer: grpcServer,
		grpcLis:    lis,
		health:     healthSrv,
		workers:    map[string]Worker{},
	}, nil
}

func (s *Server) AddWorker(name string, w Worker) {
	if _, ok := s.workers[name]; !ok {
		s.order = append(s.order, name)
	}
	s.workers[name] = w
}

// OnShutdown registers closers run in reverse order after the listeners stop.
func (s *Server) OnShutdown(fn func() error) {
	s.cleanup = append(s.cleanup, fn)
}

// Run serves until SIGINT/SIGTERM or the first component failure, then shuts
// everything down within shutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.grpcServer.Serve(s.grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	for _, name := range s.order {
		w := s.workers[name]
		g.Go(func() error {
			if err := w(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("service started",
		"module", "runtime",
		"layer", "bootstrap",
		"http_addr", s.httpServer.Addr,
		"grpc_addr", s.grpcLis.Addr().String(),
		"workers", s.order,
	)

	<-gctx.Done()
	s.health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown incomplete", "module", "runtime", "layer", "bootstrap", "error", err.Error())
	}
	s.grpcServer.GracefulStop()

	err := g.Wait()
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		if cerr := s.cleanup[i](); cerr != nil {
			s.logger.Warn("shutdown cleanup failed", "module", "runtime", "layer", "bootstrap", "error", cerr.Error())
		}
	}
	if err != nil {
		s.logger.Error("runtime failure", "module", "runtime", "layer", "bootstrap", "outcome", "failure", "error", err.Error())
		return err
	}
	s.logger.Info("service stopped", "module", "runtime", "layer", "bootstrap")
	return nil
}

// Close releases resources of a server that never ran.
func (s *Server) Close() {
	_ = s.grpcLis.Close()
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		_ = s.cleanup[i]()
	}
}
