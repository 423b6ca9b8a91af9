package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName は gRPC ヘルスチェックで公開するサービス名です。
const ServiceName = "personnel.v1.EmployeeService"

const (
	defaultProbeInterval   = 10 * time.Second
	defaultShutdownTimeout = 15 * time.Second
)

// Pinger はストレージの疎通確認を行います。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options は Server の構成です。HealthAddr が空の場合 gRPC ヘルスチェックは起動しません。
type Options struct {
	HTTPAddr        string
	HealthAddr      string
	ShutdownTimeout time.Duration
	ProbeInterval   time.Duration
}

// Server は HTTP API と gRPC ヘルスチェックのライフサイクルを管理します。
type Server struct {
	opts       Options
	app        *fiber.App
	pinger     Pinger
	log        zerolog.Logger
	grpcServer *grpc.Server
	health     *health.Server
}

// New は HTTP アプリケーションと、必要であれば gRPC ヘルスサーバーを構築します。
func New(opts Options, app *fiber.App, pinger Pinger, log zerolog.Logger, grpcOpts ...grpc.ServerOption) *Server {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = defaultProbeInterval
	}

	s := &Server{
		opts:   opts,
		app:    app,
		pinger: pinger,
		log:    log,
	}

	if opts.HealthAddr != "" {
		s.grpcServer = grpc.NewServer(grpcOpts...)
		s.health = health.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.health)
		reflection.Register(s.grpcServer)
	}

	return s
}

// Run はリスナーを開いてサーバーを起動し、コンテキストがキャンセルされると安全に停止します。
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.opts.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.HTTPAddr, err)
	}

	var grpcLis net.Listener
	if s.grpcServer != nil {
		grpcLis, err = net.Listen("tcp", s.opts.HealthAddr)
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen on %s: %w", s.opts.HealthAddr, err)
		}
	}

	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve は与えられたリスナーで待ち受けます。grpcLis は gRPC ヘルスサーバーが無効な場合 nil です。
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info().Str("addr", httpLis.Addr().String()).Msg("http server listening")
		if err := s.app.Listener(httpLis); err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	if s.grpcServer != nil && grpcLis != nil {
		s.updateHealth(gctx)

		g.Go(func() error {
			s.log.Info().Str("addr", grpcLis.Addr().String()).Msg("grpc health server listening")
			if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			s.probe(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info().Msg("shutting down")

	if s.grpcServer != nil {
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}

// probe はストレージの疎通に合わせてヘルスステータスを更新し続けます。
func (s *Server) probe(ctx context.Context) {
	ticker := time.NewTicker(s.opts.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateHealth(ctx)
		}
	}
}

func (s *Server) updateHealth(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.opts.ProbeInterval)
		err := s.pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Msg("storage ping failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
