package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type stubPinger struct {
	failing atomic.Bool
}

func (p *stubPinger) Ping(context.Context) error {
	if p.failing.Load() {
		return errors.New("database unreachable")
	}
	return nil
}

func listen(t *testing.T) net.Listener {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	return lis
}

func newPingApp() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestServer_ServesHTTPAndHealth(t *testing.T) {
	pinger := &stubPinger{}
	srv := New(Options{
		HTTPAddr:        "unused",
		HealthAddr:      "unused",
		ShutdownTimeout: time.Second,
		ProbeInterval:   50 * time.Millisecond,
	}, newPingApp(), pinger, zerolog.Nop())

	httpLis := listen(t)
	grpcLis := listen(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, httpLis, grpcLis)
	}()

	url := fmt.Sprintf("http://%s/ping", httpLis.Addr())
	waitFor(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	conn, err := grpc.NewClient(grpcLis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to create grpc client: %v", err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	statusOf := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN
		}
		return resp.GetStatus()
	}

	waitFor(t, func() bool { return statusOf() == healthpb.HealthCheckResponse_SERVING })

	pinger.failing.Store(true)
	waitFor(t, func() bool { return statusOf() == healthpb.HealthCheckResponse_NOT_SERVING })

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

func TestServer_WithoutHealthListener(t *testing.T) {
	srv := New(Options{HTTPAddr: "unused", ShutdownTimeout: time.Second}, newPingApp(), nil, zerolog.Nop())
	if srv.grpcServer != nil {
		t.Fatal("grpc server must not be created without health addr")
	}

	httpLis := listen(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx, httpLis, nil)
	}()

	url := fmt.Sprintf("http://%s/ping", httpLis.Addr())
	waitFor(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

func TestServer_RunListenError(t *testing.T) {
	t.Parallel()

	srv := New(Options{HTTPAddr: "256.0.0.1:bad"}, newPingApp(), nil, zerolog.Nop())
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}
