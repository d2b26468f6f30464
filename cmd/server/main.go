// Server exposes the filing API over HTTP and grpc.health.v1 over gRPC.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"eviction-tracker/efiling/internal/app"
	"eviction-tracker/efiling/internal/config"
	"eviction-tracker/efiling/internal/server"
	"eviction-tracker/efiling/internal/telemetry"
	otelsetup "eviction-tracker/efiling/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	providers, err := otelsetup.NewProviders(ctx, otelsetup.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	a, err := app.Build(ctx, cfg, app.Options{
		ExtraEmitters: []telemetry.EventEmitter{otelsetup.NewEventEmitter(providers.LoggerProvider)},
	})
	if err != nil {
		log.Fatalf("app: %v", err)
	}

	deps := server.Deps{HealthPolicyChecker: a.Policy, Circuit: a.Breaker}
	if a.DB != nil {
		deps.HealthPinger = a.DB
	}
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	health := server.RegisterServices(s, deps)

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewRouter(server.HTTPDeps{
			Filings: a.Filings,
			Drafts:  a.Drafts,
			Health:  health,
			Events:  a.Events,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down servers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	s.GracefulStop()

	// Let in-flight async event emits finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := a.Close(); err != nil {
		log.Printf("app close: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("servers stopped")
}
