package handler

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"eviction-tracker/efiling/internal/resilience/breaker"
)

// UpstreamService is the health service name reporting the e-filing service circuit.
const UpstreamService = "efile.upstream"

const checkTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker verifies the in-process filing policy engine.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// CircuitReporter reports the shared e-filing circuit breaker state.
type CircuitReporter interface {
	State() breaker.State
}

// Server implements grpc.health.v1.Health for readiness/liveness.
// The overall service ("") checks the database and the policy engine; UpstreamService reports the circuit.
type Server struct {
	healthpb.UnimplementedHealthServer
	db      Pinger
	policy  PolicyChecker
	circuit CircuitReporter
}

// NewServer returns a health server. Any dependency may be nil and is then skipped.
func NewServer(db Pinger, policy PolicyChecker, circuit CircuitReporter) *Server {
	return &Server{db: db, policy: policy, circuit: circuit}
}

// Check never returns an error for a failed dependency; it reports NOT_SERVING instead.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	switch req.GetService() {
	case "":
		return &healthpb.HealthCheckResponse{Status: s.overall(ctx)}, nil
	case UpstreamService:
		st := healthpb.HealthCheckResponse_SERVING
		if s.circuit != nil && s.circuit.State() == breaker.StateOpen {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		return &healthpb.HealthCheckResponse{Status: st}, nil
	default:
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
}

func (s *Server) overall(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			log.Printf("health: database ping failed: %v", err)
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	if s.policy != nil {
		if err := s.policy.HealthCheck(ctx); err != nil {
			log.Printf("health: policy engine check failed: %v", err)
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return healthpb.HealthCheckResponse_SERVING
}
