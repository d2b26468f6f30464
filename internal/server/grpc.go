package server

import (
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthhandler "eviction-tracker/efiling/internal/health/handler"
)

// Deps holds optional dependencies for the gRPC services.
type Deps struct {
	// HealthPinger is used by the health service for readiness (e.g. *sql.DB). If nil, Check skips the DB ping.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used for readiness (e.g. OPA evaluator). If nil, Check skips the policy check.
	HealthPolicyChecker healthhandler.PolicyChecker
	// Circuit reports the e-filing circuit breaker under the upstream health service name.
	Circuit healthhandler.CircuitReporter
}

// HealthServer builds the health service from deps. The HTTP router mounts the same instance.
func HealthServer(deps Deps) *healthhandler.Server {
	return healthhandler.NewServer(deps.HealthPinger, deps.HealthPolicyChecker, deps.Circuit)
}

// RegisterServices registers the gRPC services with the given server.
//
//   - grpc.health.v1.Health → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) *healthhandler.Server {
	h := HealthServer(deps)
	healthpb.RegisterHealthServer(s, h)
	return h
}
