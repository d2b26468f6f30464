package handler

import (
	"encoding/json"
	"net/http"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServeHTTP mirrors the overall and upstream checks for HTTP probes: 200 when serving, 503 otherwise.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	overall, _ := s.Check(r.Context(), &healthpb.HealthCheckRequest{})
	upstream, _ := s.Check(r.Context(), &healthpb.HealthCheckRequest{Service: UpstreamService})
	code := http.StatusOK
	if overall.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":   overall.GetStatus().String(),
		"upstream": upstream.GetStatus().String(),
	})
}
