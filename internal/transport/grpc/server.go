package grpcx

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Register вешает стандартный health-сервис на ops-листенер; k8s-пробы и
// балансировщики ходят сюда, realtime-протокол живёт целиком на WS.
func Register(grpcServer *grpc.Server) *health.Server {
	h := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, h)
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return h
}
