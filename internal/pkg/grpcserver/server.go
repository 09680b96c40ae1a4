package grpcserver

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"pocketbalance/internal/log"
)

// ServiceName is the health entry reported next to the overall "" entry.
const ServiceName = "pocketbalance.Ledger"

type Server struct {
	addr   string
	lis    net.Listener
	health *health.Server
	logger *log.Logger
	Server *grpc.Server
}

// New creates a server exposing grpc.health.v1 and reflection. Both health
// entries start as NOT_SERVING.
func New(addr string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentGRPC)

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	srv := &Server{addr: addr, health: hs, logger: logger, Server: s}
	srv.SetServing(false)
	return srv
}

// SetServing flips every health entry.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// ServeWhenReady marks the server SERVING once ready is closed.
func (s *Server) ServeWhenReady(ctx context.Context, ready <-chan struct{}) {
	go func() {
		select {
		case <-ready:
			s.SetServing(true)
			s.logger.Info("Ledger ready, health set to SERVING")
		case <-ctx.Done():
		}
	}()
}

// Start listens on addr and blocks serving.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve blocks serving on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.lis = lis
	s.logger.Info("gRPC server listening", "addr", lis.Addr().String())
	return s.Server.Serve(lis)
}

// Stop reports NOT_SERVING and drains open calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func loggingInterceptor(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.WarnContext(ctx, "gRPC call failed",
				"grpc_method", info.FullMethod,
				log.FieldError, err,
				log.FieldDuration, time.Since(start).Milliseconds())
		} else {
			logger.DebugContext(ctx, "gRPC call",
				"grpc_method", info.FullMethod,
				log.FieldDuration, time.Since(start).Milliseconds())
		}
		return resp, err
	}
}
