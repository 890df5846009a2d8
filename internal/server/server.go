// Package server assembles the tasktracker gRPC server.
package server

import (
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/internal/middleware"
	"github.com/gurkanbulca/tasktracker/internal/service"
	"github.com/gurkanbulca/tasktracker/pkg/auth"
)

type Options struct {
	AuthService      *service.AuthService
	DocumentService  *service.DocumentService
	TokenManager     *auth.TokenManager
	Revoker          auth.Revoker
	Validation       *middleware.ValidationConfig
	Logger           *log.Logger
	EnableReflection bool
}

// New builds a server with the interceptor chain and every service registered.
// The returned health server reports all services as serving.
func New(opts Options) (*grpc.Server, *health.Server) {
	metadataExtractor := middleware.NewMetadataExtractorInterceptor()
	validationInterceptor := middleware.NewValidationInterceptor(opts.Validation)
	authInterceptor := middleware.NewAuthInterceptor(opts.TokenManager, opts.Revoker)
	loggingInterceptor := middleware.NewLoggingInterceptor(opts.Logger)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			metadataExtractor.Unary(),
			validationInterceptor.Unary(),
			authInterceptor.Unary(),
			loggingInterceptor.Unary(),
		),
		grpc.ChainStreamInterceptor(
			metadataExtractor.Stream(),
			validationInterceptor.Stream(),
			authInterceptor.Stream(),
			loggingInterceptor.Stream(),
		),
	)

	tasktrackerv1.RegisterAuthServiceServer(grpcServer, opts.AuthService)
	tasktrackerv1.RegisterDocumentServiceServer(grpcServer, opts.DocumentService)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(tasktrackerv1.AuthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(tasktrackerv1.DocumentServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	if opts.EnableReflection {
		reflection.Register(grpcServer)
	}
	return grpcServer, healthServer
}
