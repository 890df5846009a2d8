package middleware

import (
	"context"
	"log"
	"time"

	"google.golang.org/grpc"
)

// LoggingInterceptor logs every call with its duration and caller.
type LoggingInterceptor struct {
	logger *log.Logger
}

// NewLoggingInterceptor creates a new logging interceptor
func NewLoggingInterceptor(logger *log.Logger) *LoggingInterceptor {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingInterceptor{logger: logger}
}

// Unary returns a unary server interceptor that logs each call
func (l *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		l.log(ctx, info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

// Stream returns a stream server interceptor that logs each stream
func (l *LoggingInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, stream)
		l.log(stream.Context(), info.FullMethod, time.Since(start), err)
		return err
	}
}

func (l *LoggingInterceptor) log(ctx context.Context, method string, duration time.Duration, err error) {
	clientInfo := GetClientInfoFromContext(ctx)
	level := "INFO"
	if err != nil {
		level = "ERROR"
	}
	l.logger.Printf("[%s] %s completed in %v (user: %s, ip: %s)",
		level, method, duration, clientInfo.UserID, clientInfo.IPAddress)
	if err != nil {
		l.logger.Printf("[ERROR] %s error: %v", method, err)
	}
}
