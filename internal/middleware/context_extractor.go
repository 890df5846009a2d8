// internal/middleware/context_extractor.go
package middleware

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"github.com/gurkanbulca/tasktracker/pkg/auth"
)

// ContextKey namespaces the values this package stores in a context.
type ContextKey string

const (
	ContextKeyIPAddress ContextKey = "ip_address"
	ContextKeyUserAgent ContextKey = "user_agent"
	ContextKeyClaims    ContextKey = "claims"
)

// MetadataExtractorInterceptor records the caller's address and user agent.
type MetadataExtractorInterceptor struct{}

// NewMetadataExtractorInterceptor creates a new metadata extractor interceptor
func NewMetadataExtractorInterceptor() *MetadataExtractorInterceptor {
	return &MetadataExtractorInterceptor{}
}

// Unary returns a unary server interceptor for metadata extraction
func (m *MetadataExtractorInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		return handler(m.enrichContext(ctx), req)
	}
}

// Stream returns a stream server interceptor for metadata extraction
func (m *MetadataExtractorInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &contextServerStream{
			ServerStream: stream,
			ctx:          m.enrichContext(stream.Context()),
		})
	}
}

func (m *MetadataExtractorInterceptor) enrichContext(ctx context.Context) context.Context {
	if ip := extractIPAddress(ctx); ip != "" {
		ctx = context.WithValue(ctx, ContextKeyIPAddress, ip)
	}
	if ua := extractUserAgent(ctx); ua != "" {
		ctx = context.WithValue(ctx, ContextKeyUserAgent, ua)
	}
	return ctx
}

func extractIPAddress(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	if tcpAddr, ok := p.Addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}

	addr := p.Addr.String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func extractUserAgent(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, header := range []string{"user-agent", "grpc-user-agent", "x-user-agent"} {
		if values := md.Get(header); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// contextServerStream replaces the context of a server stream.
type contextServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextServerStream) Context() context.Context {
	return s.ctx
}

// WithClaims returns ctx carrying the authenticated caller's claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// GetClaimsFromContext returns the claims stored by the auth interceptor.
func GetClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*auth.Claims)
	return claims, ok && claims != nil
}

// GetUserIDFromContext returns the authenticated user's id.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		return "", false
	}
	return claims.UserID, true
}

// GetIPAddressFromContext retrieves the client IP address from context
func GetIPAddressFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ContextKeyIPAddress).(string)
	return ip
}

// GetUserAgentFromContext retrieves the user agent from context
func GetUserAgentFromContext(ctx context.Context) string {
	ua, _ := ctx.Value(ContextKeyUserAgent).(string)
	return ua
}

// ClientInfo collects what is known about the caller of a request.
type ClientInfo struct {
	IPAddress string
	UserAgent string
	UserID    string
	UserEmail string
}

// GetClientInfoFromContext retrieves all client info from context
func GetClientInfoFromContext(ctx context.Context) *ClientInfo {
	info := &ClientInfo{
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
	}
	if claims, ok := GetClaimsFromContext(ctx); ok {
		info.UserID = claims.UserID
		info.UserEmail = claims.Email
	}
	return info
}
