// internal/middleware/validation.go
package middleware

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	tasktrackerv1 "github.com/gurkanbulca/tasktracker/api/tasktracker/v1"
	"github.com/gurkanbulca/tasktracker/internal/docstore"
)

// ValidationConfig holds request size limits.
type ValidationConfig struct {
	MaxEmailLength       int
	MaxPasswordLength    int
	MaxDisplayNameLength int
	MaxNameLength        int
	MaxDocumentFields    int
	MaxValueLength       int
}

// DefaultValidationConfig returns sensible defaults
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		MaxEmailLength:       255,
		MaxPasswordLength:    72,
		MaxDisplayNameLength: 100,
		MaxNameLength:        64,
		MaxDocumentFields:    32,
		MaxValueLength:       5000,
	}
}

// ValidationInterceptor rejects malformed or oversized requests before
// they reach a service.
type ValidationInterceptor struct {
	config *ValidationConfig
}

// NewValidationInterceptor creates a new validation interceptor
func NewValidationInterceptor(config *ValidationConfig) *ValidationInterceptor {
	if config == nil {
		config = DefaultValidationConfig()
	}
	return &ValidationInterceptor{config: config}
}

// Unary returns a unary server interceptor for validation
func (v *ValidationInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := v.validateRequest(req, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// Stream validates the request message of server-streaming calls.
func (v *ValidationInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		return handler(srv, &validatingServerStream{ServerStream: stream, validator: v, method: info.FullMethod})
	}
}

type validatingServerStream struct {
	grpc.ServerStream
	validator *ValidationInterceptor
	method    string
}

func (s *validatingServerStream) RecvMsg(m any) error {
	if err := s.ServerStream.RecvMsg(m); err != nil {
		return err
	}
	return s.validator.validateRequest(m, s.method)
}

func (v *ValidationInterceptor) validateRequest(req any, method string) error {
	msg, ok := req.(*structpb.Struct)
	if !ok {
		return nil
	}

	var problems []string
	switch method {
	case tasktrackerv1.AuthService_SignUp_FullMethodName:
		problems = v.validateCredentials(msg, true)
	case tasktrackerv1.AuthService_SignIn_FullMethodName:
		problems = v.validateCredentials(msg, false)
	case tasktrackerv1.AuthService_RefreshToken_FullMethodName:
		problems = v.validateRefreshRequest(msg)
	case tasktrackerv1.DocumentService_Query_FullMethodName, tasktrackerv1.DocumentService_Watch_FullMethodName:
		problems = v.validateQuery(msg)
	case tasktrackerv1.DocumentService_Insert_FullMethodName:
		problems = v.validateInsert(msg)
	case tasktrackerv1.DocumentService_Mutate_FullMethodName:
		problems = v.validateMutate(msg, true)
	case tasktrackerv1.DocumentService_Remove_FullMethodName:
		problems = v.validateMutate(msg, false)
	}

	if len(problems) > 0 {
		return status.Error(codes.InvalidArgument, strings.Join(problems, "; "))
	}
	return nil
}

func (v *ValidationInterceptor) validateCredentials(msg *structpb.Struct, signUp bool) []string {
	c, err := tasktrackerv1.CredentialsFromProto(msg)
	if err != nil {
		return []string{err.Error()}
	}

	var problems []string
	if strings.TrimSpace(c.Email) == "" {
		problems = append(problems, "email is required")
	} else if len(c.Email) > v.config.MaxEmailLength {
		problems = append(problems, fmt.Sprintf("email too long (max %d characters)", v.config.MaxEmailLength))
	}

	if c.Password == "" {
		problems = append(problems, "password is required")
	} else if len(c.Password) > v.config.MaxPasswordLength {
		problems = append(problems, fmt.Sprintf("password too long (max %d bytes)", v.config.MaxPasswordLength))
	}

	if signUp && len([]rune(c.DisplayName)) > v.config.MaxDisplayNameLength {
		problems = append(problems, fmt.Sprintf("display_name too long (max %d characters)", v.config.MaxDisplayNameLength))
	}
	return problems
}

func (v *ValidationInterceptor) validateRefreshRequest(msg *structpb.Struct) []string {
	r, err := tasktrackerv1.TokenRequestFromProto(msg)
	if err != nil {
		return []string{err.Error()}
	}
	if r.RefreshToken == "" {
		return []string{"refresh_token is required"}
	}
	return nil
}

func (v *ValidationInterceptor) validateQuery(msg *structpb.Struct) []string {
	q, err := tasktrackerv1.QueryFromProto(msg)
	if err != nil {
		return []string{err.Error()}
	}

	problems := v.validateName("collection", q.Collection)
	problems = append(problems, v.validateName("field", q.Field)...)
	if err := docstore.ValidateQuery(q); err != nil && q.Collection != "" && q.Field != "" {
		problems = append(problems, "value must be a string, number or boolean")
	}
	return problems
}

func (v *ValidationInterceptor) validateInsert(msg *structpb.Struct) []string {
	r, err := tasktrackerv1.InsertRequestFromProto(msg)
	if err != nil {
		return []string{err.Error()}
	}

	problems := v.validateName("collection", r.Collection)
	if len(r.Fields) == 0 {
		problems = append(problems, "fields are required")
	}
	return append(problems, v.validateFields(r.Fields)...)
}

func (v *ValidationInterceptor) validateMutate(msg *structpb.Struct, withFields bool) []string {
	r, err := tasktrackerv1.MutateRequestFromProto(msg)
	if err != nil {
		return []string{err.Error()}
	}

	problems := v.validateName("collection", r.Collection)
	if r.ID == "" {
		problems = append(problems, "id is required")
	} else if len(r.ID) > v.config.MaxNameLength {
		problems = append(problems, fmt.Sprintf("id too long (max %d characters)", v.config.MaxNameLength))
	}
	if withFields {
		problems = append(problems, v.validateFields(r.Fields)...)
	}
	return problems
}

func (v *ValidationInterceptor) validateName(what, name string) []string {
	if name == "" {
		return []string{what + " is required"}
	}
	if len(name) > v.config.MaxNameLength {
		return []string{fmt.Sprintf("%s too long (max %d characters)", what, v.config.MaxNameLength)}
	}
	return nil
}

func (v *ValidationInterceptor) validateFields(fields docstore.Fields) []string {
	var problems []string
	if len(fields) > v.config.MaxDocumentFields {
		problems = append(problems, fmt.Sprintf("too many fields (max %d)", v.config.MaxDocumentFields))
	}
	for key, value := range fields {
		if len(key) > v.config.MaxNameLength {
			problems = append(problems, fmt.Sprintf("field name %.16q... too long", key))
			continue
		}
		if s, ok := value.(string); ok && len(s) > v.config.MaxValueLength {
			problems = append(problems, fmt.Sprintf("%s too long (max %d characters)", key, v.config.MaxValueLength))
		}
	}
	return problems
}
