package rpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/mrshanahan/notes-service/pkg/auth"
	"github.com/mrshanahan/notes-service/pkg/notes"
)

const (
	AuthorizationKey = "authorization"
	RequestIDKey     = "request_id"
)

// UnaryServerInterceptor authenticates every call from its authorization
// metadata, attaches a request id, logs the call and converts service errors
// to gRPC statuses.
func UnaryServerInterceptor(verifier auth.Verifier, logger *slog.Logger) grpc.UnaryServerInterceptor {
	logger = logger.With("component", "GRPC")
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		md, _ := metadata.FromIncomingContext(ctx)

		requestID := first(md, RequestIDKey)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = notes.WithRequestID(ctx, requestID)
		grpc.SetHeader(ctx, metadata.Pairs(RequestIDKey, requestID))

		var resp interface{}
		ctx, err := authenticate(ctx, verifier, md)
		if err == nil {
			resp, err = handler(ctx, req)
		}

		elapsed := time.Since(start)
		if err != nil {
			st := ToStatus(err)
			level := slog.LevelInfo
			if st.Code() == codes.Internal || st.Code() == codes.Unavailable {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "call failed",
				"method", info.FullMethod,
				"request_id", requestID,
				"code", st.Code().String(),
				"elapsed", elapsed,
				"err", err)
			return nil, st.Err()
		}
		logger.Info("call completed",
			"method", info.FullMethod,
			"request_id", requestID,
			"elapsed", elapsed)
		return resp, nil
	}
}

// authenticate returns the context carrying the caller identity.
func authenticate(ctx context.Context, verifier auth.Verifier, md metadata.MD) (context.Context, error) {
	header := first(md, AuthorizationKey)
	if header == "" {
		return ctx, &notes.AuthenticationError{Reason: "missing authorization metadata"}
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ctx, &notes.AuthenticationError{Reason: "authorization metadata must be a bearer token"}
	}
	who, err := verifier.Verify(ctx, strings.TrimSpace(token))
	if err != nil {
		return ctx, err
	}
	return notes.WithIdentity(ctx, who), nil
}

// ToStatus maps a service error to a gRPC status. Internal failures keep
// their message out of the status.
func ToStatus(err error) *status.Status {
	if st, ok := status.FromError(err); ok {
		return st
	}
	switch {
	case errors.Is(err, notes.ErrValidation):
		return status.New(codes.InvalidArgument, err.Error())
	case errors.Is(err, notes.ErrAuthentication):
		return status.New(codes.Unauthenticated, err.Error())
	case errors.Is(err, notes.ErrAccessDenied):
		return status.New(codes.PermissionDenied, err.Error())
	case errors.Is(err, notes.ErrNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, notes.ErrLimitExceeded):
		return status.New(codes.ResourceExhausted, err.Error())
	case errors.Is(err, notes.ErrPublish):
		return status.New(codes.Unavailable, err.Error())
	default:
		return status.New(codes.Internal, "internal error")
	}
}

func first(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
