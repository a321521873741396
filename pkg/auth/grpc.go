package auth

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// grpcMethod is the RequestInfo.Method reported for gRPC calls.
const grpcMethod = "GRPC"

// UnaryServerInterceptor authenticates unary calls with policy, reading the
// bearer token from "authorization" metadata. Denials map to
// codes.Unauthenticated or codes.PermissionDenied; the status message
// follows the policy's detailed-responses setting.
func UnaryServerInterceptor(policy *Policy, opts ...MiddlewareOption) grpc.UnaryServerInterceptor {
	m := newMiddleware(policy, opts)
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := m.authenticateGRPC(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming form of [UnaryServerInterceptor].
func StreamServerInterceptor(policy *Policy, opts ...MiddlewareOption) grpc.StreamServerInterceptor {
	m := newMiddleware(policy, opts)
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := m.authenticateGRPC(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func (m *middleware) authenticateGRPC(ctx context.Context, fullMethod string) (context.Context, error) {
	var values []string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values = md.Get(HeaderAuthorization)
	}
	header := ""
	if len(values) > 0 {
		header = values[0]
	}

	d, skip := m.decide(ctx, RequestInfo{Method: grpcMethod, Path: fullMethod}, header, len(values) > 0)
	switch {
	case skip, d.Kind == DecisionPassThrough:
		return ctx, nil
	case d.Kind == DecisionAllow:
		return ContextWithClaims(ctx, d.Claims), nil
	}

	code := codes.Unauthenticated
	if d.Status() == http.StatusForbidden {
		code = codes.PermissionDenied
	}
	return ctx, status.Error(code, d.Body())
}

// UnaryClientInterceptor forwards the caller's bearer token on outgoing
// unary calls when the context holds claims and no authorization metadata
// is already set.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		return invoker(propagateTokenToGRPC(ctx), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor is the streaming form of [UnaryClientInterceptor].
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		return streamer(propagateTokenToGRPC(ctx), desc, cc, method, opts...)
	}
}

func propagateTokenToGRPC(ctx context.Context) context.Context {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.Token == "" {
		return ctx
	}
	if md, ok := metadata.FromOutgoingContext(ctx); ok && len(md.Get(HeaderAuthorization)) > 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, HeaderAuthorization, BearerHeader(claims.Token.Value()))
}

// wrappedServerStream overrides Context so stream handlers see the claims.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the authenticated context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
