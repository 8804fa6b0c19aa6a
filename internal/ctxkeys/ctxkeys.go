package ctxkeys

import (
	"context"

	"github.com/nurudeen19/rag-fortress/types"
)

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	requestIDKey       contextKey = "request_id"
	securityContextKey contextKey = "security_context"
)

// WithRequestID 设置请求 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID 获取请求 ID
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithSecurityContext 设置请求者的安全描述符（由认证中间件注入）
func WithSecurityContext(ctx context.Context, sc types.SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey, sc)
}

// SecurityContext 获取请求者的安全描述符
func SecurityContext(ctx context.Context) (types.SecurityContext, bool) {
	v, ok := ctx.Value(securityContextKey).(types.SecurityContext)
	return v, ok
}
