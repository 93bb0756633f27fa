package contextx

import "context"

// RequestIDKey 请求ID上下文键，日志模块从这里读取
type RequestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey{}, id)
}

func GetRequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v := ctx.Value(RequestIDKey{}); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// NoteIDKey 当前请求操作的笔记ID
type NoteIDKey struct{}

func WithNoteID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, NoteIDKey{}, id)
}

func GetNoteID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v := ctx.Value(NoteIDKey{}); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}
