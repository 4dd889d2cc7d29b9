package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "upload_ip"
	ctxKeyUserAgent contextKey = "upload_ua"
)

// ContextWithClient stores the caller's address and user agent for auditing.
func ContextWithClient(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyIPAddress, ip)
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// MetaFromContext builds UploadMeta for fileName from values stored by
// ContextWithClient.
func MetaFromContext(ctx context.Context, fileName string) UploadMeta {
	meta := UploadMeta{FileName: fileName}
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		meta.IPAddress = v
	}
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		meta.UserAgent = v
	}
	return meta
}
