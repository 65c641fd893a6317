package ctxutil

import (
	"context"
	"strings"
)

type ownerDataKey struct{}

// OwnerData identifies whose aggregate a request writes to by default.
type OwnerData struct {
	OwnerID string
}

func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerDataKey{}, &OwnerData{OwnerID: strings.TrimSpace(ownerID)})
}

// OwnerID returns the session owner attached to ctx, or "".
func OwnerID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if od, ok := ctx.Value(ownerDataKey{}).(*OwnerData); ok && od != nil {
		return od.OwnerID
	}
	return ""
}

// ResolveOwner prefers an explicit owner and falls back to the context owner.
func ResolveOwner(ctx context.Context, explicit string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}
	return OwnerID(ctx)
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
