package documentum

import "context"

// SystemActor is used when no caller identity is attached to the context.
const SystemActor = "system"

type actorKey struct{}

// WithActor attaches the caller identity used for audit attribution and
// edit locks.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller identity, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return SystemActor
}
