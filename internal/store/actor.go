package store

import "context"

type actorKey struct{}

// SystemActor is recorded when a write carries no actor.
const SystemActor = "system"

// WithActor tags ctx with the user or key name recorded in the audit log.
func WithActor(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actorKey{}, name)
}

// ActorFrom returns the actor set by WithActor, or SystemActor.
func ActorFrom(ctx context.Context) string {
	if name, ok := ctx.Value(actorKey{}).(string); ok && name != "" {
		return name
	}
	return SystemActor
}
