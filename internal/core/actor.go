package core

import "context"

type actorKey struct{}

// WithActor returns a context carrying the ID of the acting user
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user from ctx, or "" when unknown
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
