package automation

import "context"

// MaxDepth is how many nested workflow runs a chain of actions may trigger
const MaxDepth = 3

type depthKey struct{}

// depthFrom returns how many workflow runs enclose the context
func depthFrom(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// nested marks the context as running inside one more workflow
func nested(ctx context.Context) context.Context {
	return context.WithValue(ctx, depthKey{}, depthFrom(ctx)+1)
}
