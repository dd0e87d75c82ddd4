package sideload

import "context"

// Agent is the contract an object payload's direct handle satisfies, shared
// with testdata/sdkmod. For testing purpose.
type Agent interface {
	Name() string
	Setup(ctx context.Context, token string) error
}
