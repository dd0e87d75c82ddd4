// Package sdk is the object-payload flavor of the test module. Compile it to
// a relocatable object file (sdkmod.o) with goloader's tooling to exercise
// ObjectSource end to end; tests skip when the object file is absent.
package sdk

import "context"

var (
	calls int
	token string
)

// Setup is the module entry point.
func Setup(ctx context.Context, t string) error {
	calls++
	token = t
	return nil
}

// NewAgent returns the module's direct handle for reflective fallback.
func NewAgent() Agent {
	return agent{}
}

// Agent mirrors the host-side contract of the same name.
type Agent interface {
	Name() string
	Setup(ctx context.Context, token string) error
}

type agent struct{}

func (agent) Name() string {
	return "sdkmod"
}

func (agent) Setup(ctx context.Context, t string) error {
	return Setup(ctx, t)
}
