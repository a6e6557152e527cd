package service

import (
	"context"
	"time"

	"github.com/Skotchmaster/storefront/pkg/logging"
)

const sideEffectTimeout = 5 * time.Second

type EffectFailure struct {
	Effect string
	Err    error
}

// Advisory collects side effects that failed after the primary operation
// committed. Failures are logged and never undo the primary result.
type Advisory struct {
	Failures []EffectFailure
}

func (a *Advisory) Degraded() bool { return len(a.Failures) > 0 }

func (a *Advisory) Effects() []string {
	out := make([]string, 0, len(a.Failures))
	for _, f := range a.Failures {
		out = append(out, f.Effect)
	}
	return out
}

// Run executes fn on a context detached from the caller's cancellation and
// bounded by sideEffectTimeout.
func (a *Advisory) Run(ctx context.Context, effect string, fn func(ctx context.Context) error) {
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := fn(ectx); err != nil {
		logging.FromContext(ctx).Warn("side_effect_failed", "effect", effect, "error", err)
		a.Failures = append(a.Failures, EffectFailure{Effect: effect, Err: err})
	}
}

// Result pairs the value of a committed operation with its advisory outcome.
type Result[T any] struct {
	Value    T
	Advisory Advisory
}
