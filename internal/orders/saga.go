package orders

import (
	"context"
	"time"
)

const compensationTimeout = 5 * time.Second

// compensations is a stack of undo steps; the last step added runs first.
type compensations struct {
	steps []func(context.Context)
}

func (c *compensations) add(step func(context.Context)) {
	c.steps = append([]func(context.Context){step}, c.steps...)
}

// run executes every step on a context detached from the caller's
// cancellation, since the caller's deadline is usually what failed.
func (c *compensations) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()
	for _, step := range c.steps {
		step(ctx)
	}
	c.steps = nil
}
