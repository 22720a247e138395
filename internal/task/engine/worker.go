package engine

import (
	"context"
	"runtime/debug"
	"time"

	"reporter/pkg/logx"
)

// execOne runs t once and never panics.
func (p *Pool) execOne(ctx context.Context, t Task) (out Outcome) {
	start := time.Now()
	out = Outcome{Name: t.Name, Started: start}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = p.cfg.DefaultTimeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p.log.Debug("task.started", logx.String("task", t.Name))
	func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				out.Err = &PanicError{Value: r, Stack: stack}
				p.log.Error("task.panic", logx.String("task", t.Name), logx.Any("panic", r), logx.String("stack", string(stack)))
			}
		}()
		if t.Run == nil {
			return
		}
		out.Err = t.Run(runCtx)
	}()
	out.Duration = time.Since(start)

	if out.Err != nil {
		p.log.Warn("task.failed", logx.String("task", t.Name), logx.Err(out.Err), logx.Duration("dur", out.Duration))
	} else {
		p.log.Debug("task.completed", logx.String("task", t.Name), logx.Duration("dur", out.Duration))
	}
	return out
}
