package session

import (
	"context"
	"fmt"
)

type outcome struct {
	res Result
	err error
}

// Compute hashes a single input on a private Supervisor and waits for the
// result. A failed generation is returned as *Error; ctx cancellation returns
// ctx.Err().
func Compute(ctx context.Context, cfg Config, in Input, opts ...Option) (Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var gen uint64

	done := make(chan outcome, 1)

	obs := ObserverFuncs{
		OnProgress: o.progress,
		OnFailed: func(kind ErrorKind, err error) {
			done <- outcome{err: &Error{Kind: kind, Generation: gen, Err: err}}
		},
		OnCompleted: func(res Result) {
			done <- outcome{res: res}
		},
	}

	sup, err := New(cfg, obs, opts...)
	if err != nil {
		return Result{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopped := make(chan error, 1)

	gen = sup.Submit(in)

	go func() { stopped <- sup.Run(runCtx) }()

	select {
	case out := <-done:
		cancel()
		<-stopped

		return out.res, out.err

	case <-ctx.Done():
		<-stopped

		return Result{}, fmt.Errorf("compute: %w", ctx.Err())
	}
}
