package tts

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// Failover prefers Primary and switches to Fallback when it fails. Once the
// fallback has answered it stays active until it fails itself; then the
// primary is tried again.
type Failover struct {
	primary  Provider
	fallback Provider
	onBackup atomic.Bool
}

func NewFailover(primary, fallback Provider) *Failover {
	return &Failover{primary: primary, fallback: fallback}
}

func (f *Failover) Name() string {
	if f.onBackup.Load() {
		return f.fallback.Name()
	}
	return f.primary.Name()
}

func (f *Failover) Synthesize(ctx context.Context, req Request) (Result, error) {
	first, second := f.primary, f.fallback
	if f.onBackup.Load() {
		first, second = f.fallback, f.primary
	}
	res, firstErr := first.Synthesize(ctx, req)
	if firstErr == nil {
		return res, nil
	}
	if errors.Is(firstErr, ErrEmptyText) || ctx.Err() != nil {
		return Result{}, firstErr
	}
	res, err := second.Synthesize(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("%s failed: %v; %s failed: %w", first.Name(), firstErr, second.Name(), err)
	}
	f.onBackup.Store(second == f.fallback)
	return res, nil
}
