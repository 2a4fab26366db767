package tools

import (
	"context"
	"fmt"
	"log"
	"time"
)

const defaultCallTimeout = 10 * time.Second

// Observer receives tool call outcomes for metrics and notifications.
type Observer interface {
	ToolStarted(name string)
	ToolFinished(name string, failed bool)
}

// Bridge executes tool calls. Each call is attempted once; failures, panics,
// timeouts and unknown names become failure payloads instead of being
// dropped. A handler that ignores its context is abandoned at the deadline.
type Bridge struct {
	registry *Registry
	timeout  time.Duration
	observer Observer
}

type BridgeOption func(*Bridge)

func WithTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func WithObserver(o Observer) BridgeOption {
	return func(b *Bridge) { b.observer = o }
}

func NewBridge(registry *Registry, opts ...BridgeOption) *Bridge {
	b := &Bridge{registry: registry, timeout: defaultCallTimeout}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Handle(ctx context.Context, call Call) (resp Response) {
	resp = Response{ID: call.ID, Name: call.Name}
	if b.observer != nil {
		b.observer.ToolStarted(call.Name)
		defer func() { b.observer.ToolFinished(call.Name, resp.Failed) }()
	}

	tool, ok := b.registry.Lookup(call.Name)
	if !ok {
		return failure(resp, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name))
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type outcome struct {
		payload map[string]any
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		payload, err := invoke(callCtx, tool.Handler, call.Args)
		done <- outcome{payload, err}
	}()

	var payload map[string]any
	var err error
	select {
	case out := <-done:
		payload, err = out.payload, out.err
	case <-callCtx.Done():
		err = fmt.Errorf("%s did not answer: %w", call.Name, callCtx.Err())
	}
	if err != nil {
		log.Printf("tool %s (%s) failed: %v", call.Name, call.ID, err)
		return failure(resp, err)
	}
	if payload == nil {
		payload = map[string]any{"result": "ok"}
	}
	resp.Payload = payload
	return resp
}

func invoke(ctx context.Context, h Handler, args map[string]any) (payload map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, args)
}

func failure(resp Response, err error) Response {
	resp.Failed = true
	resp.Payload = map[string]any{
		"result": "error",
		"error":  err.Error(),
	}
	return resp
}
