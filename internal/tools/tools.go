// Package tools dispatches tool calls from the realtime model to named
// capability handlers and turns every outcome into exactly one response.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrDuplicateTool = errors.New("tool already registered")
)

// Call is a tool invocation requested by the model.
type Call struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Response answers a Call. ID always matches the originating call.
type Response struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
	Failed  bool           `json:"failed,omitempty"`
}

type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool is a declared capability: its schema is sent to the model at session
// setup and Handler runs when the model calls it.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
	Handler     Handler
}

// NewTool derives the parameter schema from T and decodes call arguments into
// T before invoking fn.
func NewTool[T any](name, description string, fn func(ctx context.Context, args T) (map[string]any, error)) (Tool, error) {
	schema, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		return Tool{}, fmt.Errorf("schema for %s: %w", name, err)
	}
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Handler: func(ctx context.Context, raw map[string]any) (map[string]any, error) {
			var args T
			if err := decodeArgs(raw, &args); err != nil {
				return nil, fmt.Errorf("decode %s args: %w", name, err)
			}
			return fn(ctx, args)
		},
	}, nil
}

func MustNewTool[T any](name, description string, fn func(ctx context.Context, args T) (map[string]any, error)) Tool {
	t, err := NewTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

func decodeArgs(raw map[string]any, dst any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// Registry maps capability names to tools. Real integrations replace the
// simulated handlers by registering under the same name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("register tool %q: name and handler are required", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Replace registers t, overwriting any tool with the same name.
func (r *Registry) Replace(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Select resolves a persona's declared tool names, preserving their order.
func (r *Registry) Select(names []string) ([]Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}
		out = append(out, t)
	}
	return out, nil
}
