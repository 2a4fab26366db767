// Package roster owns the persisted list of agents.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ent0n29/agenthub/internal/persona"
	"github.com/ent0n29/agenthub/internal/store"
)

var (
	ErrNotFound = errors.New("agent not found")
	ErrExists   = errors.New("agent already exists")
)

// Service is read once at startup and written back after every mutation.
type Service struct {
	repo store.Repository

	mu     sync.RWMutex
	agents []persona.Persona
}

// New loads the saved roster, falling back to seed when nothing was
// persisted yet.
func New(ctx context.Context, repo store.Repository, seed []persona.Persona) (*Service, error) {
	r := &Service{repo: repo}
	data, ok, err := repo.Load(ctx, store.NamespaceAgents)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, &r.agents); err != nil {
			return nil, fmt.Errorf("decode roster: %w", err)
		}
		return r, nil
	}
	for _, p := range seed {
		r.agents = append(r.agents, p.Clone())
	}
	return r, nil
}

func (r *Service) List() []persona.Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]persona.Persona, len(r.agents))
	for i, p := range r.agents {
		out[i] = p.Clone()
	}
	return out
}

func (r *Service) Get(id string) (persona.Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.index(id); i >= 0 {
		return r.agents[i].Clone(), nil
	}
	return persona.Persona{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Create adds p, generating an id when none is given and the instruction
// from the behavior when only that is set.
func (r *Service) Create(ctx context.Context, p persona.Persona) (persona.Persona, error) {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = uuid.NewString()
	}
	fillInstruction(&p)
	if err := p.Validate(); err != nil {
		return persona.Persona{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(p.ID) >= 0 {
		return persona.Persona{}, fmt.Errorf("%w: %s", ErrExists, p.ID)
	}
	next := append(r.cloneLocked(), p.Clone())
	if err := r.saveLocked(ctx, next); err != nil {
		return persona.Persona{}, err
	}
	return p, nil
}

// Update replaces the agent with the same id.
func (r *Service) Update(ctx context.Context, id string, p persona.Persona) (persona.Persona, error) {
	p.ID = id
	fillInstruction(&p)
	if err := p.Validate(); err != nil {
		return persona.Persona{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return persona.Persona{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := r.cloneLocked()
	next[i] = p.Clone()
	if err := r.saveLocked(ctx, next); err != nil {
		return persona.Persona{}, err
	}
	return p, nil
}

func (r *Service) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := r.cloneLocked()
	next = append(next[:i], next[i+1:]...)
	return r.saveLocked(ctx, next)
}

func (r *Service) index(id string) int {
	for i := range r.agents {
		if r.agents[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Service) cloneLocked() []persona.Persona {
	out := make([]persona.Persona, len(r.agents))
	copy(out, r.agents)
	return out
}

// saveLocked persists next and only then makes it the current roster, so a
// failed write leaves memory and storage in agreement.
func (r *Service) saveLocked(ctx context.Context, next []persona.Persona) error {
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := r.repo.Save(ctx, store.NamespaceAgents, data); err != nil {
		return fmt.Errorf("save roster: %w", err)
	}
	r.agents = next
	return nil
}

func fillInstruction(p *persona.Persona) {
	if strings.TrimSpace(p.Instruction) == "" && strings.TrimSpace(p.Behavior) != "" {
		p.Instruction = persona.SystemPrompt(p.Name, p.Behavior)
	}
}
