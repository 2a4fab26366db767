package store

import (
	"context"
	"errors"
)

// Namespaces of the persisted snapshots. The values are fixed; there is no
// schema versioning, so format changes are breaking.
const (
	NamespaceAgents  = "agenthub_v9_agents"
	NamespaceHistory = "agenthub_v9_history"
)

var ErrEmptyNamespace = errors.New("store: empty namespace")

// Repository persists opaque JSON snapshots keyed by namespace.
type Repository interface {
	// Load returns the last saved snapshot. ok is false when nothing was saved.
	Load(ctx context.Context, namespace string) (snapshot []byte, ok bool, err error)
	Save(ctx context.Context, namespace string, snapshot []byte) error
	Close() error
}
