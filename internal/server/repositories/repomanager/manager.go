// Package repomanager hands out the Identity and Content stores for the
// configured storage backend.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Posts() posts.Repository
	Close() error
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// New returns the manager for backend. dsn is ignored by the memory backend.
func New(backend, dsn string) (RepositoryManager, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryRepositoryManager(), nil
	case BackendPostgres:
		m, err := NewPostgresRepositoryManager(dsn)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, &UnknownBackendError{Backend: backend}
}

type UnknownBackendError struct {
	Backend string
}

func (e *UnknownBackendError) Error() string {
	return "unknown storage backend: " + e.Backend
}
