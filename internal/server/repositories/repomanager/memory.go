package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/users"
)

type MemoryRepositoryManager struct {
	users *users.MemoryRepository
	posts *posts.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users: users.NewMemoryRepository(),
		posts: posts.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *MemoryRepositoryManager) Users() users.Repository { return m.users }

func (m *MemoryRepositoryManager) Posts() posts.Repository { return m.posts }

func (m *MemoryRepositoryManager) Close() error { return nil }
