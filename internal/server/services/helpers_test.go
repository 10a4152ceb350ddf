package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store down")

// failFunc decides whether the n-th call (1-based) for an id fails.
type failFunc func(n int) bool

func always(int) bool { return true }

func firstN(k int) failFunc { return func(n int) bool { return n <= k } }

func after(k int) failFunc { return func(n int) bool { return n > k } }

type calls struct {
	mu    sync.Mutex
	count map[string]int
	rules map[string]failFunc
}

func (c *calls) fail(op, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count == nil {
		c.count = make(map[string]int)
	}
	key := op + ":" + id
	c.count[key]++
	rule, ok := c.rules[key]
	return ok && rule(c.count[key])
}

func (c *calls) on(op, id string, f failFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rules == nil {
		c.rules = make(map[string]failFunc)
	}
	c.rules[op+":"+id] = f
}

// flakyUsers is an in-memory Identity Store with injectable write failures.
type flakyUsers struct {
	*users.MemoryRepository
	calls
}

func newFlakyUsers() *flakyUsers {
	return &flakyUsers{MemoryRepository: users.NewMemoryRepository()}
}

func (f *flakyUsers) Update(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error) {
	if f.fail("update", id) {
		return nil, errStoreDown
	}
	return f.MemoryRepository.Update(ctx, id, fn)
}

func (f *flakyUsers) Delete(ctx context.Context, id string) (*models.User, error) {
	if f.fail("delete", id) {
		return nil, errStoreDown
	}
	return f.MemoryRepository.Delete(ctx, id)
}

// flakyPosts is an in-memory Content Store with injectable failures.
type flakyPosts struct {
	*posts.MemoryRepository
	calls
}

func newFlakyPosts() *flakyPosts {
	return &flakyPosts{MemoryRepository: posts.NewMemoryRepository()}
}

func (f *flakyPosts) Update(ctx context.Context, id string, fn func(p *models.Post) error) (*models.Post, error) {
	if f.fail("update", id) {
		return nil, errStoreDown
	}
	return f.MemoryRepository.Update(ctx, id, fn)
}

func (f *flakyPosts) Delete(ctx context.Context, id string) error {
	if f.fail("delete", id) {
		return errStoreDown
	}
	return f.MemoryRepository.Delete(ctx, id)
}

func (f *flakyPosts) FindReferencing(ctx context.Context, userID string) ([]string, error) {
	if f.fail("referencing", userID) {
		return nil, errStoreDown
	}
	return f.MemoryRepository.FindReferencing(ctx, userID)
}

var fastRetry = RetryPolicy{Retries: 3, BaseDelay: time.Millisecond}

func nop() logging.Logger { return logging.NewNop() }

func mustUser(t *testing.T, repo users.Repository, id string) *models.User {
	t.Helper()
	u, err := repo.Create(context.Background(), &models.User{ID: id, Name: "user " + id, Email: id + "@example.com"})
	require.NoError(t, err)
	return u
}

func mustFind(t *testing.T, repo users.Repository, id string) *models.User {
	t.Helper()
	u, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func mustPost(t *testing.T, repo posts.Repository, id, owner string) *models.Post {
	t.Helper()
	p, err := repo.Create(context.Background(), &models.Post{ID: id, OwnerID: owner, Caption: "post " + id})
	require.NoError(t, err)
	return p
}

func mustFindPost(t *testing.T, repo posts.Repository, id string) *models.Post {
	t.Helper()
	p, err := repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p
}
