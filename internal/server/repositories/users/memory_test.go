package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	u, err := r.Create(ctx, &models.User{Name: "Alice", Email: "alice@example.com", PasswordHash: []byte("h")})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	got, err = r.FindByEmail(ctx, "ALICE@example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = r.Create(ctx, &models.User{Name: "Other", Email: "alice@example.com"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = r.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_UpdateReindexesEmail(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	a, _ := r.Create(ctx, &models.User{Email: "a@example.com"})
	_, _ = r.Create(ctx, &models.User{Email: "b@example.com"})

	_, err := r.Update(ctx, a.ID, func(u *models.User) error {
		u.Email = "b@example.com"
		return nil
	})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = r.Update(ctx, a.ID, func(u *models.User) error {
		u.Email = "c@example.com"
		u.ID = "hijack"
		return nil
	})
	require.NoError(t, err)

	_, err = r.FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	got, err := r.FindByEmail(ctx, "c@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID, "id is immutable")
}

func TestMemory_ConcurrentEdgeUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	target, _ := r.Create(ctx, &models.User{Email: "t@example.com"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Update(ctx, target.ID, func(u *models.User) error {
				u.Followers, _ = models.AddID(u.Followers, string(rune('A'+i)))
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := r.FindByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Len(t, got.Followers, 50)
}

func TestMemory_ResetTokenLookup(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u, _ := r.Create(ctx, &models.User{Email: "r@example.com"})
	now := time.Now()

	_, err := r.Update(ctx, u.ID, func(u *models.User) error {
		u.SetResetToken("hash", now.Add(10*time.Minute))
		return nil
	})
	require.NoError(t, err)

	got, err := r.FindByResetToken(ctx, "hash", now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = r.FindByResetToken(ctx, "hash", now.Add(time.Hour))
	assert.ErrorIs(t, err, common.ErrorNotFound, "expired token must not match")

	_, err = r.FindByResetToken(ctx, "", now)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	a, _ := r.Create(ctx, &models.User{Email: "a@example.com"})
	b, _ := r.Create(ctx, &models.User{Email: "b@example.com"})

	last, err := r.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, last.ID)
	_, err = r.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = r.FindByEmail(ctx, "a@example.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	list, err := r.ListByIDs(ctx, []string{a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	_, err = r.Create(ctx, &models.User{Email: "a@example.com"})
	assert.NoError(t, err, "email is free again after delete")
}

func TestMemory_SaveReplacesRecord(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u, _ := r.Create(ctx, &models.User{Name: "old", Email: "s@example.com"})

	u.Name = "new"
	u.Following = []string{"x"}
	require.NoError(t, r.Save(ctx, u))

	got, _ := r.FindByID(ctx, u.ID)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, []string{"x"}, got.Following)

	assert.ErrorIs(t, r.Save(ctx, &models.User{ID: "ghost"}), common.ErrorNotFound)
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewMemoryRepository()
	_, err := r.FindByID(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_DeleteReturnsFinalState(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	a, _ := r.Create(ctx, &models.User{Email: "a@example.com"})
	_, err := r.Update(ctx, a.ID, func(u *models.User) error {
		u.Following, _ = models.AddID(u.Following, "b")
		return nil
	})
	require.NoError(t, err)

	last, err := r.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, last.Following)

	_, err = r.Update(ctx, a.ID, func(u *models.User) error { return nil })
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
