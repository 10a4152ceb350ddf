package users

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/arena"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in a per-id locked arena plus an email index.
type MemoryRepository struct {
	records *arena.Arena[*models.User]

	emailMu sync.Mutex
	byEmail map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: arena.New((*models.User).Clone),
		byEmail: make(map[string]string),
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u := user.Clone()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	key := emailKey(u.Email)
	r.emailMu.Lock()
	defer r.emailMu.Unlock()
	if _, taken := r.byEmail[key]; taken {
		return nil, common.ErrorAlreadyExists
	}
	if err := r.records.Insert(u.ID, u); err != nil {
		return nil, err
	}
	r.byEmail[key] = u.ID
	return u.Clone(), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.records.Get(id)
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.emailMu.Lock()
	id, ok := r.byEmail[emailKey(email)]
	r.emailMu.Unlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	return r.records.Get(id)
}

func (r *MemoryRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tokenHash == "" {
		return nil, common.ErrorNotFound
	}
	for _, u := range r.records.All() {
		if u.ResetTokenHash == tokenHash && u.ResetTokenExpiry != nil && u.ResetTokenExpiry.After(now) {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) ListByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		u, err := r.FindByID(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *MemoryRepository) Save(ctx context.Context, user *models.User) error {
	_, err := r.Update(ctx, user.ID, func(u *models.User) error {
		*u = *user.Clone()
		return nil
	})
	return err
}

func (r *MemoryRepository) Update(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.records.Update(id, func(cur *models.User) (*models.User, error) {
		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.ID = cur.ID
		next.CreatedAt = cur.CreatedAt
		if err := r.reindexEmail(cur, next); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// reindexEmail runs under the record lock of cur.
func (r *MemoryRepository) reindexEmail(cur, next *models.User) error {
	oldKey, newKey := emailKey(cur.Email), emailKey(next.Email)
	if oldKey == newKey {
		return nil
	}
	r.emailMu.Lock()
	defer r.emailMu.Unlock()
	if owner, taken := r.byEmail[newKey]; taken && owner != cur.ID {
		return common.ErrorAlreadyExists
	}
	delete(r.byEmail, oldKey)
	r.byEmail[newKey] = cur.ID
	return nil
}

// Delete removes id and returns the record as it was at removal, after
// every write that completed before it.
func (r *MemoryRepository) Delete(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var removed *models.User
	err := r.records.Remove(id, func(last *models.User) {
		removed = last.Clone()
		r.emailMu.Lock()
		defer r.emailMu.Unlock()
		if r.byEmail[emailKey(last.Email)] == last.ID {
			delete(r.byEmail, emailKey(last.Email))
		}
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}
