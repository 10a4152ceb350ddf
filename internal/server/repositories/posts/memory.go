package posts

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/arena"
	"github.com/google/uuid"
)

// MemoryRepository keeps posts in a per-id locked arena. refs indexes the
// users that appear in likes or comments so FindReferencing does not scan.
type MemoryRepository struct {
	records *arena.Arena[*models.Post]

	refsMu sync.Mutex
	refs   map[string]map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: arena.New((*models.Post).Clone),
		refs:    make(map[string]map[string]struct{}),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := post.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.Comments == nil {
		p.Comments = []models.Comment{}
	}

	r.refsMu.Lock()
	defer r.refsMu.Unlock()
	if err := r.records.Insert(p.ID, p); err != nil {
		return nil, err
	}
	r.index(p.ID, nil, p.Participants())
	return p.Clone(), nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.records.Get(id)
}

func (r *MemoryRepository) FindAll(ctx context.Context) ([]*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := r.records.All()
	slices.Reverse(all)
	return all, nil
}

func (r *MemoryRepository) FindByOwner(ctx context.Context, ownerID string) ([]*models.Post, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(p *models.Post) bool { return p.OwnerID != ownerID }), nil
}

func (r *MemoryRepository) FindByOwners(ctx context.Context, ownerIDs []string) ([]*models.Post, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(p *models.Post) bool { return !slices.Contains(ownerIDs, p.OwnerID) }), nil
}

func (r *MemoryRepository) FindReferencing(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.refsMu.Lock()
	defer r.refsMu.Unlock()
	ids := make([]string, 0, len(r.refs[userID]))
	for id := range r.refs[userID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *MemoryRepository) Save(ctx context.Context, post *models.Post) error {
	_, err := r.Update(ctx, post.ID, func(p *models.Post) error {
		*p = *post.Clone()
		return nil
	})
	return err
}

func (r *MemoryRepository) Update(ctx context.Context, id string, fn func(p *models.Post) error) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.records.Update(id, func(cur *models.Post) (*models.Post, error) {
		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.ID, next.OwnerID, next.CreatedAt = cur.ID, cur.OwnerID, cur.CreatedAt

		r.refsMu.Lock()
		r.index(cur.ID, cur.Participants(), next.Participants())
		r.refsMu.Unlock()
		return next, nil
	})
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.records.Remove(id, func(last *models.Post) {
		r.refsMu.Lock()
		defer r.refsMu.Unlock()
		r.index(last.ID, last.Participants(), nil)
	})
}

// index moves postID from the entries of before to those of after. The
// caller holds refsMu.
func (r *MemoryRepository) index(postID string, before, after []string) {
	for _, u := range before {
		if slices.Contains(after, u) {
			continue
		}
		delete(r.refs[u], postID)
		if len(r.refs[u]) == 0 {
			delete(r.refs, u)
		}
	}
	for _, u := range after {
		set, ok := r.refs[u]
		if !ok {
			set = make(map[string]struct{})
			r.refs[u] = set
		}
		set[postID] = struct{}{}
	}
}
