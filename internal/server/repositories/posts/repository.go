// Package posts is the Content Store: persistence of Post records together
// with their like sets and comment lists.
package posts

import (
	"context"

	"github.com/dmitrijs2005/gophsocial/internal/server/models"
)

// Repository is implemented by the Postgres and in-memory stores. Lookups of
// absent posts fail with common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	FindByID(ctx context.Context, id string) (*models.Post, error)
	// FindAll, FindByOwner and FindByOwners return posts newest first.
	FindAll(ctx context.Context) ([]*models.Post, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*models.Post, error)
	FindByOwners(ctx context.Context, ownerIDs []string) ([]*models.Post, error)
	// FindReferencing returns ids of posts that userID liked or commented on.
	FindReferencing(ctx context.Context, userID string) ([]string, error)
	Save(ctx context.Context, post *models.Post) error
	// Update applies fn to the current record atomically with respect to
	// other mutations of the same id and returns the stored result. ID,
	// OwnerID and CreatedAt cannot be changed by fn.
	Update(ctx context.Context, id string, fn func(p *models.Post) error) (*models.Post, error)
	Delete(ctx context.Context, id string) error
}
