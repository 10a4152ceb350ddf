// Package users is the Identity Store: persistence of User records and
// their follow edges.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/server/models"
)

// Repository is implemented by the Postgres and in-memory stores. Lookups of
// absent users fail with common.ErrorNotFound; a duplicate email fails with
// common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByResetToken matches the hashed token among unexpired reset tokens.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	Save(ctx context.Context, user *models.User) error
	// Update applies fn to the current record atomically with respect to
	// other mutations of the same id and returns the stored result.
	Update(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error)
	// Delete removes id and returns its final state, taken under the same
	// lock as the removal.
	Delete(ctx context.Context, id string) (*models.User, error)
}
