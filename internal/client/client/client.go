package client

import (
	"context"

	"github.com/dmitrijs2005/gophsocial/internal/client/models"
)

// Client is the API surface the CLI uses.
type Client interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	Logout(ctx context.Context) error
	Token() string
	SetToken(token string)

	Me(ctx context.Context) (*models.User, error)
	ToggleFollow(ctx context.Context, userID string) (string, error)
	CreatePost(ctx context.Context, caption string, withImage bool) (*models.Post, string, error)
	ToggleLike(ctx context.Context, postID string) (bool, error)
	AddComment(ctx context.Context, postID, text string) (*models.Post, error)
	Feed(ctx context.Context) ([]*models.Post, error)
	DeleteMe(ctx context.Context) ([]models.CascadeStep, error)
}
