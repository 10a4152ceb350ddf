package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/access"
	"github.com/dmitrijs2005/gophsocial/internal/server/media"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/users"
)

var errNoImageStore = errors.New("image storage is not configured")

// ImageStore hands out direct upload and download URLs for image keys.
type ImageStore interface {
	UploadURL(ctx context.Context, key string) (string, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

// PostService creates, edits and lists posts and keeps the owner's post list
// in step.
type PostService struct {
	users  users.Repository
	posts  posts.Repository
	images ImageStore
	log    logging.Logger
}

// NewPostService builds a PostService. images may be nil, in which case
// posts cannot carry images.
func NewPostService(u users.Repository, p posts.Repository, images ImageStore, log logging.Logger) *PostService {
	return &PostService{users: u, posts: p, images: images, log: log.With("module", "posts")}
}

// CreatePost stores a post by ownerID and appends it to the owner's posts.
// With withImage set it also returns a URL the client uploads the image to.
func (s *PostService) CreatePost(ctx context.Context, ownerID, caption string, withImage bool) (*models.Post, string, error) {
	if _, err := s.users.FindByID(ctx, ownerID); err != nil {
		return nil, "", common.StoreFailure("user", ownerID, err)
	}

	post := &models.Post{OwnerID: ownerID, Caption: caption}
	var uploadURL string
	if withImage {
		if s.images == nil {
			return nil, "", common.InvalidOperation("post", "", errNoImageStore)
		}
		post.ImageKey = media.NewImageKey(ownerID)
		url, err := s.images.UploadURL(ctx, post.ImageKey)
		if err != nil {
			return nil, "", &common.Error{Kind: common.ErrorInternal, Entity: "image", Err: err}
		}
		uploadURL = url
	}

	p, err := s.posts.Create(ctx, post)
	if err != nil {
		return nil, "", common.StoreFailure("post", "", err)
	}
	ctx = context.WithoutCancel(ctx)

	if _, err := s.users.Update(ctx, ownerID, func(u *models.User) error {
		u.Posts, _ = models.AddID(u.Posts, p.ID)
		return nil
	}); err != nil {
		if derr := s.posts.Delete(ctx, p.ID); derr != nil {
			s.log.Error(ctx, "orphan post left behind", "post", p.ID, "owner", ownerID, "error", derr)
		}
		return nil, "", common.StoreFailure("user", ownerID, err)
	}
	return p, uploadURL, nil
}

func (s *PostService) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	p, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, common.StoreFailure("post", postID, err)
	}
	return p, nil
}

// AllPosts returns every post, newest first.
func (s *PostService) AllPosts(ctx context.Context) ([]*models.Post, error) {
	all, err := s.posts.FindAll(ctx)
	if err != nil {
		return nil, common.StoreFailure("post", "", err)
	}
	return all, nil
}

// UserPosts returns the posts of ownerID, newest first.
func (s *PostService) UserPosts(ctx context.Context, ownerID string) ([]*models.Post, error) {
	if _, err := s.users.FindByID(ctx, ownerID); err != nil {
		return nil, common.StoreFailure("user", ownerID, err)
	}
	owned, err := s.posts.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, common.StoreFailure("post", "", err)
	}
	return owned, nil
}

// Feed returns the posts of everyone actorID follows, newest first.
func (s *PostService) Feed(ctx context.Context, actorID string) ([]*models.Post, error) {
	u, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return nil, common.StoreFailure("user", actorID, err)
	}
	feed, err := s.posts.FindByOwners(ctx, u.Following)
	if err != nil {
		return nil, common.StoreFailure("post", "", err)
	}
	return feed, nil
}

// UpdateCaption lets the owner change the caption.
func (s *PostService) UpdateCaption(ctx context.Context, postID, actorID, caption string) (*models.Post, error) {
	var denied error
	p, err := s.posts.Update(ctx, postID, func(p *models.Post) error {
		if !access.CanEditCaption(actorID, p) {
			denied = common.Forbidden("post", postID)
			return denied
		}
		p.Caption = caption
		return nil
	})
	if denied != nil {
		return nil, denied
	}
	if err != nil {
		return nil, common.StoreFailure("post", postID, err)
	}
	return p, nil
}

// DeletePost lets the owner delete a post and drops it from the owner's
// post list.
func (s *PostService) DeletePost(ctx context.Context, postID, actorID string) error {
	p, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return common.StoreFailure("post", postID, err)
	}
	if !access.CanDeletePost(actorID, p) {
		return common.Forbidden("post", postID)
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return common.StoreFailure("post", postID, err)
	}
	if _, err := s.users.Update(ctx, p.OwnerID, func(u *models.User) error {
		u.Posts, _ = models.RemoveID(u.Posts, postID)
		return nil
	}); err != nil && !errors.Is(err, common.ErrorNotFound) {
		// A stale id in Posts is dropped by the account cascade.
		s.log.Warn(ctx, "post id left in owner list", "post", postID, "owner", p.OwnerID, "error", err)
	}
	return nil
}

// ImageURL returns a download URL for the post's image.
func (s *PostService) ImageURL(ctx context.Context, postID string) (string, error) {
	p, err := s.GetPost(ctx, postID)
	if err != nil {
		return "", err
	}
	if p.ImageKey == "" {
		return "", common.NotFound("image", postID)
	}
	if s.images == nil {
		return "", common.InvalidOperation("post", postID, errNoImageStore)
	}
	url, err := s.images.DownloadURL(ctx, p.ImageKey)
	if err != nil {
		return "", &common.Error{Kind: common.ErrorInternal, Entity: "image", ID: postID, Err: err}
	}
	return url, nil
}
