package services

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/gophsocial/internal/common"
	"github.com/dmitrijs2005/gophsocial/internal/logging"
	"github.com/dmitrijs2005/gophsocial/internal/server/access"
	"github.com/dmitrijs2005/gophsocial/internal/server/metrics"
	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/dmitrijs2005/gophsocial/internal/server/repositories/posts"
	"github.com/google/uuid"
)

// EngagementService toggles likes and manages comments. Every mutation is a
// single read-modify-write on the post so concurrent calls never lose an
// update.
type EngagementService struct {
	posts   posts.Repository
	log     logging.Logger
	metrics *metrics.Metrics
	newID   func() string
}

func NewEngagementService(p posts.Repository, log logging.Logger, m *metrics.Metrics) *EngagementService {
	return &EngagementService{
		posts:   p,
		log:     log.With("module", "engagement"),
		metrics: m,
		newID:   uuid.NewString,
	}
}

// ToggleLike adds actorID to the post's likes, or removes it if present,
// and reports whether the actor now likes the post.
func (s *EngagementService) ToggleLike(ctx context.Context, postID, actorID string) (bool, error) {
	var liked bool
	_, err := s.posts.Update(ctx, postID, func(p *models.Post) error {
		liked = !p.IsLikedBy(actorID)
		p.Likes, _ = models.SetMember(p.Likes, actorID, liked)
		return nil
	})
	if err != nil {
		return false, common.StoreFailure("post", postID, err)
	}
	s.metrics.Like(liked)
	return liked, nil
}

// AddComment appends a comment by actorID with a fresh id.
func (s *EngagementService) AddComment(ctx context.Context, postID, actorID, text string) (*models.Post, error) {
	c := models.Comment{ID: s.newID(), UserID: actorID, Text: text}
	p, err := s.posts.Update(ctx, postID, func(p *models.Post) error {
		p.Comments = append(p.Comments, c)
		return nil
	})
	if err != nil {
		return nil, common.StoreFailure("post", postID, err)
	}
	s.metrics.Comment("add")
	return p, nil
}

// UpdateComment replaces the text of a comment in place. Only the comment's
// author or the post owner may do so.
func (s *EngagementService) UpdateComment(ctx context.Context, postID, commentID, actorID, text string) (*models.Post, error) {
	p, err := s.editComment(ctx, postID, commentID, actorID, func(p *models.Post, i int) {
		p.Comments[i].Text = text
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Comment("update")
	return p, nil
}

// DeleteComment removes a comment, keeping the order of the others. Same
// authorization as UpdateComment.
func (s *EngagementService) DeleteComment(ctx context.Context, postID, commentID, actorID string) (*models.Post, error) {
	p, err := s.editComment(ctx, postID, commentID, actorID, func(p *models.Post, i int) {
		p.Comments = slices.Delete(p.Comments, i, i+1)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Comment("delete")
	return p, nil
}

// editComment looks the comment up, checks access and applies edit, all
// under the post's update lock.
func (s *EngagementService) editComment(ctx context.Context, postID, commentID, actorID string, edit func(p *models.Post, i int)) (*models.Post, error) {
	var rejected error
	p, err := s.posts.Update(ctx, postID, func(p *models.Post) error {
		i := p.CommentIndex(commentID)
		switch {
		case i < 0:
			rejected = common.NotFound("comment", commentID)
		case !access.CanEditComment(actorID, p, p.Comments[i]):
			rejected = common.Forbidden("comment", commentID)
		default:
			edit(p, i)
			return nil
		}
		return rejected
	})
	if rejected != nil {
		return nil, rejected
	}
	if err != nil {
		return nil, common.StoreFailure("post", postID, err)
	}
	return p, nil
}
