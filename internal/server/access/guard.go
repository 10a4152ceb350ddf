// Package access holds the authorization predicates applied before a post
// or comment is mutated. The predicates are pure; callers turn a false
// result into common.ErrorForbidden.
package access

import "github.com/dmitrijs2005/gophsocial/internal/server/models"

// CanDeletePost reports whether actorID owns post.
func CanDeletePost(actorID string, post *models.Post) bool {
	return post != nil && actorID != "" && actorID == post.OwnerID
}

// CanEditCaption follows the same ownership rule as CanDeletePost.
func CanEditCaption(actorID string, post *models.Post) bool {
	return CanDeletePost(actorID, post)
}

// CanEditComment reports whether actorID authored comment or owns post.
func CanEditComment(actorID string, post *models.Post, comment models.Comment) bool {
	if post == nil || actorID == "" {
		return false
	}
	return actorID == comment.UserID || actorID == post.OwnerID
}
