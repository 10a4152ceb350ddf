package access

import (
	"testing"

	"github.com/dmitrijs2005/gophsocial/internal/server/models"
	"github.com/stretchr/testify/assert"
)

func TestPostOwnership(t *testing.T) {
	post := &models.Post{ID: "p1", OwnerID: "owner"}

	tests := []struct {
		name  string
		actor string
		post  *models.Post
		want  bool
	}{
		{"owner", "owner", post, true},
		{"stranger", "other", post, false},
		{"empty actor", "", &models.Post{OwnerID: ""}, false},
		{"nil post", "owner", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanDeletePost(tt.actor, tt.post))
			assert.Equal(t, tt.want, CanEditCaption(tt.actor, tt.post))
		})
	}
}

func TestCanEditComment(t *testing.T) {
	post := &models.Post{ID: "p1", OwnerID: "owner"}
	comment := models.Comment{ID: "c1", UserID: "author", Text: "hi"}

	tests := []struct {
		name  string
		actor string
		post  *models.Post
		want  bool
	}{
		{"author", "author", post, true},
		{"post owner", "owner", post, true},
		{"third party", "other", post, false},
		{"empty actor", "", post, false},
		{"nil post", "author", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanEditComment(tt.actor, tt.post, comment))
		})
	}
}
