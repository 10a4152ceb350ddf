package models

import (
	"slices"
	"time"
)

// Comment is embedded in a Post. ID is generated once and never changes.
type Comment struct {
	ID     string `json:"id"`
	UserID string `json:"user"`
	Text   string `json:"comment"`
}

// Post is owned by a User by reference. OwnerID is immutable after creation.
type Post struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner"`
	Caption   string    `json:"caption"`
	ImageKey  string    `json:"image_key,omitempty"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	c.Likes = slices.Clone(p.Likes)
	c.Comments = slices.Clone(p.Comments)
	return &c
}

// IsLikedBy reports whether userID is in the like set.
func (p *Post) IsLikedBy(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

// CommentIndex returns the position of the comment with id, or -1.
func (p *Post) CommentIndex(id string) int {
	return slices.IndexFunc(p.Comments, func(c Comment) bool { return c.ID == id })
}

// Participants returns the ids of users referenced through likes or
// comments, each once.
func (p *Post) Participants() []string {
	out := make([]string, 0, len(p.Likes)+len(p.Comments))
	for _, id := range p.Likes {
		out, _ = AddID(out, id)
	}
	for _, c := range p.Comments {
		out, _ = AddID(out, c.UserID)
	}
	return out
}

// References reports whether userID appears in likes or as a comment author.
func (p *Post) References(userID string) bool {
	if p.IsLikedBy(userID) {
		return true
	}
	return slices.ContainsFunc(p.Comments, func(c Comment) bool { return c.UserID == userID })
}

// ForgetUser removes userID from likes and drops every comment it authored.
// It reports whether anything changed.
func (p *Post) ForgetUser(userID string) bool {
	var changed bool
	p.Likes, changed = RemoveID(p.Likes, userID)
	n := len(p.Comments)
	p.Comments = slices.DeleteFunc(p.Comments, func(c Comment) bool { return c.UserID == userID })
	return changed || len(p.Comments) != n
}
