// Package models holds the client-side views of records returned by the
// gophsocial API.
package models

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Followers []string  `json:"followers"`
	Following []string  `json:"following"`
	Posts     []string  `json:"posts"`
	CreatedAt time.Time `json:"created_at"`
}

type Comment struct {
	ID     string `json:"id"`
	UserID string `json:"user"`
	Text   string `json:"comment"`
}

type Post struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner"`
	Caption   string    `json:"caption"`
	ImageKey  string    `json:"image_key,omitempty"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// CascadeStep is one line of an account deletion report.
type CascadeStep struct {
	Step   string `json:"step"`
	Target string `json:"target"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Failed returns the steps that did not complete.
func Failed(steps []CascadeStep) []CascadeStep {
	var out []CascadeStep
	for _, s := range steps {
		if s.Status == "failed" {
			out = append(out, s)
		}
	}
	return out
}
