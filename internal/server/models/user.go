// Package models defines the server-side domain records: users, posts and
// the comments embedded in posts.
package models

import (
	"slices"
	"time"
)

// User is an identity together with its follow edges and owned posts.
//
// Followers and Following are sets stored as slices without duplicates;
// Posts is insertion ordered. PasswordHash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	Followers    []string  `json:"followers"`
	Following    []string  `json:"following"`
	Posts        []string  `json:"posts"`
	CreatedAt    time.Time `json:"created_at"`

	// ResetTokenHash and ResetTokenExpiry are set and cleared together.
	ResetTokenHash   string     `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = slices.Clone(u.PasswordHash)
	c.Followers = slices.Clone(u.Followers)
	c.Following = slices.Clone(u.Following)
	c.Posts = slices.Clone(u.Posts)
	if u.ResetTokenExpiry != nil {
		t := *u.ResetTokenExpiry
		c.ResetTokenExpiry = &t
	}
	return &c
}

// IsFollowing reports whether u follows id.
func (u *User) IsFollowing(id string) bool {
	return slices.Contains(u.Following, id)
}

// SetResetToken stores the hashed token and its expiry.
func (u *User) SetResetToken(hash string, expiry time.Time) {
	u.ResetTokenHash = hash
	u.ResetTokenExpiry = &expiry
}

// ClearResetToken removes both reset fields.
func (u *User) ClearResetToken() {
	u.ResetTokenHash = ""
	u.ResetTokenExpiry = nil
}

// AddID appends id to set unless present. It reports whether set changed.
func AddID(set []string, id string) ([]string, bool) {
	if slices.Contains(set, id) {
		return set, false
	}
	return append(set, id), true
}

// RemoveID deletes every occurrence of id from set, keeping the order of the
// rest. It reports whether set changed.
func RemoveID(set []string, id string) ([]string, bool) {
	n := len(set)
	set = slices.DeleteFunc(set, func(s string) bool { return s == id })
	return set, len(set) != n
}

// SetMember makes id present in or absent from set and reports whether set
// changed.
func SetMember(set []string, id string, present bool) ([]string, bool) {
	if present {
		return AddID(set, id)
	}
	return RemoveID(set, id)
}
