package statemachine

import "sort"

// Writer is an account: a display name plus a bcrypt password hash (never
// the plaintext — see pkg/security).
type Writer struct {
	Email        string
	Name         string
	PasswordHash string
}

// Comment is one comment on a Post, in the order it was applied.
type Comment struct {
	Email     string
	Text      string
	Timestamp string
}

// Post is a blog post and its engagement state.
type Post struct {
	ID        string
	Author    string
	Title     string
	Content   string
	Timestamp string
	Likes     map[string]struct{}
	Comments  []Comment
}

// LikeList returns likers in a stable (sorted) order, for serialisation
// and for read-only snapshots handed to the RPC surface.
func (p *Post) LikeList() []string {
	out := make([]string, 0, len(p.Likes))
	for email := range p.Likes {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}
