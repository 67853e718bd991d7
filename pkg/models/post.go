package models

import (
	"time"
)

// Reaction is the viewer's typed reaction to a post. ReactionNone means
// no reaction; setting a new type replaces any prior one.
type Reaction string

const (
	ReactionNone  Reaction = "none"
	ReactionLike  Reaction = "like"
	ReactionLove  Reaction = "love"
	ReactionHaha  Reaction = "haha"
	ReactionWow   Reaction = "wow"
	ReactionSad   Reaction = "sad"
	ReactionAngry Reaction = "angry"
)

func (r Reaction) Valid() bool {
	switch r {
	case ReactionNone, ReactionLike, ReactionLove, ReactionHaha,
		ReactionWow, ReactionSad, ReactionAngry:
		return true
	}
	return false
}

// Privacy mirrors the backend visibility levels.
type Privacy string

const (
	PrivacyEveryone Privacy = "EVERYONE"
	PrivacyFriends  Privacy = "FRIENDS"
	PrivacyOnlyMe   Privacy = "ONLY_ME"
)

type User struct {
	ID        int64  `json:"userId"`
	Name      string `json:"userName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// CommentState tracks a comment's submission lifecycle on this client.
// Server-originated comments are always CommentSent.
type CommentState string

const (
	CommentPending CommentState = "pending"
	CommentSent    CommentState = "sent"
	CommentFailed  CommentState = "failed"
)

type Comment struct {
	// ID is the server-assigned id, 0 while the comment is provisional.
	ID int64 `json:"commentId,omitempty"`
	// LocalID is the client-generated placeholder id, kept after
	// confirmation so a late echo can still match either identity.
	LocalID   string       `json:"localId,omitempty"`
	State     CommentState `json:"state,omitempty"`
	Author    User         `json:"user"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Confirmed reports whether the server has assigned this comment an id.
func (c *Comment) Confirmed() bool { return c.ID > 0 }

type Post struct {
	ID        int64     `json:"postId"`
	Author    User      `json:"user"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Privacy   Privacy   `json:"privacy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Likes     int       `json:"likeCount"`
	// Reaction is the current viewer's reaction, hydrated locally;
	// the feed endpoint does not include it.
	Reaction Reaction `json:"reaction,omitempty"`
	// Comments holds the locally materialized slice, newest first.
	// CommentCount may exceed len(Comments): comments can exist
	// server-side without having been fetched.
	Comments     []Comment `json:"comments,omitempty"`
	CommentCount int       `json:"commentCount"`
	Shares       int       `json:"shares,omitempty"`
}

// Merge folds server-provided fields of src into p without discarding
// local-only state (viewer reaction, materialized comments).
func (p *Post) Merge(src Post) {
	if src.Author.ID != 0 || src.Author.Name != "" {
		p.Author = src.Author
	}
	if src.Content != "" {
		p.Content = src.Content
	}
	if src.ImageURL != "" {
		p.ImageURL = src.ImageURL
	}
	if src.Privacy != "" {
		p.Privacy = src.Privacy
	}
	if !src.CreatedAt.IsZero() {
		p.CreatedAt = src.CreatedAt
	}
	p.Likes = src.Likes
	if src.Reaction != "" {
		p.Reaction = src.Reaction
	}
	if len(src.Comments) > 0 {
		p.Comments = src.Comments
	}
	if src.CommentCount > p.CommentCount {
		p.CommentCount = src.CommentCount
	}
	if p.CommentCount < len(p.Comments) {
		p.CommentCount = len(p.Comments)
	}
	if src.Shares > 0 {
		p.Shares = src.Shares
	}
}
