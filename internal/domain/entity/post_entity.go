package entity

import (
	"sort"
	"time"
)

// MaxPostTextLength is the upper bound on Post.Text, counted in runes.
const MaxPostTextLength = 500

// Post is the aggregate root for the post domain.
// Likes and Replies are embedded and only mutated through the repository's
// atomic operations.
type Post struct {
	ID        string
	PostedBy  string
	Text      string
	Img       string
	Likes     []string
	Replies   []Reply
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reply is embedded in Post. Username and UserProfilePic are a snapshot of
// the author at reply time.
type Reply struct {
	UserID         string
	Text           string
	Username       string
	UserProfilePic string
	CreatedAt      time.Time
}

// LikedBy reports whether userID is in the likes set.
func (p *Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// SortRepliesDesc orders replies newest first.
func SortRepliesDesc(replies []Reply) {
	sort.SliceStable(replies, func(i, j int) bool {
		return replies[i].CreatedAt.After(replies[j].CreatedAt)
	})
}

// SortPostsDesc orders posts newest first.
func SortPostsDesc(posts []*Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

// PostEventType names a post lifecycle event.
type PostEventType string

const (
	PostCreated PostEventType = "post.created"
	PostDeleted PostEventType = "post.deleted"
	PostLiked   PostEventType = "post.liked"
	PostUnliked PostEventType = "post.unliked"
	PostReplied PostEventType = "post.replied"
)

// PostEvent is published after a post mutation has been persisted.
type PostEvent struct {
	Type      PostEventType `json:"type"`
	PostID    string        `json:"post_id"`
	PostOwner string        `json:"post_owner"`
	ActorID   string        `json:"actor_id"`
	Text      string        `json:"text,omitempty"`
	At        time.Time     `json:"at"`
}
