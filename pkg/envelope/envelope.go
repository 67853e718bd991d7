package envelope

import (
	"encoding/json"
	"time"

	"gummy/pkg/models"
)

// Chat-channel event types.
const (
	EventNewComment    = "NEW_COMMENT"
	EventDeleteComment = "DELETE_COMMENT"
	EventReactPost     = "REACT_POST"
)

// Friend-channel event types.
const (
	EventFriendRequestReceived = "friend_request_received"
	EventFriendRequestAccepted = "friend_request_accepted"
	EventFriendRemoved         = "friend_removed"
)

// Envelope is the tagged union carried over the realtime channels.
// Type selects the payload shape; unrecognized types are ignored by
// consumers, never fatal.
type Envelope struct {
	Type   string          `json:"type"`
	UserID int64           `json:"user_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	SentAt int64           `json:"ts,omitempty"`
}

func New(eventType string) Envelope {
	return Envelope{Type: eventType, SentAt: time.Now().UnixMilli()}
}

func NewEvent(eventType string, data interface{}) (Envelope, error) {
	e := New(eventType)
	raw, err := json.Marshal(data)
	if err != nil {
		return e, err
	}
	e.Data = raw
	return e, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

func ParseData[T any](e Envelope) (T, error) {
	var v T
	err := json.Unmarshal(e.Data, &v)
	return v, err
}

// CommentEvent is the NEW_COMMENT payload.
type CommentEvent struct {
	PostID    int64     `json:"postId"`
	CommentID int64     `json:"commentId"`
	Content   string    `json:"content"`
	UserID    int64     `json:"userId"`
	UserName  string    `json:"userName,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// DeleteCommentEvent is the DELETE_COMMENT payload.
type DeleteCommentEvent struct {
	PostID    int64 `json:"postId"`
	CommentID int64 `json:"commentId"`
}

// ReactEvent is the REACT_POST payload. Outbound events carry the
// reaction under "type"; the broadcast echo uses "reaction". Likes is
// optional: when present it is the server's authoritative count.
type ReactEvent struct {
	PostID   int64           `json:"postId"`
	Type     models.Reaction `json:"type,omitempty"`
	Reaction models.Reaction `json:"reaction,omitempty"`
	Likes    *int            `json:"likes,omitempty"`
	UserID   int64           `json:"userId,omitempty"`
}

// ReactionType returns whichever of the two reaction fields is set.
func (e ReactEvent) ReactionType() models.Reaction {
	if e.Reaction != "" {
		return e.Reaction
	}
	return e.Type
}
