package envelope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gummy/pkg/models"
)

func TestNewEventRoundTrip(t *testing.T) {
	env, err := NewEvent(EventNewComment, CommentEvent{PostID: 1, CommentID: 42, Content: "hi", UserID: 5})
	require.NoError(t, err)
	require.NotZero(t, env.SentAt)

	raw, err := env.Marshal()
	require.NoError(t, err)

	decoded, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, EventNewComment, decoded.Type)

	ev, err := ParseData[CommentEvent](decoded)
	require.NoError(t, err)
	require.Equal(t, int64(42), ev.CommentID)
	require.Equal(t, "hi", ev.Content)
}

func TestUnmarshalBroadcastShape(t *testing.T) {
	// The shape the backend broadcasts, extra fields included.
	raw := []byte(`{"type":"REACT_POST","data":{"postId":3,"reaction":"love","likes":7,"userId":9},"server":"n1"}`)

	env, err := Unmarshal(raw)
	require.NoError(t, err)
	require.Equal(t, EventReactPost, env.Type)

	ev, err := ParseData[ReactEvent](env)
	require.NoError(t, err)
	require.Equal(t, int64(3), ev.PostID)
	require.Equal(t, models.ReactionLove, ev.ReactionType())
	require.NotNil(t, ev.Likes)
	require.Equal(t, 7, *ev.Likes)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	require.Error(t, err)
}

func TestReactionTypePreference(t *testing.T) {
	ev := ReactEvent{Type: models.ReactionLike, Reaction: models.ReactionSad}
	require.Equal(t, models.ReactionSad, ev.ReactionType(), "broadcast field wins over outbound field")

	ev = ReactEvent{Type: models.ReactionLike}
	require.Equal(t, models.ReactionLike, ev.ReactionType())

	require.Equal(t, models.Reaction(""), ReactEvent{}.ReactionType())
}
