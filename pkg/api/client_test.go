package api

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"gummy/pkg/models"
	"gummy/pkg/session"
)

// startBackend runs a fiber app on an ephemeral port with the routes
// the caller registers.
func startBackend(t *testing.T, routes func(app *fiber.App)) string {
	t.Helper()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	routes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestFeedDecodesAndSendsBearer(t *testing.T) {
	auth := make(chan string, 1)
	url := startBackend(t, func(app *fiber.App) {
		app.Get("/api/posts/feed", func(c *fiber.Ctx) error {
			auth <- c.Get("Authorization")
			return c.JSON([]fiber.Map{
				{"postId": 2, "content": "newest", "likeCount": 3, "commentCount": 1},
				{"postId": 1, "content": "older"},
			})
		})
	})

	client := NewClient(url, session.New("tok123"))
	posts, err := client.Feed(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Equal(t, int64(2), posts[0].ID, "feed order preserved as served")
	require.Equal(t, 3, posts[0].Likes)
	require.Equal(t, "Bearer tok123", <-auth)
}

func TestReactSendsTypeQuery(t *testing.T) {
	type call struct{ id, typ string }
	calls := make(chan call, 1)
	url := startBackend(t, func(app *fiber.App) {
		app.Post("/api/posts/:id/react", func(c *fiber.Ctx) error {
			calls <- call{c.Params("id"), c.Query("type")}
			return c.SendStatus(fiber.StatusOK)
		})
	})

	client := NewClient(url, session.New("tok"))
	require.NoError(t, client.React(context.Background(), 9, models.ReactionLove))

	got := <-calls
	require.Equal(t, "9", got.id)
	require.Equal(t, "love", got.typ)
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	url := startBackend(t, func(app *fiber.App) {
		app.Get("/api/posts/feed", func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusUnauthorized)
		})
	})

	sess := session.New("expired")
	fired := false
	sess.OnInvalidated(func() { fired = true })

	client := NewClient(url, sess)
	_, err := client.Feed(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.True(t, fired)
	require.False(t, sess.LoggedIn())
}

func TestNon2xxBecomesStatusError(t *testing.T) {
	url := startBackend(t, func(app *fiber.App) {
		app.Post("/api/posts/:id/comments", func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusBadRequest).SendString("comment too long")
		})
	})

	client := NewClient(url, session.New("tok"))
	_, err := client.CreateComment(context.Background(), 1, "way too long")

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, fiber.StatusBadRequest, se.Status)
	require.Contains(t, se.Body, "comment too long")
}

func TestCreateCommentMarkedSent(t *testing.T) {
	url := startBackend(t, func(app *fiber.App) {
		app.Post("/api/posts/:id/comments", func(c *fiber.Ctx) error {
			var body struct {
				Content string `json:"content"`
			}
			if err := c.BodyParser(&body); err != nil {
				return err
			}
			return c.JSON(fiber.Map{"commentId": 42, "content": body.Content})
		})
	})

	client := NewClient(url, session.New("tok"))
	cm, err := client.CreateComment(context.Background(), 1, "hi")
	require.NoError(t, err)
	require.Equal(t, int64(42), cm.ID)
	require.Equal(t, "hi", cm.Content)
	require.Equal(t, models.CommentSent, cm.State)
}

func TestMyReactionEmptyMeansNone(t *testing.T) {
	url := startBackend(t, func(app *fiber.App) {
		app.Get("/api/posts/:id/reactions/me", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"type": ""})
		})
	})

	client := NewClient(url, session.New("tok"))
	r, err := client.MyReaction(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, models.ReactionNone, r)
}

func TestCommentsMarkedSent(t *testing.T) {
	url := startBackend(t, func(app *fiber.App) {
		app.Get("/api/posts/:id/comments", func(c *fiber.Ctx) error {
			return c.JSON([]fiber.Map{
				{"commentId": 1, "content": "a"},
				{"commentId": 2, "content": "b"},
			})
		})
	})

	client := NewClient(url, session.New("tok"))
	comments, err := client.Comments(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	for _, cm := range comments {
		require.Equal(t, models.CommentSent, cm.State)
	}
}

func TestFriendEndpoints(t *testing.T) {
	deleted := make(chan string, 1)
	url := startBackend(t, func(app *fiber.App) {
		app.Get("/api/friends/list", func(c *fiber.Ctx) error {
			return c.JSON([]fiber.Map{{"userId": 3, "userName": "maria"}})
		})
		app.Get("/api/friends/:id/status", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "pending"})
		})
		app.Delete("/api/friends/:id", func(c *fiber.Ctx) error {
			deleted <- c.Params("id")
			return c.SendStatus(fiber.StatusOK)
		})
	})

	client := NewClient(url, session.New("tok"))

	friends, err := client.FriendList(context.Background())
	require.NoError(t, err)
	require.Len(t, friends, 1)
	require.Equal(t, "maria", friends[0].Name)

	st, err := client.Friendship(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, "pending", st.Status)

	require.NoError(t, client.RemoveFriend(context.Background(), 3))
	require.Equal(t, "3", <-deleted)
}

func TestNetworkErrorPropagates(t *testing.T) {
	// Reserved then closed port: connection refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	client := NewClient(url, session.New("tok"))
	_, err = client.Feed(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnauthorized))

	var se *StatusError
	require.False(t, errors.As(err, &se), "transport failures are not status errors")
}
