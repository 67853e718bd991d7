package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"gummy/pkg/api"
	"gummy/pkg/database"
	"gummy/pkg/envelope"
	"gummy/pkg/friends"
	"gummy/pkg/persist"
	"gummy/pkg/realtime"
	"gummy/pkg/reconcile"
	"gummy/pkg/server"
	"gummy/pkg/session"
	"gummy/pkg/store"
)

// feedd keeps a local mirror of the viewer's feed in sync with the
// backend: initial REST fetch with snapshot fallback, realtime echo
// reconciliation over the chat socket, friend notifications on their
// own socket, and a small status API for introspection.
func main() {
	backendURL := getenv("BACKEND_URL", "http://localhost:8080")
	token := os.Getenv("TOKEN")

	sess := session.New(token)
	sess.OnInvalidated(func() {
		log.Printf("[FEEDD] session expired, re-login required")
	})

	snap := openSnapshot()
	feed := store.New(snap)
	client := api.NewClient(backendURL, sess)
	rec := reconcile.New(feed, client, sess)

	channel := realtime.New(backendURL, sess, 0)
	rec.Register(channel)
	rec.SetSender(channel)
	go channel.Connect()

	notifier := friends.New(backendURL, sess)
	notifier.On(envelope.EventFriendRequestReceived, func(ev friends.Event) {
		log.Printf("[FEEDD] friend request from %s", ev.SenderName)
	})
	notifier.On(envelope.EventFriendRequestAccepted, func(ev friends.Event) {
		log.Printf("[FEEDD] %s accepted your friend request", ev.UserName)
	})
	notifier.On(envelope.EventFriendRemoved, func(ev friends.Event) {
		log.Printf("[FEEDD] friend removed")
	})
	go notifier.Connect()

	ctx := context.Background()
	if err := rec.LoadFeed(ctx); err != nil {
		log.Printf("[FEEDD] no feed available yet: %v", err)
	}
	rec.HydrateReactions(ctx)
	log.Printf("[FEEDD] feed ready: %d posts", feed.Len())

	app := server.NewApp("feedd")

	app.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"channel":   channel.State().String(),
			"posts":     feed.Len(),
			"logged_in": sess.LoggedIn(),
		})
	})

	app.Get("/feed", func(c *fiber.Ctx) error {
		return c.JSON(feed.Posts())
	})

	app.Post("/refresh", func(c *fiber.Ctx) error {
		if err := rec.LoadFeed(c.Context()); err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		}
		rec.HydrateReactions(c.Context())
		return c.JSON(fiber.Map{"posts": feed.Len()})
	})

	addr := "127.0.0.1:" + getenv("PORT", "8090")
	go func() {
		log.Printf("[FEEDD] status API on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("[FEEDD] listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Printf("[FEEDD] shutting down")
	channel.Close()
	notifier.Close()
	rec.Flush()
	app.ShutdownWithTimeout(5 * time.Second)
}

// openSnapshot picks the durable snapshot backend: Postgres, then
// Redis, then plain files, then in-memory only.
func openSnapshot() persist.Snapshot {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := database.Connect(dsn)
		if err != nil {
			log.Fatalf("[FEEDD] postgres: %v", err)
		}
		snap, err := persist.NewSQL(db)
		if err != nil {
			log.Fatalf("[FEEDD] snapshot table: %v", err)
		}
		log.Printf("[FEEDD] snapshots in postgres")
		return snap
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		snap, err := persist.NewRedis(redisURL)
		if err != nil {
			log.Fatalf("[FEEDD] redis: %v", err)
		}
		log.Printf("[FEEDD] snapshots in redis")
		return snap
	}

	if dir := os.Getenv("STATE_DIR"); dir != "" {
		snap, err := persist.NewFile(dir)
		if err != nil {
			log.Fatalf("[FEEDD] state dir: %v", err)
		}
		log.Printf("[FEEDD] snapshots in %s", dir)
		return snap
	}

	log.Printf("[FEEDD] no snapshot backend configured, in-memory only")
	return persist.NewMemory()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
