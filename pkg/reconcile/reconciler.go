package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gummy/pkg/api"
	"gummy/pkg/command"
	"gummy/pkg/envelope"
	"gummy/pkg/models"
	"gummy/pkg/session"
	"gummy/pkg/store"
)

var ErrEmptyComment = errors.New("comment text is empty")
var ErrPostNotFound = errors.New("post not in current view")

// Backend is the slice of the REST surface the reconciler mutates
// through. *api.Client satisfies it.
type Backend interface {
	Feed(ctx context.Context) ([]models.Post, error)
	CreatePost(ctx context.Context, content, imageURL string) (models.Post, error)
	UpdatePost(ctx context.Context, postID int64, content string) error
	DeletePost(ctx context.Context, postID int64) error
	React(ctx context.Context, postID int64, r models.Reaction) error
	Unreact(ctx context.Context, postID int64) error
	MyReaction(ctx context.Context, postID int64) (models.Reaction, error)
	CreateComment(ctx context.Context, postID int64, content string) (models.Comment, error)
	DeleteComment(ctx context.Context, postID, commentID int64) error
}

// Sender publishes locally originated events over the realtime channel,
// best-effort. The realtime channel satisfies it.
type Sender interface {
	Send(env envelope.Envelope) error
}

// Reconciler applies user actions optimistically to the feed store and
// merges them with server confirmations arriving over two channels (the
// HTTP response and the realtime echo) without duplicating or losing
// updates. One instance per store; no package state.
type Reconciler struct {
	store   *store.FeedStore
	backend Backend
	sess    *session.Session

	mu     sync.Mutex
	sender Sender

	// in-flight background submissions, for Flush.
	wg sync.WaitGroup
}

func New(st *store.FeedStore, backend Backend, sess *session.Session) *Reconciler {
	return &Reconciler{store: st, backend: backend, sess: sess}
}

// SetSender wires the outbound side of the realtime channel. Optional;
// without it locally originated events simply are not echoed out.
func (r *Reconciler) SetSender(s Sender) {
	r.mu.Lock()
	r.sender = s
	r.mu.Unlock()
}

// Flush waits for all in-flight background submissions.
func (r *Reconciler) Flush() {
	r.wg.Wait()
}

// ── Feed ──

// LoadFeed fetches the feed and replaces the store contents. On
// network/backend failure it falls back to the last durable snapshot;
// the error is still returned so callers can log it.
func (r *Reconciler) LoadFeed(ctx context.Context) error {
	posts, err := r.backend.Feed(ctx)
	if err != nil {
		if r.store.Restore() {
			log.Printf("[RECONCILE] feed fetch failed, restored snapshot: %v", err)
			return nil
		}
		return err
	}
	r.store.ReplaceAll(posts)
	return nil
}

// HydrateReactions fills in the viewer's reaction for every post in the
// view: from the backend when logged in, from the local reaction map
// otherwise (or when the backend call fails). Errors degrade, never
// propagate.
func (r *Reconciler) HydrateReactions(ctx context.Context) {
	loggedIn := r.sess.LoggedIn()
	for _, p := range r.store.Posts() {
		reaction := models.ReactionNone
		resolved := false
		if loggedIn {
			if typ, err := r.backend.MyReaction(ctx, p.ID); err == nil {
				reaction = typ
				resolved = true
			}
		}
		if !resolved {
			reaction = r.store.LocalReaction(p.ID)
		}
		if p.Reaction != reaction {
			r.store.MutatePost(p.ID, func(post *models.Post) {
				post.Reaction = reaction
			})
		}
	}
}

// ── Posts ──

// CreatePost submits a new post and inserts the server's version at the
// head of the feed. This is the one mutation whose failure is surfaced
// to the caller. Anonymous viewers get a local-only post with a
// synthetic negative id.
func (r *Reconciler) CreatePost(ctx context.Context, content, imageURL string, privacy models.Privacy) (models.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" && imageURL == "" {
		return models.Post{}, errors.New("post content is empty")
	}

	if !r.sess.LoggedIn() {
		p := models.Post{
			ID:        -time.Now().UnixNano(),
			Author:    models.User{Name: r.sess.Username()},
			Content:   content,
			ImageURL:  imageURL,
			Privacy:   privacy,
			CreatedAt: time.Now(),
			Reaction:  models.ReactionNone,
		}
		r.store.UpsertPost(p)
		return p, nil
	}

	p, err := r.backend.CreatePost(ctx, content, imageURL)
	if err != nil {
		return models.Post{}, fmt.Errorf("create post: %w", err)
	}
	if p.Privacy == "" {
		p.Privacy = privacy
	}
	p.Reaction = models.ReactionNone
	r.store.UpsertPost(p)
	return p, nil
}

// UpdatePost applies the edit locally at once and pushes it to the
// backend under the bounded retry policy.
func (r *Reconciler) UpdatePost(ctx context.Context, postID int64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.New("post content is empty")
	}
	if ok := r.store.MutatePost(postID, func(p *models.Post) {
		p.Content = content
	}); !ok {
		return ErrPostNotFound
	}

	if postID <= 0 || !r.sess.LoggedIn() {
		return nil // local-only post
	}

	cmd := command.New()
	r.inBackground(ctx, func(ctx context.Context) {
		if err := cmd.Run(ctx, func(ctx context.Context) error {
			return r.backend.UpdatePost(ctx, postID, content)
		}); err != nil {
			log.Printf("[RECONCILE] update post %d failed (key=%s): %v", postID, cmd.Key, err)
		}
	})
	return nil
}

// DeletePost removes the post locally and best-effort on the backend.
func (r *Reconciler) DeletePost(ctx context.Context, postID int64) {
	r.store.RemovePost(postID)
	if postID <= 0 {
		return
	}
	r.inBackground(ctx, func(ctx context.Context) {
		if err := r.backend.DeletePost(ctx, postID); err != nil {
			log.Printf("[RECONCILE] delete post %d: %v", postID, err)
		}
	})
}

// ── Reactions ──

// SetReaction immediately records the viewer's reaction (local state is
// ground truth) and fires the backend request without waiting on it.
// Reactions are low-stakes, idempotent and last-write-wins; backend
// failure is absorbed and logged.
func (r *Reconciler) SetReaction(ctx context.Context, postID int64, typ models.Reaction) error {
	if !typ.Valid() {
		return fmt.Errorf("invalid reaction %q", typ)
	}

	r.store.MutatePost(postID, func(p *models.Post) {
		p.Reaction = typ
	})
	r.store.SetLocalReaction(postID, typ)

	r.publish(envelope.EventReactPost, envelope.ReactEvent{
		PostID: postID,
		Type:   typ,
		UserID: r.sess.UserID(),
	})

	if postID <= 0 || !r.sess.LoggedIn() {
		return nil
	}

	cmd := command.Once()
	r.inBackground(ctx, func(ctx context.Context) {
		err := cmd.Run(ctx, func(ctx context.Context) error {
			if typ == models.ReactionNone {
				return r.backend.Unreact(ctx, postID)
			}
			return r.backend.React(ctx, postID, typ)
		})
		if err != nil {
			log.Printf("[RECONCILE] react %s on post %d: %v", typ, postID, err)
		}
	})
	return nil
}

// ── Comments ──

// AddComment creates a provisional comment synchronously (prepended,
// CommentCount incremented) and submits it in the background under the
// bounded retry policy, the provisional id doubling as idempotency key.
// On success the server id is swapped in place; on terminal failure the
// comment is retained but marked failed, so user-entered text is never
// destroyed and never silently looks sent.
func (r *Reconciler) AddComment(ctx context.Context, postID int64, text string) (models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Comment{}, ErrEmptyComment
	}

	provisional := models.Comment{
		LocalID: uuid.NewString(),
		State:   models.CommentPending,
		Author: models.User{
			ID:   r.sess.UserID(),
			Name: r.sess.Username(),
		},
		Content:   text,
		CreatedAt: time.Now(),
	}

	if ok := r.store.MutatePost(postID, func(p *models.Post) {
		p.Comments = append([]models.Comment{provisional}, p.Comments...)
		p.CommentCount++
	}); !ok {
		return models.Comment{}, ErrPostNotFound
	}

	if postID <= 0 || !r.sess.LoggedIn() {
		// Local-only: nothing to submit, the comment stays as typed.
		r.store.MutatePost(postID, func(p *models.Post) {
			r.setCommentState(p, ProvisionalKey(provisional.LocalID), models.CommentSent)
		})
		return provisional, nil
	}

	cmd := command.New()
	cmd.Key = provisional.LocalID
	cmd.Permanent = isPermanent

	r.inBackground(ctx, func(ctx context.Context) {
		err := cmd.Run(ctx, func(ctx context.Context) error {
			confirmed, err := r.backend.CreateComment(ctx, postID, text)
			if err != nil {
				return err
			}
			r.confirmComment(postID, provisional.LocalID, confirmed)
			return nil
		})
		if err != nil {
			log.Printf("[RECONCILE] comment on post %d failed (key=%s): %v", postID, cmd.Key, err)
			r.store.MutatePost(postID, func(p *models.Post) {
				r.setCommentState(p, ProvisionalKey(provisional.LocalID), models.CommentFailed)
			})
		}
	})

	return provisional, nil
}

// DeleteComment removes the comment locally and, for confirmed ids,
// deletes it on the backend under the bounded retry policy. Removal is
// idempotent against the delete echo.
func (r *Reconciler) DeleteComment(ctx context.Context, postID int64, key CommentKey) {
	r.removeComment(postID, key)

	if !key.Confirmed() || !r.sess.LoggedIn() {
		return
	}

	cmd := command.New()
	cmd.Permanent = isPermanent
	r.inBackground(ctx, func(ctx context.Context) {
		if err := cmd.Run(ctx, func(ctx context.Context) error {
			return r.backend.DeleteComment(ctx, postID, key.ServerID())
		}); err != nil {
			log.Printf("[RECONCILE] delete comment %s on post %d: %v", key, postID, err)
		}
	})
}

// ── Realtime echoes ──

// Dispatcher registers event handlers by type discriminant; the
// realtime channel satisfies it.
type Dispatcher interface {
	On(eventType string, fn func(envelope.Envelope))
}

// Register wires the reconciler's echo handlers into a channel.
func (r *Reconciler) Register(d Dispatcher) {
	d.On(envelope.EventNewComment, r.HandleNewComment)
	d.On(envelope.EventDeleteComment, r.HandleDeleteComment)
	d.On(envelope.EventReactPost, r.HandleReactPost)
}

// HandleNewComment applies an inbound NEW_COMMENT event. If the server
// id is already present (the local submission completed first) the
// entry is updated in place. If a pending provisional from the same
// viewer matches, the event confirms it — the echo raced the HTTP
// response and whichever lands first wins. Otherwise it is a genuinely
// new comment from another client and is prepended. Events for posts
// outside the view are no-ops.
func (r *Reconciler) HandleNewComment(env envelope.Envelope) {
	ev, err := envelope.ParseData[envelope.CommentEvent](env)
	if err != nil || ev.PostID == 0 || ev.CommentID == 0 {
		log.Printf("[RECONCILE] malformed NEW_COMMENT dropped: %v", err)
		return
	}

	incoming := models.Comment{
		ID:        ev.CommentID,
		State:     models.CommentSent,
		Author:    models.User{ID: ev.UserID, Name: ev.UserName, AvatarURL: ev.AvatarURL},
		Content:   ev.Content,
		CreatedAt: ev.CreatedAt,
	}

	r.store.MutatePost(ev.PostID, func(p *models.Post) {
		key := ConfirmedKey(ev.CommentID)
		for i := range p.Comments {
			if key.Matches(p.Comments[i]) {
				updateComment(&p.Comments[i], incoming)
				return
			}
		}

		// Echo of our own pending submission, arriving before the
		// HTTP response: confirm the provisional in place.
		viewerID := r.sess.UserID()
		if ev.UserID != 0 && ev.UserID == viewerID {
			for i := range p.Comments {
				c := &p.Comments[i]
				if !c.Confirmed() && c.Content == incoming.Content {
					incoming.LocalID = c.LocalID
					updateComment(c, incoming)
					return
				}
			}
		}

		p.Comments = append([]models.Comment{incoming}, p.Comments...)
		p.CommentCount++
	})
}

// HandleDeleteComment removes the comment if present. Idempotent:
// arriving after a local delete it is a no-op, and CommentCount is only
// decremented when an entry was actually removed.
func (r *Reconciler) HandleDeleteComment(env envelope.Envelope) {
	ev, err := envelope.ParseData[envelope.DeleteCommentEvent](env)
	if err != nil || ev.PostID == 0 || ev.CommentID == 0 {
		log.Printf("[RECONCILE] malformed DELETE_COMMENT dropped: %v", err)
		return
	}
	r.removeComment(ev.PostID, ConfirmedKey(ev.CommentID))
}

// HandleReactPost applies an inbound REACT_POST event: the server's
// like count when present, and the viewer's own reaction only when the
// event is an echo of this viewer's action. Other users' reactions
// never overwrite the viewer's.
func (r *Reconciler) HandleReactPost(env envelope.Envelope) {
	ev, err := envelope.ParseData[envelope.ReactEvent](env)
	if err != nil || ev.PostID == 0 || ev.ReactionType() == "" {
		log.Printf("[RECONCILE] malformed REACT_POST dropped: %v", err)
		return
	}

	viewerID := r.sess.UserID()
	r.store.MutatePost(ev.PostID, func(p *models.Post) {
		if ev.Likes != nil {
			p.Likes = *ev.Likes
		}
		if ev.UserID != 0 && ev.UserID == viewerID {
			p.Reaction = ev.ReactionType()
		}
	})
}

// ── internals ──

func (r *Reconciler) confirmComment(postID int64, localID string, confirmed models.Comment) {
	r.store.MutatePost(postID, func(p *models.Post) {
		provIdx := -1
		serverIdx := -1
		provKey := ProvisionalKey(localID)
		serverKey := ConfirmedKey(confirmed.ID)
		for i := range p.Comments {
			if provKey.Matches(p.Comments[i]) {
				provIdx = i
			} else if serverKey.Matches(p.Comments[i]) {
				serverIdx = i
			}
		}

		confirmed.LocalID = localID
		confirmed.State = models.CommentSent

		switch {
		case provIdx >= 0 && serverIdx >= 0:
			// The echo inserted its own entry before we could match
			// it to the provisional; keep one, drop the other.
			updateComment(&p.Comments[serverIdx], confirmed)
			p.Comments = append(p.Comments[:provIdx], p.Comments[provIdx+1:]...)
			if p.CommentCount > 0 {
				p.CommentCount--
			}
		case provIdx >= 0:
			updateComment(&p.Comments[provIdx], confirmed)
		case serverIdx >= 0:
			updateComment(&p.Comments[serverIdx], confirmed)
		default:
			// Locally deleted while in flight; do not resurrect.
		}
	})
}

func (r *Reconciler) removeComment(postID int64, key CommentKey) {
	r.store.MutatePost(postID, func(p *models.Post) {
		for i := range p.Comments {
			if key.Matches(p.Comments[i]) {
				p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
				if p.CommentCount > 0 {
					p.CommentCount--
				}
				return
			}
		}
	})
}

// setCommentState must run inside a MutatePost callback.
func (r *Reconciler) setCommentState(p *models.Post, key CommentKey, state models.CommentState) {
	for i := range p.Comments {
		if key.Matches(p.Comments[i]) {
			p.Comments[i].State = state
			return
		}
	}
}

// updateComment replaces server-owned fields in place, keeping list
// position. Reconciliation never reorders existing entries.
func updateComment(dst *models.Comment, src models.Comment) {
	dst.ID = src.ID
	if src.LocalID != "" {
		dst.LocalID = src.LocalID
	}
	dst.State = src.State
	if src.Author.ID != 0 || src.Author.Name != "" {
		dst.Author = src.Author
	}
	if src.Content != "" {
		dst.Content = src.Content
	}
	if !src.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
}

func (r *Reconciler) publish(eventType string, data interface{}) {
	r.mu.Lock()
	sender := r.sender
	r.mu.Unlock()
	if sender == nil {
		return
	}
	env, err := envelope.NewEvent(eventType, data)
	if err != nil {
		return
	}
	if err := sender.Send(env); err != nil {
		log.Printf("[RECONCILE] publish %s: %v", eventType, err)
	}
}

// inBackground detaches fn from the caller's cancellation: a dismissed
// UI action must not abort the submission it already triggered.
func (r *Reconciler) inBackground(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(ctx)
	}()
}

func isPermanent(err error) bool {
	if errors.Is(err, api.ErrUnauthorized) {
		return true
	}
	var se *api.StatusError
	if errors.As(err, &se) {
		return se.Status >= 400 && se.Status < 500
	}
	return false
}
