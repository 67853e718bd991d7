package store

import (
	"sync"

	"gummy/pkg/models"
	"gummy/pkg/persist"
)

// FeedStore holds the canonical in-memory post list for the current
// view plus the viewer's local reaction map, and writes both through to
// a durable snapshot after every mutation. Persistence is best-effort:
// a failed write leaves in-memory state authoritative for the session.
//
// All access goes through the methods below; mutations from REST
// responses, user actions and realtime echoes interleave on the same
// instance, so the store serializes them with its own lock.
type FeedStore struct {
	mu        sync.RWMutex
	posts     []models.Post
	reactions map[int64]models.Reaction
	snap      persist.Snapshot
}

func New(snap persist.Snapshot) *FeedStore {
	if snap == nil {
		snap = persist.NewMemory()
	}
	return &FeedStore{
		reactions: make(map[int64]models.Reaction),
		snap:      snap,
	}
}

// Restore loads the last persisted posts and reaction map. Returns
// true when a posts snapshot existed.
func (s *FeedStore) Restore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reactions map[int64]models.Reaction
	if s.snap.Get(persist.ReactionsKey, &reactions) && reactions != nil {
		s.reactions = reactions
	}

	var posts []models.Post
	if !s.snap.Get(persist.PostsKey, &posts) {
		return false
	}
	s.posts = posts
	return true
}

// ReplaceAll swaps in a freshly fetched feed, preserving list order as
// received.
func (s *FeedStore) ReplaceAll(posts []models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = make([]models.Post, len(posts))
	copy(s.posts, posts)
	s.persistPosts()
}

// UpsertPost inserts at the head if the id is new, otherwise merges
// server fields into the existing entry in place.
func (s *FeedStore) UpsertPost(p models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == p.ID {
			s.posts[i].Merge(p)
			s.persistPosts()
			return
		}
	}
	s.posts = append([]models.Post{p}, s.posts...)
	s.persistPosts()
}

// RemovePost removes by id; no-op when absent.
func (s *FeedStore) RemovePost(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			s.persistPosts()
			return
		}
	}
}

// MutatePost applies fn to one post under the store lock and persists.
// Returns false (without persisting) when the id is not in the view.
func (s *FeedStore) MutatePost(id int64, fn func(*models.Post)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			fn(&s.posts[i])
			s.persistPosts()
			return true
		}
	}
	return false
}

// Post returns a copy of one post.
func (s *FeedStore) Post(id int64) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			return clonePost(s.posts[i]), true
		}
	}
	return models.Post{}, false
}

// Posts returns a copy of the current list, head first.
func (s *FeedStore) Posts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Post, len(s.posts))
	for i := range s.posts {
		out[i] = clonePost(s.posts[i])
	}
	return out
}

func (s *FeedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// SetLocalReaction records the viewer's reaction in the local fallback
// map. ReactionNone deletes the entry.
func (s *FeedStore) SetLocalReaction(postID int64, r models.Reaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r == models.ReactionNone || r == "" {
		delete(s.reactions, postID)
	} else {
		s.reactions[postID] = r
	}
	s.snap.Set(persist.ReactionsKey, s.reactions)
}

// LocalReaction reads the fallback map, ReactionNone when absent.
func (s *FeedStore) LocalReaction(postID int64) models.Reaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.reactions[postID]; ok {
		return r
	}
	return models.ReactionNone
}

// persistPosts must run with the lock held.
func (s *FeedStore) persistPosts() {
	s.snap.Set(persist.PostsKey, s.posts)
}

func clonePost(p models.Post) models.Post {
	out := p
	if p.Comments != nil {
		out.Comments = make([]models.Comment, len(p.Comments))
		copy(out.Comments, p.Comments)
	}
	return out
}
