package persist

// Well-known storage keys. Kept byte-compatible with the web client's
// localStorage layout so both share a Redis- or SQL-backed snapshot.
const (
	PostsKey     = "gummy_posts"
	ReactionsKey = "gummy_myReactions"
)

// Snapshot is a best-effort durable key/value store. Set swallows
// failures (quota, connectivity): in-memory state stays authoritative
// for the session. Get returns false on miss or decode failure.
type Snapshot interface {
	Set(key string, value interface{})
	Get(key string, dest interface{}) bool
}
