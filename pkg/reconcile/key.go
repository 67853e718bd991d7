package reconcile

import (
	"fmt"

	"gummy/pkg/models"
)

// CommentKey identifies one comment across its lifecycle. A comment is
// Provisional (client-generated local id) until the server assigns an
// id, then Confirmed. The transition is one-way: confirmation replaces
// the entry in place, it never inserts a second one.
type CommentKey struct {
	serverID int64
	localID  string
}

// ProvisionalKey keys a comment by its client-generated id.
func ProvisionalKey(localID string) CommentKey {
	return CommentKey{localID: localID}
}

// ConfirmedKey keys a comment by its server-assigned id.
func ConfirmedKey(serverID int64) CommentKey {
	return CommentKey{serverID: serverID}
}

// Confirmed reports whether the key carries a server id.
func (k CommentKey) Confirmed() bool { return k.serverID > 0 }

// ServerID returns the server id, 0 for provisional keys.
func (k CommentKey) ServerID() int64 { return k.serverID }

// Matches reports whether c is the comment this key identifies.
// Confirmed keys match on server id; provisional keys match on the
// local id, which a confirmed comment retains.
func (k CommentKey) Matches(c models.Comment) bool {
	if k.Confirmed() {
		return c.ID == k.serverID
	}
	return k.localID != "" && c.LocalID == k.localID
}

func (k CommentKey) String() string {
	if k.Confirmed() {
		return fmt.Sprintf("confirmed(%d)", k.serverID)
	}
	return fmt.Sprintf("provisional(%s)", k.localID)
}
