package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ============================================================================
// Item Identifiers
//
// Item ids live in two disjoint namespaces. Remote ids are assigned by the
// server and mean "the server knows this item". Local ids are minted on this
// client for items the server has not confirmed yet; they carry no server
// meaning and are replaced the first time the server accepts the item.
//
// A local id may embed the local version it descends from. That happens when
// a previously-synced item is detached from its server identity at logout —
// the embedded version keeps the re-minted id distinct from any earlier
// local id for the same conceptual item.
// ============================================================================

// localIDPrefix marks client-minted ids. Remote ids never start with it —
// the server assigns its own id space.
const localIDPrefix = "local-"

// ListKey is the store key holding the working list of item ids.
const ListKey = "list"

// MintLocalID returns a fresh local id for a brand-new, never-synced item.
// UUIDs make collision with any live id a non-concern.
func MintLocalID() string {
	return localIDPrefix + uuid.NewString()
}

// MintLocalIDFromVersion returns a fresh local id that records the local
// version it was demoted from. Used when an item loses its server identity
// at logout so a future sync treats it as a new creation.
func MintLocalIDFromVersion(ver int64) string {
	return fmt.Sprintf("%sv%d-%s", localIDPrefix, ver, uuid.NewString())
}

// IsLocalID reports whether id was minted on a client rather than assigned
// by the server.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// RemoteKey derives the store key for an item's remote snapshot.
func RemoteKey(id string) string {
	return "item." + id + ".remote"
}

// LocalKey derives the store key for an item's local record.
func LocalKey(id string) string {
	return "item." + id + ".local"
}
