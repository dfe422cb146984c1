package models

import (
	"sort"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Versioned Records
//
// Each item owns two persisted records. The remote snapshot is the last
// value+version the server confirmed for the item's id. The local record is
// what this client holds: the remote version the edits are based on (ref),
// a local edit counter (ver), and the locally held value — nil meaning "no
// local content, display the remote value" or, when ver has moved past ref,
// "deleted locally, pending server confirmation".
//
// Field names match the wire and storage shape of the records (ref/ver/val)
// so a stored record is directly inspectable.
// ============================================================================

// RemoteSnapshot is the last value and version known to be accepted by the
// server for an item.
type RemoteSnapshot struct {
	Version int64   `json:"ver"`
	Value   *string `json:"val"`
}

// LocalRecord is the client-side state of an item. Invariant for any item in
// the working list: Version >= BaseVersion.
type LocalRecord struct {
	BaseVersion int64   `json:"ref"`
	Version     int64   `json:"ver"`
	Value       *string `json:"val"`
}

// Pending reports whether the record carries edits the server has not seen.
func (l *LocalRecord) Pending() bool {
	return l.Version > l.BaseVersion
}

// LoadRemote reads an item's remote snapshot. Returns nil when the item has
// no confirmed remote existence — a normal state for pure-local items.
func LoadRemote(s Store, id string) (*RemoteSnapshot, error) {
	var snap RemoteSnapshot
	found, err := s.Get(RemoteKey(id), &snap)
	if err != nil {
		return nil, serr.Wrap(err, "failed to load remote snapshot for "+id)
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

// SaveRemote writes an item's remote snapshot.
func SaveRemote(s Store, id string, snap *RemoteSnapshot) error {
	return s.Put(RemoteKey(id), snap)
}

// DeleteRemote removes an item's remote snapshot.
func DeleteRemote(s Store, id string) error {
	return s.Delete(RemoteKey(id))
}

// LoadLocal reads an item's local record, nil when absent.
func LoadLocal(s Store, id string) (*LocalRecord, error) {
	var rec LocalRecord
	found, err := s.Get(LocalKey(id), &rec)
	if err != nil {
		return nil, serr.Wrap(err, "failed to load local record for "+id)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// SaveLocal writes an item's local record.
func SaveLocal(s Store, id string, rec *LocalRecord) error {
	return s.Put(LocalKey(id), rec)
}

// DeleteLocal removes an item's local record.
func DeleteLocal(s Store, id string) error {
	return s.Delete(LocalKey(id))
}

// LoadList reads the working list. An absent list is an empty list.
func LoadList(s Store) ([]string, error) {
	var ids []string
	if _, err := s.Get(ListKey, &ids); err != nil {
		return nil, serr.Wrap(err, "failed to load working list")
	}
	return ids, nil
}

// SaveList persists the working list.
func SaveList(s Store, ids []string) error {
	return s.Put(ListKey, ids)
}

// NormalizeList deduplicates and sorts a working list. The ordering key is
// the id string itself, which is stable across devices.
func NormalizeList(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
