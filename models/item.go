package models

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Item Controller
//
// The engine never looks inside an item. It asks the item's controller for a
// sync payload before a round trip, and hands it the matching authoritative
// record (or nil) afterwards. The controller owns the merge outcome and the
// item's two persisted records; it reports structural effects back through
// the move/remove callbacks so the engine can rebuild the working list.
// ============================================================================

// SyncPayload is one element of the request batch. Ver is the local edit
// counter; Ref is the remote version the edits are based on, which the
// server checks before accepting. A nil Value with Ver > Ref requests
// deletion. ValEncoded carries the value as base64 msgpack when the client
// runs in msgpack mode.
type SyncPayload struct {
	ID         string  `json:"id"`
	Ref        int64   `json:"ref"`
	Version    int64   `json:"ver"`
	Value      *string `json:"val"`
	ValEncoded string  `json:"val_encoded,omitempty"`
}

// SyncRecord is one element of the server's authoritative array. NewID is
// set when the server confirms a client-minted id and assigns the permanent
// one; the record still arrives keyed by the id the client sent.
type SyncRecord struct {
	ID         string  `json:"id"`
	Version    int64   `json:"ver"`
	Value      *string `json:"val"`
	ValEncoded string  `json:"val_encoded,omitempty"`
	NewID      string  `json:"new_id,omitempty"`
}

// Normalize resolves ValEncoded into Value so merge logic only ever sees
// plain values.
func (r *SyncRecord) Normalize() error {
	if r.Value == nil && r.ValEncoded != "" {
		val, err := DecodeMsgpackValue(r.ValEncoded)
		if err != nil {
			return serr.Wrap(err, "failed to decode record value for "+r.ID)
		}
		r.Value = val
		r.ValEncoded = ""
	}
	return nil
}

// Controller is the per-item capability the reconciliation engine depends
// on. Implementations own the item's records in the store.
type Controller interface {
	// ProducePayload returns the item's pending state for the next sync
	// batch, or nil when there is nothing to send.
	ProducePayload() (*SyncPayload, error)
	// Merge reconciles the item against its authoritative record (nil when
	// the server returned nothing for this id). Identity changes and
	// removals are reported through the callbacks.
	Merge(remote *SyncRecord, move func(oldID, newID string), remove func(id string)) error
}

// NoteItem is the note-valued controller. Conflict resolution is whole-item:
// if the server's version moved past the local base, the server's value
// replaces the local one.
type NoteItem struct {
	store      Store
	id         string
	useMsgpack bool
}

// NewNoteItem builds a controller for the item at id.
func NewNoteItem(store Store, id string, useMsgpack bool) *NoteItem {
	return &NoteItem{store: store, id: id, useMsgpack: useMsgpack}
}

// ID returns the item's current id.
func (n *NoteItem) ID() string {
	return n.id
}

// ProducePayload implements Controller. Only records whose version has moved
// past their base have anything to say; everything else is omitted from the
// batch.
func (n *NoteItem) ProducePayload() (*SyncPayload, error) {
	local, err := LoadLocal(n.store, n.id)
	if err != nil {
		return nil, err
	}
	if local == nil || !local.Pending() {
		return nil, nil
	}

	p := &SyncPayload{
		ID:      n.id,
		Ref:     local.BaseVersion,
		Version: local.Version,
		Value:   local.Value,
	}
	if n.useMsgpack && local.Value != nil {
		encoded, err := EncodeMsgpackValue(local.Value)
		if err != nil {
			return nil, err
		}
		p.ValEncoded = encoded
		p.Value = nil
	}
	return p, nil
}

// Merge implements Controller.
//
// With a record: a NewID means the server confirmed a client-minted item and
// assigned its permanent id — records transfer to the new id and the old id
// is retired. Otherwise the record's version against the local base decides:
// equal base means the server has not moved and local state stands; anything
// else means the server's truth replaces the whole item.
//
// With nil: a local id simply hasn't been confirmed yet and is kept; a
// remote id the server no longer returns was deleted elsewhere and is
// dropped, pending local edits included.
func (n *NoteItem) Merge(remote *SyncRecord, move func(oldID, newID string), remove func(id string)) error {
	local, err := LoadLocal(n.store, n.id)
	if err != nil {
		return err
	}

	if remote == nil {
		if local != nil && IsLocalID(n.id) {
			return nil // creation not yet confirmed; keep waiting
		}
		return n.drop(remove)
	}

	if remote.NewID != "" {
		return n.rename(local, remote, move)
	}

	if local == nil {
		// List membership without a local record shouldn't happen; adopt
		// the server state to restore the invariant.
		logger.Info("Adopting server state for item with missing local record", "id", n.id)
		return n.acceptRemote(remote)
	}

	if remote.Version == local.BaseVersion {
		// Server unchanged since our base — local state (pending or not)
		// stands as-is.
		return nil
	}

	// Version mismatch: whole-item replace with the server's truth.
	if local.Pending() {
		logger.Info("Server version superseded local edits",
			"id", n.id,
			"local_ver", local.Version,
			"local_ref", local.BaseVersion,
			"remote_ver", remote.Version,
		)
	}
	return n.acceptRemote(remote)
}

// acceptRemote writes the server's record as both snapshot and clean local
// base.
func (n *NoteItem) acceptRemote(remote *SyncRecord) error {
	snap := &RemoteSnapshot{Version: remote.Version, Value: remote.Value}
	if err := SaveRemote(n.store, n.id, snap); err != nil {
		return err
	}
	rec := &LocalRecord{BaseVersion: remote.Version, Version: remote.Version, Value: nil}
	return SaveLocal(n.store, n.id, rec)
}

// rename transfers the item to its server-assigned id. Edits made while the
// confirmation was in flight survive as pending state under the new id.
func (n *NoteItem) rename(local *LocalRecord, remote *SyncRecord, move func(oldID, newID string)) error {
	newID := remote.NewID

	snap := &RemoteSnapshot{Version: remote.Version, Value: remote.Value}
	if err := SaveRemote(n.store, newID, snap); err != nil {
		return err
	}

	rec := &LocalRecord{BaseVersion: remote.Version, Version: remote.Version, Value: nil}
	if local != nil && local.Value != nil && !sameValue(local.Value, remote.Value) {
		// The value changed after the payload snapshot was taken; carry it
		// forward as a pending edit on the confirmed base.
		rec.Version = remote.Version + 1
		rec.Value = local.Value
	}
	if err := SaveLocal(n.store, newID, rec); err != nil {
		return err
	}

	if err := DeleteRemote(n.store, n.id); err != nil {
		return err
	}
	if err := DeleteLocal(n.store, n.id); err != nil {
		return err
	}

	oldID := n.id
	n.id = newID
	move(oldID, newID)
	logger.Info("Item confirmed by server", "old_id", oldID, "new_id", newID, "ver", remote.Version)
	return nil
}

// drop deletes the item's records and reports the removal.
func (n *NoteItem) drop(remove func(id string)) error {
	if err := DeleteRemote(n.store, n.id); err != nil {
		return err
	}
	if err := DeleteLocal(n.store, n.id); err != nil {
		return err
	}
	remove(n.id)
	return nil
}

func sameValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
