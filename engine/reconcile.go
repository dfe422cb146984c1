package engine

import (
	"context"
	"errors"

	"notesync/models"

	"github.com/rohanthewiz/logger"
)

// ============================================================================
// Reconciliation
//
// One cycle: snapshot the payload batch, exchange it for the server's
// complete authoritative set, partition that set against the working list
// (matched / only-local / only-remote), let each controller decide its merge
// outcome, then rebuild the list from the accumulated remove and add sets.
//
// The batch is snapshotted at attempt start; edits landing during the round
// trip belong to the next cycle. The whole apply step runs under mu, so the
// list, the arena and the per-item records move together.
// ============================================================================

// runCycle executes one sync cycle end to end. Failures never mutate
// persisted state; worst case is staleness until the next attempt.
func (e *SyncEngine) runCycle(ctx context.Context, token string) {
	e.mu.Lock()
	ids := make([]string, len(e.list))
	copy(ids, e.list)
	if len(ids) > e.cfg.MaxListLength {
		// Soft cap: warn and sync the first N, never truncate the list.
		e.notices.Set(NoticeOverlength)
		ids = ids[:e.cfg.MaxListLength]
	}
	ctrls := make([]models.Controller, 0, len(ids))
	for _, id := range ids {
		if c, ok := e.items[id]; ok {
			ctrls = append(ctrls, c)
		}
	}
	e.mu.Unlock()

	batch := make([]models.SyncPayload, 0, len(ctrls))
	for _, c := range ctrls {
		p, err := c.ProducePayload()
		if err != nil {
			logger.LogErr(err, "failed to produce sync payload")
			continue
		}
		if p != nil {
			batch = append(batch, *p)
		}
	}

	records, err := e.transport.Exchange(ctx, token, batch)
	if err != nil {
		switch {
		case errors.Is(err, ErrAuthInvalid):
			logger.Info("Server no longer recognizes session; logging out")
			e.ClearToken()
		case errors.Is(err, ErrRateLimited):
			e.notices.Set(NoticeRateLimited)
		default:
			logger.LogErr(err, "sync exchange failed")
			e.status.OnSync(false)
		}
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled {
		// Disabled while the round trip was in flight: the response is
		// stale truth for a session that ended. Discard it.
		logger.Info("Discarding sync response received after disable")
		return
	}
	e.apply(records)
}

// apply reconciles the authoritative records into the working list.
// Caller holds e.mu.
func (e *SyncEngine) apply(records []models.SyncRecord) {
	current := make(map[string]bool, len(e.list))
	for _, id := range e.list {
		current[id] = true
	}

	removed := make(map[string]bool)
	var added []string

	remove := func(id string) {
		removed[id] = true
		delete(e.items, id)
	}
	move := func(oldID, newID string) {
		// The controller has already re-keyed itself; transfer it in the
		// arena and swap the list membership.
		ctrl := e.items[oldID]
		removed[oldID] = true
		delete(e.items, oldID)
		if ctrl != nil {
			e.items[newID] = ctrl
		}
		added = append(added, newID)
	}

	matched := make(map[string]bool, len(records))
	for i := range records {
		rec := &records[i]
		if err := rec.Normalize(); err != nil {
			logger.LogErr(err, "skipping malformed record", "id", rec.ID)
			continue
		}

		if current[rec.ID] {
			matched[rec.ID] = true
			if ctrl, ok := e.items[rec.ID]; ok {
				if err := ctrl.Merge(rec, move, remove); err != nil {
					// One bad item shouldn't block the whole cycle.
					logger.LogErr(err, "merge failed", "id", rec.ID)
				}
			}
			continue
		}

		// Only-remote: a new item created in another session or device.
		if err := e.adoptRemote(rec); err != nil {
			logger.LogErr(err, "failed to adopt remote item", "id", rec.ID)
			continue
		}
		added = append(added, rec.ID)
	}

	// Only-local: everything the server said nothing about.
	for _, id := range append([]string(nil), e.list...) {
		if matched[id] {
			continue
		}
		if ctrl, ok := e.items[id]; ok {
			if err := ctrl.Merge(nil, move, remove); err != nil {
				logger.LogErr(err, "merge failed", "id", id)
			}
		}
	}

	newList := make([]string, 0, len(e.list)+len(added))
	for _, id := range e.list {
		if !removed[id] {
			newList = append(newList, id)
		}
	}
	newList = append(newList, added...)
	e.list = models.NormalizeList(newList)

	if err := models.SaveList(e.store, e.list); err != nil {
		logger.LogErr(err, "failed to persist working list")
	}

	// A successful cycle retires stale failure notices, but the overlength
	// warning stands as long as the rebuilt list still exceeds the cap.
	if len(e.list) > e.cfg.MaxListLength {
		e.notices.Set(NoticeOverlength)
	} else {
		e.notices.Clear()
	}

	e.status.OnSync(true)
	logger.Info("Sync cycle completed", "items", len(e.list))
}

// adoptRemote persists fresh records for an item the server holds but this
// client has never seen, and registers its controller.
func (e *SyncEngine) adoptRemote(rec *models.SyncRecord) error {
	snap := &models.RemoteSnapshot{Version: rec.Version, Value: rec.Value}
	if err := models.SaveRemote(e.store, rec.ID, snap); err != nil {
		return err
	}
	local := &models.LocalRecord{BaseVersion: rec.Version, Version: rec.Version, Value: nil}
	if err := models.SaveLocal(e.store, rec.ID, local); err != nil {
		return err
	}
	e.items[rec.ID] = models.NewNoteItem(e.store, rec.ID, e.cfg.MsgpackValues)
	return nil
}
