package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/padsync/padchat/internal/wire"
)

// syncPageDelay paces the contact sync stream; the gateway misbehaves
// when pages are pulled back to back.
const syncPageDelay = 3 * time.Second

// syncState tracks the readiness of the initial contact sync. Ready is
// announced exactly once, when the contact list finished streaming and
// every queued room-member fetch completed.
type syncState struct {
	mu sync.Mutex

	roomFetches    int
	listSynced     bool
	readyAnnounced bool
}

func (s *syncState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roomFetches = 0
	s.listSynced = false
	s.readyAnnounced = false
}

func (s *syncState) addRoomFetch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roomFetches++
}

// finishRoomFetch marks one room fetch done and reports whether ready
// should be announced now.
func (s *syncState) finishRoomFetch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roomFetches--

	return s.announceLocked()
}

// markListSynced marks the contact list complete and reports whether
// ready should be announced now.
func (s *syncState) markListSynced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listSynced = true

	return s.announceLocked()
}

func (s *syncState) announceLocked() bool {
	if s.readyAnnounced || !s.listSynced || s.roomFetches > 0 {
		return false
	}

	s.readyAnnounced = true

	return true
}

// syncContacts pulls the contact list from the gateway page by page
// until the stream signals completion. Rooms found along the way get
// their member lists fetched through the rate-limited queue.
func (m *Manager) syncContacts(ctx context.Context) {
	m.progress.reset()

	for ctx.Err() == nil && m.LoggedIn() {
		timer := time.NewTimer(syncPageDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		page, err := m.bridge.SyncContact(ctx)
		if err != nil {
			m.emitError(fmt.Errorf("syncing contacts: %w", err))
			return
		}

		if len(page) == 0 {
			m.logger.Debug("contact sync returned an empty page, stopping")
			return
		}

		for _, rec := range page {
			if done := m.applySyncRecord(ctx, rec); done {
				return
			}
		}
	}
}

// applySyncRecord folds one sync record into the entity cache. Returns
// true when the record terminates the stream.
func (m *Manager) applySyncRecord(ctx context.Context, rec wire.SyncRecord) bool {
	if rec.Continue == wire.SyncContinueDone {
		m.logger.Info("contact list synced")

		if m.progress.markListSynced() {
			m.emitReady()
		}

		return true
	}

	cache := m.cacheStore()
	if cache == nil {
		return true
	}

	switch {
	case rec.MsgType == wire.MsgTypeContact && wire.IsRoomID(rec.UserName):
		if err := cache.SetRoom(rec.Room()); err != nil {
			m.logger.Warn("caching room failed",
				slog.String("room", rec.UserName),
				slog.String("error", err.Error()),
			)

			return false
		}

		m.scheduleRoomMemberFetch(ctx, rec.UserName)

	case rec.MsgType == wire.MsgTypeContact && wire.IsContactID(rec.UserName):
		if err := cache.SetContact(rec.Contact()); err != nil {
			m.logger.Warn("caching contact failed",
				slog.String("contact", rec.UserName),
				slog.String("error", err.Error()),
			)
		}

	case rec.MsgType == wire.MsgTypeSyncMarker && rec.Uin != 0:
		// Keep-alive marker, nothing to store.

	default:
		m.logger.Debug("skipping unrecognized sync record",
			slog.Int("msg_type", rec.MsgType),
			slog.String("user", rec.UserName),
		)
	}

	return false
}

// scheduleRoomMemberFetch queues a member-list fetch for a room found
// during sync. The fetch counter holds the ready event back until every
// queued fetch settles.
func (m *Manager) scheduleRoomMemberFetch(ctx context.Context, roomID string) {
	m.progress.addRoomFetch()

	accepted := m.queue.Enqueue(func(taskCtx context.Context) {
		defer func() {
			if m.progress.finishRoomFetch() {
				m.emitReady()
			}
		}()

		if ctx.Err() != nil {
			return
		}

		if _, err := m.syncRoomMember(taskCtx, roomID); err != nil {
			m.logger.Warn("syncing room members failed",
				slog.String("room", roomID),
				slog.String("error", err.Error()),
			)
		}
	})

	if !accepted && m.progress.finishRoomFetch() {
		m.emitReady()
	}
}

// syncRoomMember fetches a room's member list and folds it into the
// cache. A room the gateway no longer knows is evicted from both the
// room and member caches; the result is then empty. Members unknown to
// the contact cache are backfilled as minimal contact records, and new
// member entries are merged over any previously cached ones.
func (m *Manager) syncRoomMember(ctx context.Context, roomID string) (map[string]wire.RoomMemberPayload, error) {
	cache := m.cacheStore()
	if cache == nil {
		return nil, fmt.Errorf("syncing members of %s: cache is closed", roomID)
	}

	resp, err := m.bridge.GetRoomMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if resp == nil || resp.UserName == "" || len(resp.Member) == 0 {
		if err := cache.DeleteRoomMembers(roomID); err != nil {
			return nil, err
		}

		if err := cache.DeleteRoom(roomID); err != nil {
			return nil, err
		}

		m.logger.Info("evicted vanished room", slog.String("room", roomID))

		return map[string]wire.RoomMemberPayload{}, nil
	}

	merged, err := cache.GetRoomMembers(roomID)
	if err != nil {
		return nil, err
	}

	if merged == nil {
		merged = make(map[string]wire.RoomMemberPayload, len(resp.Member))
	}

	for _, member := range resp.Member {
		if member.UserName == "" {
			continue
		}

		merged[member.UserName] = member

		known, err := cache.GetContact(member.UserName)
		if err != nil {
			return nil, err
		}

		if known == nil {
			// Room members need not be friends; keep a minimal record
			// so lookups by id resolve to a name and an avatar.
			err := cache.SetContact(wire.ContactPayload{
				UserName:  member.UserName,
				NickName:  member.NickName,
				BigHead:   member.BigHead,
				SmallHead: member.SmallHead,
			})
			if err != nil {
				return nil, err
			}
		}
	}

	if err := cache.SetRoomMembers(roomID, merged); err != nil {
		return nil, err
	}

	return merged, nil
}

func (m *Manager) emitReady() {
	m.logger.Info("initial sync complete")

	if m.events.OnReady != nil {
		m.events.OnReady()
	}
}
