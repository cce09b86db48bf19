package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	perrors "github.com/padsync/padchat/internal/errors"
	"github.com/padsync/padchat/internal/wire"
)

// Raw-payload fetch retry schedule. The gateway serves freshly synced
// entities with a lag, so a missing payload is retried on a steep
// exponential before it counts as absent.
const (
	fetchRetryInitial    = 10 * time.Millisecond
	fetchRetryMultiplier = 3
	fetchRetryMaxDelay   = 20 * time.Second
	fetchRetryMax        = 9
)

func fetchBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = fetchRetryInitial
	b.Multiplier = fetchRetryMultiplier
	b.MaxInterval = fetchRetryMaxDelay
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, fetchRetryMax), ctx)
}

// ContactPayload returns the raw contact record for id, from the cache
// when present, otherwise fetched from the gateway with retries and
// cached.
func (m *Manager) ContactPayload(ctx context.Context, id string) (*wire.ContactPayload, error) {
	cache := m.cacheStore()
	if cache == nil {
		return nil, perrors.ErrNotLoggedIn
	}

	if hit, err := cache.GetContact(id); err != nil {
		return nil, err
	} else if hit != nil {
		return hit, nil
	}

	var payload *wire.ContactPayload

	fetch := func() error {
		resp, err := m.bridge.GetContact(ctx, id)
		if err != nil {
			return err
		}

		if resp.UserName == "" {
			return fmt.Errorf("contact %s not served yet", id)
		}

		payload = resp

		return nil
	}

	if err := backoff.Retry(fetch, fetchBackOff(ctx)); err != nil {
		return nil, fmt.Errorf("fetching contact %s: %w", id, err)
	}

	if err := cache.SetContact(*payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// RoomPayload returns the raw room record for roomID, cache first, with
// the same retry schedule as contacts.
func (m *Manager) RoomPayload(ctx context.Context, roomID string) (*wire.RoomPayload, error) {
	cache := m.cacheStore()
	if cache == nil {
		return nil, perrors.ErrNotLoggedIn
	}

	if hit, err := cache.GetRoom(roomID); err != nil {
		return nil, err
	} else if hit != nil {
		return hit, nil
	}

	var payload *wire.RoomPayload

	fetch := func() error {
		resp, err := m.bridge.GetRoom(ctx, roomID)
		if err != nil {
			return err
		}

		if resp.UserName == "" {
			return fmt.Errorf("room %s not served yet", roomID)
		}

		payload = resp

		return nil
	}

	if err := backoff.Retry(fetch, fetchBackOff(ctx)); err != nil {
		return nil, fmt.Errorf("fetching room %s: %w", roomID, err)
	}

	if err := cache.SetRoom(*payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// RoomMemberPayloads returns a room's member map, cache first. A cache
// miss triggers a fresh member sync, which also handles rooms the
// gateway no longer knows (they resolve to an empty, non-nil map).
func (m *Manager) RoomMemberPayloads(ctx context.Context, roomID string) (map[string]wire.RoomMemberPayload, error) {
	cache := m.cacheStore()
	if cache == nil {
		return nil, perrors.ErrNotLoggedIn
	}

	if hit, err := cache.GetRoomMembers(roomID); err != nil {
		return nil, err
	} else if hit != nil {
		return hit, nil
	}

	return m.syncRoomMember(ctx, roomID)
}

// RoomMemberPayload returns one member's entry in a room.
func (m *Manager) RoomMemberPayload(ctx context.Context, roomID, memberID string) (*wire.RoomMemberPayload, error) {
	members, err := m.RoomMemberPayloads(ctx, roomID)
	if err != nil {
		return nil, err
	}

	member, ok := members[memberID]
	if !ok {
		return nil, fmt.Errorf("no member %s in room %s", memberID, roomID)
	}

	return &member, nil
}

// RoomInvitationPayload returns a stored room invitation.
func (m *Manager) RoomInvitationPayload(id string) (*wire.InvitationPayload, error) {
	cache := m.cacheStore()
	if cache == nil {
		return nil, perrors.ErrNotLoggedIn
	}

	payload, err := cache.GetInvitation(id)
	if err != nil {
		return nil, err
	}

	if payload == nil {
		return nil, fmt.Errorf("no room invitation %s", id)
	}

	return payload, nil
}

// SaveRoomInvitation stores a room invitation for a later accept.
func (m *Manager) SaveRoomInvitation(payload wire.InvitationPayload) error {
	cache := m.cacheStore()
	if cache == nil {
		return perrors.ErrNotLoggedIn
	}

	return cache.SetInvitation(payload)
}

// --- dirty marks ---

// ContactPayloadDirty evicts a contact from the cache so the next read
// refetches it.
func (m *Manager) ContactPayloadDirty(id string) error {
	cache := m.cacheStore()
	if cache == nil {
		return perrors.ErrNotLoggedIn
	}

	return cache.DeleteContact(id)
}

// RoomPayloadDirty evicts a room record from the cache.
func (m *Manager) RoomPayloadDirty(roomID string) error {
	cache := m.cacheStore()
	if cache == nil {
		return perrors.ErrNotLoggedIn
	}

	return cache.DeleteRoom(roomID)
}

// RoomMemberPayloadDirty evicts a room's member map from the cache.
func (m *Manager) RoomMemberPayloadDirty(roomID string) error {
	cache := m.cacheStore()
	if cache == nil {
		return perrors.ErrNotLoggedIn
	}

	return cache.DeleteRoomMembers(roomID)
}

// RoomInvitationPayloadDirty drops a stored invitation.
func (m *Manager) RoomInvitationPayloadDirty(id string) error {
	cache := m.cacheStore()
	if cache == nil {
		return perrors.ErrNotLoggedIn
	}

	return cache.DeleteInvitation(id)
}

// --- id listings ---

// ContactIDs lists every cached contact id.
func (m *Manager) ContactIDs() ([]string, error) {
	cache := m.cacheStore()
	if cache == nil {
		return nil, perrors.ErrNotLoggedIn
	}

	return cache.ContactIDs()
}

// RoomIDs lists every cached room id.
func (m *Manager) RoomIDs() ([]string, error) {
	cache := m.cacheStore()
	if cache == nil {
		return nil, perrors.ErrNotLoggedIn
	}

	return cache.RoomIDs()
}
