package manager

import (
	"context"
	"fmt"
	"log/slog"

	perrors "github.com/padsync/padchat/internal/errors"
	"github.com/padsync/padchat/internal/wire"
)

// requireLogin gates the operations below on an authenticated session.
func (m *Manager) requireLogin() error {
	if !m.LoggedIn() {
		return perrors.ErrNotLoggedIn
	}

	return nil
}

// --- messaging ---

// SendMessage sends a text message to a contact or room. atList
// mentions room members by id.
func (m *Manager) SendMessage(ctx context.Context, to, content string, atList ...string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	return m.bridge.SendMsg(ctx, to, content, atList...)
}

// SendImage sends a base64-encoded image to a contact or room.
func (m *Manager) SendImage(ctx context.Context, to, imageBase64 string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	return m.bridge.SendImage(ctx, to, imageBase64)
}

// --- contacts ---

// SetContactRemark updates the remark shown for a contact and evicts
// its cached record.
func (m *Manager) SetContactRemark(ctx context.Context, id, remark string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	if err := m.bridge.SetUserRemark(ctx, id, remark); err != nil {
		return err
	}

	return m.ContactPayloadDirty(id)
}

// --- rooms ---

// CreateRoom creates a chatroom with the given members and returns its
// id.
func (m *Manager) CreateRoom(ctx context.Context, memberIDs []string) (string, error) {
	if err := m.requireLogin(); err != nil {
		return "", err
	}

	return m.bridge.CreateRoom(ctx, memberIDs)
}

// AddRoomMember adds a contact to a room (inviting when the room is
// past the direct-add capacity) and evicts the cached member map.
func (m *Manager) AddRoomMember(ctx context.Context, roomID, contactID string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	if err := m.bridge.AddRoomMember(ctx, roomID, contactID); err != nil {
		return err
	}

	return m.RoomMemberPayloadDirty(roomID)
}

// DeleteRoomMember removes a contact from a room and evicts the cached
// member map.
func (m *Manager) DeleteRoomMember(ctx context.Context, roomID, contactID string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	if err := m.bridge.DeleteRoomMember(ctx, roomID, contactID); err != nil {
		return err
	}

	return m.RoomMemberPayloadDirty(roomID)
}

// SetRoomTopic renames a room and evicts its cached record.
func (m *Manager) SetRoomTopic(ctx context.Context, roomID, topic string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	if err := m.bridge.SetRoomName(ctx, roomID, topic); err != nil {
		return err
	}

	return m.RoomPayloadDirty(roomID)
}

// QuitRoom leaves a room and evicts it from the cache entirely.
func (m *Manager) QuitRoom(ctx context.Context, roomID string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	if err := m.bridge.QuitRoom(ctx, roomID); err != nil {
		return err
	}

	if err := m.RoomMemberPayloadDirty(roomID); err != nil {
		return err
	}

	return m.RoomPayloadDirty(roomID)
}

// --- friendship ---

// AddFriend resolves a stranger by id or phone number and sends a
// friend request with the greeting.
func (m *Manager) AddFriend(ctx context.Context, query, greeting string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	found, err := m.bridge.SearchContact(ctx, query)
	if err != nil {
		return err
	}

	if found.Stranger == "" || found.Ticket == "" {
		return fmt.Errorf("search for %s produced no friendable result", query)
	}

	return m.bridge.AddUser(ctx, found.Stranger, found.Ticket, greeting)
}

// AcceptFriend accepts an inbound friend request carried by a
// friendship message's stranger and ticket fields.
func (m *Manager) AcceptFriend(ctx context.Context, stranger, ticket string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	return m.bridge.AcceptUser(ctx, stranger, ticket)
}

// DeleteFriend removes a friend and evicts the cached contact.
func (m *Manager) DeleteFriend(ctx context.Context, id string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	if err := m.bridge.DeleteUser(ctx, id); err != nil {
		return err
	}

	return m.ContactPayloadDirty(id)
}

// --- own profile ---

// UpdateSelfName changes the account's display name and refetches the
// own profile on next read.
func (m *Manager) UpdateSelfName(ctx context.Context, name string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	if err := m.bridge.SetUserInfo(ctx, profileFieldNickName, name); err != nil {
		return err
	}

	return m.ContactPayloadDirty(m.UserID())
}

// UpdateSelfSignature changes the account's signature line.
func (m *Manager) UpdateSelfSignature(ctx context.Context, signature string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	if err := m.bridge.SetUserInfo(ctx, profileFieldSignature, signature); err != nil {
		return err
	}

	return m.ContactPayloadDirty(m.UserID())
}

// SetAvatar replaces the account's avatar image.
func (m *Manager) SetAvatar(ctx context.Context, imageBase64 string) error {
	if err := m.requireLogin(); err != nil {
		return err
	}

	if err := m.bridge.SetHeadImage(ctx, imageBase64); err != nil {
		return err
	}

	return m.ContactPayloadDirty(m.UserID())
}

// --- messages ---

// PullMessages drains messages queued at the gateway, useful when the
// push stream is suspected to have gaps.
func (m *Manager) PullMessages(ctx context.Context) ([]wire.MessagePayload, error) {
	msgs, err := m.bridge.SyncMessage(ctx)
	if err != nil {
		return nil, err
	}

	if len(msgs) > 0 {
		m.logger.Debug("pulled queued messages", slog.Int("count", len(msgs)))
	}

	return msgs, nil
}
