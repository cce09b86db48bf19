package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	perrors "github.com/padsync/padchat/internal/errors"
	"github.com/padsync/padchat/internal/wire"
)

// qrLoginRedirectMax bounds how many gateway redirects a QR login will
// follow before giving up.
const qrLoginRedirectMax = 5

// roomCapacityStatus is the status WXAddChatRoomMember returns when the
// room has grown past the direct-add limit and members must be invited
// instead.
const roomCapacityStatus = -2028

// memberListGoneStatus is the status WXGetChatRoomMember returns for a
// room the account is no longer in.
const memberListGoneStatus = -19

// call runs an API call and decodes the data payload into v. A nil v
// discards the payload. Decode failures are liveness-relevant, so they
// carry ErrMalformedResponse.
func (b *Bridge) call(ctx context.Context, apiName string, v any, args ...string) error {
	raw, err := b.Call(ctx, apiName, args...)
	if err != nil {
		return err
	}

	if v == nil || raw == nil {
		return nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %s response: %w: %v", apiName, perrors.ErrMalformedResponse, err)
	}

	return nil
}

// checkStatus runs a call whose response is a bare status document and
// fails unless the status is zero.
func (b *Bridge) checkStatus(ctx context.Context, apiName string, args ...string) error {
	var resp wire.StatusResponse
	if err := b.call(ctx, apiName, &resp, args...); err != nil {
		return err
	}

	if resp.Status != 0 {
		return fmt.Errorf("%s refused with status %d", apiName, resp.Status)
	}

	return nil
}

// --- session setup ---

// Init binds the gateway token to this connection.
func (b *Bridge) Init(ctx context.Context) error {
	return b.checkStatus(ctx, wire.APIInit)
}

// Initialize starts a fresh WeChat instance on the gateway.
func (b *Bridge) Initialize(ctx context.Context) error {
	return b.checkStatus(ctx, wire.APIWXInitialize)
}

// HeartBeat probes the gateway's WeChat session.
func (b *Bridge) HeartBeat(ctx context.Context) (*wire.StatusResponse, error) {
	var resp wire.StatusResponse
	if err := b.call(ctx, wire.APIWXHeartBeat, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Logout ends the WeChat session at the gateway.
func (b *Bridge) Logout(ctx context.Context) error {
	return b.call(ctx, wire.APIWXLogout, nil)
}

// --- login ---

// GetQRCode fetches a login QR code. An empty QRCode means the gateway
// instance is not initialized yet; callers re-run Initialize and retry.
func (b *Bridge) GetQRCode(ctx context.Context) (*wire.QRCodeResponse, error) {
	var resp wire.QRCodeResponse
	if err := b.call(ctx, wire.APIWXGetQRCode, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// CheckQRCode polls the scan state of the current QR code.
func (b *Bridge) CheckQRCode(ctx context.Context) (*wire.CheckQRCodeResponse, error) {
	var resp wire.CheckQRCodeResponse
	if err := b.call(ctx, wire.APIWXCheckQRCode, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// QRCodeLogin completes a confirmed QR scan with the credentials the
// scan produced, following gateway redirects a bounded number of times.
func (b *Bridge) QRCodeLogin(ctx context.Context, userName, password string) (*wire.LoginResponse, error) {
	for attempt := 0; attempt < qrLoginRedirectMax; attempt++ {
		var resp wire.LoginResponse
		if err := b.call(ctx, wire.APIWXQRCodeLogin, &resp, userName, password); err != nil {
			return nil, err
		}

		switch resp.Status {
		case 0:
			return &resp, nil

		case wire.LoginStatusRedirect:
			continue

		case wire.LoginStatusBadCredentials:
			return nil, fmt.Errorf("scan credentials rejected: %w", perrors.ErrLoginFailed)

		default:
			return nil, fmt.Errorf("QR login refused with status %d: %w", resp.Status, perrors.ErrLoginFailed)
		}
	}

	return nil, fmt.Errorf("too many QR login redirects: %w", perrors.ErrLoginFailed)
}

// AutoLogin resumes a session from the stored device fingerprint and
// the given login token. A nil response means the gateway had nothing
// to resume.
func (b *Bridge) AutoLogin(ctx context.Context, token string) (*wire.LoginResponse, error) {
	raw, err := b.Call(ctx, wire.APIWXAutoLogin, token)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, nil
	}

	var resp wire.LoginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w: %v", wire.APIWXAutoLogin, perrors.ErrMalformedResponse, err)
	}

	return &resp, nil
}

// LoginRequest asks the phone to confirm a token-based login.
func (b *Bridge) LoginRequest(ctx context.Context, token string) (*wire.LoginResponse, error) {
	var resp wire.LoginResponse
	if err := b.call(ctx, wire.APIWXLoginRequest, &resp, token); err != nil {
		return nil, err
	}

	return &resp, nil
}

// GetLoginToken fetches a fresh auto-login token for the current session.
func (b *Bridge) GetLoginToken(ctx context.Context) (string, error) {
	var resp wire.LoginTokenResponse
	if err := b.call(ctx, wire.APIWXGetLoginToken, &resp); err != nil {
		return "", err
	}

	if resp.Token == "" {
		return "", fmt.Errorf("gateway returned an empty login token")
	}

	return resp.Token, nil
}

// GenerateDeviceData creates a fresh 62-data device fingerprint.
func (b *Bridge) GenerateDeviceData(ctx context.Context) (string, error) {
	var resp wire.DeviceDataResponse
	if err := b.call(ctx, wire.APIWXGenerateWxDat, &resp); err != nil {
		return "", err
	}

	if resp.Data == "" {
		return "", fmt.Errorf("gateway returned empty device data")
	}

	return resp.Data, nil
}

// LoadDeviceData installs a stored 62-data device fingerprint into the
// gateway instance. An empty string is accepted and leaves the gateway
// to generate its own.
func (b *Bridge) LoadDeviceData(ctx context.Context, data string) error {
	return b.call(ctx, wire.APIWXLoadWxDat, nil, data)
}

// --- sync ---

// SyncContact fetches the next page of the contact sync stream.
func (b *Bridge) SyncContact(ctx context.Context) ([]wire.SyncRecord, error) {
	var page []wire.SyncRecord
	if err := b.call(ctx, wire.APIWXSyncContact, &page); err != nil {
		return nil, err
	}

	return page, nil
}

// SyncMessage drains messages the gateway has queued for us.
func (b *Bridge) SyncMessage(ctx context.Context) ([]wire.MessagePayload, error) {
	var msgs []wire.MessagePayload
	if err := b.call(ctx, wire.APIWXSyncMessage, &msgs); err != nil {
		return nil, err
	}

	return msgs, nil
}

// --- contacts and rooms ---

// GetContact fetches the raw contact record for an individual id.
func (b *Bridge) GetContact(ctx context.Context, id string) (*wire.ContactPayload, error) {
	var resp wire.ContactPayload
	if err := b.call(ctx, wire.APIWXGetContact, &resp, id); err != nil {
		return nil, err
	}

	return &resp, nil
}

// GetRoom fetches the raw room record for a chatroom id. The gateway
// serves rooms from the same endpoint as contacts.
func (b *Bridge) GetRoom(ctx context.Context, id string) (*wire.RoomPayload, error) {
	var resp wire.RoomPayload
	if err := b.call(ctx, wire.APIWXGetContact, &resp, id); err != nil {
		return nil, err
	}

	return &resp, nil
}

// GetRoomMembers fetches a room's member list. Returns nil (no error)
// when the gateway has no record of the room, either because it
// answered with no data or because the account is no longer a member.
func (b *Bridge) GetRoomMembers(ctx context.Context, roomID string) (*wire.MemberListPayload, error) {
	raw, err := b.Call(ctx, wire.APIWXGetChatRoomMember, roomID)
	if err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, nil
	}

	var resp wire.MemberListPayload
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w: %v", wire.APIWXGetChatRoomMember, perrors.ErrMalformedResponse, err)
	}

	if resp.Status == memberListGoneStatus {
		return nil, nil
	}

	return &resp, nil
}

// SearchContact resolves a stranger by id or phone number.
func (b *Bridge) SearchContact(ctx context.Context, query string) (*wire.SearchContactResponse, error) {
	var resp wire.SearchContactResponse
	if err := b.call(ctx, wire.APIWXSearchContact, &resp, query); err != nil {
		return nil, err
	}

	return &resp, nil
}

// SetUserRemark sets the remark (alias) shown for a contact.
func (b *Bridge) SetUserRemark(ctx context.Context, id, remark string) error {
	return b.checkStatus(ctx, wire.APIWXSetUserRemark, id, remark)
}

// --- messaging ---

// SendMsg sends a text message. atList mentions members in a room
// conversation.
func (b *Bridge) SendMsg(ctx context.Context, to, content string, atList ...string) error {
	return b.checkStatus(ctx, wire.APIWXSendMsg, to, content, strings.Join(atList, ","))
}

// SendImage sends an image, base64-encoded.
func (b *Bridge) SendImage(ctx context.Context, to, imageBase64 string) error {
	return b.checkStatus(ctx, wire.APIWXSendImage, to, imageBase64)
}

// --- room administration ---

// CreateRoom creates a chatroom with the given members and returns the
// new room id.
func (b *Bridge) CreateRoom(ctx context.Context, memberIDs []string) (string, error) {
	var resp wire.CreateRoomResponse
	if err := b.call(ctx, wire.APIWXCreateChatRoom, &resp, strings.Join(memberIDs, ",")); err != nil {
		return "", err
	}

	if resp.UserName == "" {
		return "", fmt.Errorf("room creation refused with status %d", resp.Status)
	}

	return resp.UserName, nil
}

// AddRoomMember adds a contact to a room directly, falling back to an
// invitation when the room is past the direct-add capacity.
func (b *Bridge) AddRoomMember(ctx context.Context, roomID, contactID string) error {
	var resp wire.StatusResponse
	if err := b.call(ctx, wire.APIWXAddChatRoomMember, &resp, roomID, contactID); err != nil {
		return err
	}

	switch resp.Status {
	case 0:
		return nil

	case roomCapacityStatus:
		return b.InviteRoomMember(ctx, roomID, contactID)

	default:
		return fmt.Errorf("adding room member refused with status %d", resp.Status)
	}
}

// InviteRoomMember invites a contact to a room via an invitation link.
func (b *Bridge) InviteRoomMember(ctx context.Context, roomID, contactID string) error {
	return b.checkStatus(ctx, wire.APIWXInviteChatRoomMember, roomID, contactID)
}

// DeleteRoomMember removes a contact from a room the account owns.
func (b *Bridge) DeleteRoomMember(ctx context.Context, roomID, contactID string) error {
	return b.checkStatus(ctx, wire.APIWXDeleteChatRoomMember, roomID, contactID)
}

// SetRoomName renames a room.
func (b *Bridge) SetRoomName(ctx context.Context, roomID, name string) error {
	return b.checkStatus(ctx, wire.APIWXSetChatroomName, roomID, name)
}

// QuitRoom leaves a room.
func (b *Bridge) QuitRoom(ctx context.Context, roomID string) error {
	return b.checkStatus(ctx, wire.APIWXQuitChatRoom, roomID)
}

// --- friendship ---

// AddUser sends a friend request to a stranger resolved earlier with
// SearchContact.
func (b *Bridge) AddUser(ctx context.Context, stranger, ticket string, greeting string) error {
	return b.checkStatus(ctx, wire.APIWXAddUser, stranger, ticket, strconv.Itoa(addUserSourceSearch), greeting)
}

// addUserSourceSearch is the friend-request source code for contacts
// found through search.
const addUserSourceSearch = 3

// AcceptUser accepts an inbound friend request.
func (b *Bridge) AcceptUser(ctx context.Context, stranger, ticket string) error {
	return b.checkStatus(ctx, wire.APIWXAcceptUser, stranger, ticket)
}

// DeleteUser removes a friend.
func (b *Bridge) DeleteUser(ctx context.Context, id string) error {
	return b.checkStatus(ctx, wire.APIWXDeleteUser, id)
}

// SayHello greets a stranger without a friend request.
func (b *Bridge) SayHello(ctx context.Context, stranger, ticket, content string) error {
	return b.checkStatus(ctx, wire.APIWXSayHello, stranger, ticket, content)
}

// --- own profile ---

// SetUserInfo updates one field of the account's own profile. Field
// codes follow the gateway convention: 1 nickname, 2 signature.
func (b *Bridge) SetUserInfo(ctx context.Context, field int, value string) error {
	return b.checkStatus(ctx, wire.APIWXSetUserInfo, strconv.Itoa(field), value)
}

// SetHeadImage replaces the account's avatar, base64-encoded.
func (b *Bridge) SetHeadImage(ctx context.Context, imageBase64 string) error {
	return b.checkStatus(ctx, wire.APIWXSetHeadImage, imageBase64)
}
