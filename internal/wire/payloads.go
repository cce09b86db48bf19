package wire

import "strings"

// roomIDSuffix distinguishes chatroom ids from contact ids. A WeChat
// room id always ends in @chatroom; every other non-empty id is a
// contact (individuals and official accounts alike).
const roomIDSuffix = "@chatroom"

// IsRoomID reports whether id names a chatroom.
func IsRoomID(id string) bool {
	return strings.HasSuffix(id, roomIDSuffix)
}

// IsContactID reports whether id names an individual contact.
func IsContactID(id string) bool {
	return id != "" && !IsRoomID(id)
}

// QR scan statuses returned by WXCheckQRCode.
const (
	QRStatusIgnore      = -2
	QRStatusUnknown     = -1
	QRStatusWaitScan    = 0
	QRStatusWaitConfirm = 1
	QRStatusConfirmed   = 2
	QRStatusTimeout     = 3
	QRStatusCancel      = 4
)

// Message types carried by sync records and pushed messages.
const (
	// MsgTypeContact marks a contact or room record in a sync page.
	MsgTypeContact = 2

	// MsgTypeSyncMarker is a keep-alive record the gateway interleaves
	// into sync pages. Carries a uin and nothing of interest.
	MsgTypeSyncMarker = 2048
)

// ContactPayload is the gateway's raw contact record.
type ContactPayload struct {
	UserName   string `json:"user_name"`
	NickName   string `json:"nick_name"`
	Remark     string `json:"remark"`
	Sex        int    `json:"sex"`
	Signature  string `json:"signature"`
	Stranger   string `json:"stranger"`
	Ticket     string `json:"ticket"`
	BigHead    string `json:"big_head"`
	SmallHead  string `json:"small_head"`
	City       string `json:"city"`
	Provincia  string `json:"provincia"`
	Country    string `json:"country"`
	PyInitial  string `json:"py_initial"`
	QuanPin    string `json:"quan_pin"`
	LabelLists string `json:"label_lists"`
	Status     int    `json:"status"`
}

// RoomPayload is the gateway's raw chatroom record. The gateway serves
// rooms and contacts from the same endpoint; the id suffix decides
// which shape applies.
type RoomPayload struct {
	UserName       string `json:"user_name"`
	NickName       string `json:"nick_name"`
	ChatroomOwner  string `json:"chatroom_owner"`
	ChatroomID     int64  `json:"chatroom_id"`
	MemberCount    int    `json:"member_count"`
	MaxMemberCount int    `json:"max_member_count"`
	BigHead        string `json:"big_head"`
	SmallHead      string `json:"small_head"`
}

// RoomMemberPayload is one member entry inside a room's member list.
type RoomMemberPayload struct {
	UserName         string `json:"user_name"`
	NickName         string `json:"nick_name"`
	ChatroomNickName string `json:"chatroom_nick_name"`
	InvitedBy        string `json:"invited_by"`
	BigHead          string `json:"big_head"`
	SmallHead        string `json:"small_head"`
}

// MemberListPayload is the WXGetChatRoomMember response.
type MemberListPayload struct {
	UserName   string              `json:"user_name"`
	ChatroomID int64               `json:"chatroom_id"`
	Count      int                 `json:"count"`
	Member     []RoomMemberPayload `json:"member"`
	Status     int                 `json:"status"`
}

// InvitationPayload is a parsed room-invitation record kept in the
// entity cache until the invitation is accepted or discarded.
type InvitationPayload struct {
	ID        string `json:"id"`
	FromUser  string `json:"from_user"`
	RoomName  string `json:"room_name"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// Sync stream continue markers carried by SyncRecord.Continue.
const (
	// SyncContinueDone ends the contact sync stream.
	SyncContinueDone = 0

	// SyncContinueGo means more records follow.
	SyncContinueGo = 1
)

// SyncRecord is one record of a WXSyncContact page. The gateway mixes
// contact and room records in the same stream, tagged by MsgType and
// distinguished by the id suffix; room-only fields sit alongside the
// embedded contact shape.
type SyncRecord struct {
	Continue int   `json:"continue"`
	MsgType  int   `json:"msg_type"`
	Uin      int64 `json:"uin"`

	ContactPayload

	ChatroomOwner  string `json:"chatroom_owner"`
	ChatroomID     int64  `json:"chatroom_id"`
	MemberCount    int    `json:"member_count"`
	MaxMemberCount int    `json:"max_member_count"`
}

// Contact returns the record reshaped as a contact payload.
func (r SyncRecord) Contact() ContactPayload {
	return r.ContactPayload
}

// Room returns the record reshaped as a room payload.
func (r SyncRecord) Room() RoomPayload {
	return RoomPayload{
		UserName:       r.UserName,
		NickName:       r.NickName,
		ChatroomOwner:  r.ChatroomOwner,
		ChatroomID:     r.ChatroomID,
		MemberCount:    r.MemberCount,
		MaxMemberCount: r.MaxMemberCount,
		BigHead:        r.BigHead,
		SmallHead:      r.SmallHead,
	}
}

// MessagePayload is a pushed message.
type MessagePayload struct {
	MsgID       string `json:"msg_id"`
	MsgType     int    `json:"msg_type"`
	SubType     int    `json:"sub_type"`
	Content     string `json:"content"`
	Data        string `json:"data"`
	Description string `json:"description"`
	FromUser    string `json:"from_user"`
	ToUser      string `json:"to_user"`
	MsgSource   string `json:"msg_source"`
	Status      int    `json:"status"`
	Timestamp   int64  `json:"timestamp"`
}

// QRCodeResponse is the WXGetQRCode response. QRCode is a base64 PNG.
type QRCodeResponse struct {
	QRCode string `json:"qr_code"`
}

// CheckQRCodeResponse is the WXCheckQRCode response. UserName and
// Password are only present once the scan is confirmed; ExpiredTime
// counts down the seconds the code remains valid.
type CheckQRCodeResponse struct {
	Status      int    `json:"status"`
	ExpiredTime int    `json:"expired_time"`
	UserName    string `json:"user_name"`
	Password    string `json:"password"`
	NickName    string `json:"nick_name"`
	HeadURL     string `json:"head_url"`
}

// LoginResponse covers WXQRCodeLogin, WXAutoLogin and WXLoginRequest,
// which share a status plus optional identity fields.
type LoginResponse struct {
	Status   int    `json:"status"`
	UserName string `json:"user_name"`
	NickName string `json:"nick_name"`
	Uin      int64  `json:"uin"`
}

// Login statuses beyond plain success (0).
const (
	// LoginStatusRedirect asks the client to repeat WXQRCodeLogin
	// against a new gateway host.
	LoginStatusRedirect = -301

	// LoginStatusBadCredentials means the scan-issued credentials were
	// rejected.
	LoginStatusBadCredentials = -3

	// LoginStatusLoggedOut means the account was logged out on another
	// device and the cached token is void.
	LoginStatusLoggedOut = -2023
)

// LoginTokenResponse is the WXGetLoginToken response. The token is the
// reusable auto-login credential tied to the current device identity.
type LoginTokenResponse struct {
	Token string `json:"token"`
	Uin   int64  `json:"uin"`
}

// DeviceDataResponse is the WXGenerateWxDat / WXLoadWxDat response.
// Data is the opaque 62-data device fingerprint.
type DeviceDataResponse struct {
	Data   string `json:"data"`
	Status int    `json:"status"`
}

// StatusResponse is the minimal response many mutating calls return.
type StatusResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// SearchContactResponse is the WXSearchContact response, used when
// resolving strangers before a friend request.
type SearchContactResponse struct {
	UserName  string `json:"user_name"`
	NickName  string `json:"nick_name"`
	BigHead   string `json:"big_head"`
	SmallHead string `json:"small_head"`
	Sex       int    `json:"sex"`
	Province  string `json:"provincia"`
	City      string `json:"city"`
	Stranger  string `json:"stranger"`
	Ticket    string `json:"ticket"`
	Status    int    `json:"status"`
}

// CreateRoomResponse is the WXCreateChatRoom response.
type CreateRoomResponse struct {
	UserName string `json:"user_name"`
	Status   int    `json:"status"`
}
