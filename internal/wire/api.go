package wire

// Gateway API names. The init call is the only one not prefixed WX.
const (
	APIInit                   = "init"
	APIWXInitialize           = "WXInitialize"
	APIWXGetQRCode            = "WXGetQRCode"
	APIWXCheckQRCode          = "WXCheckQRCode"
	APIWXQRCodeLogin          = "WXQRCodeLogin"
	APIWXHeartBeat            = "WXHeartBeat"
	APIWXSyncMessage          = "WXSyncMessage"
	APIWXGenerateWxDat        = "WXGenerateWxDat"
	APIWXLoadWxDat            = "WXLoadWxDat"
	APIWXAutoLogin            = "WXAutoLogin"
	APIWXLoginRequest         = "WXLoginRequest"
	APIWXGetLoginToken        = "WXGetLoginToken"
	APIWXLogout               = "WXLogout"
	APIWXSyncContact          = "WXSyncContact"
	APIWXGetContact           = "WXGetContact"
	APIWXGetChatRoomMember    = "WXGetChatRoomMember"
	APIWXSendMsg              = "WXSendMsg"
	APIWXSendImage            = "WXSendImage"
	APIWXSetUserRemark        = "WXSetUserRemark"
	APIWXCreateChatRoom       = "WXCreateChatRoom"
	APIWXAddChatRoomMember    = "WXAddChatRoomMember"
	APIWXInviteChatRoomMember = "WXInviteChatRoomMember"
	APIWXDeleteChatRoomMember = "WXDeleteChatRoomMember"
	APIWXSetChatroomName      = "WXSetChatroomName"
	APIWXQuitChatRoom         = "WXQuitChatRoom"
	APIWXAddUser              = "WXAddUser"
	APIWXAcceptUser           = "WXAcceptUser"
	APIWXDeleteUser           = "WXDeleteUser"
	APIWXSearchContact        = "WXSearchContact"
	APIWXSetUserInfo          = "WXSetUserInfo"
	APIWXSetHeadImage         = "WXSetHeadImage"
	APIWXSayHello             = "WXSayHello"
)

// preLoginAPIs are the calls the gateway accepts before the WeChat
// account is authenticated: session setup, the QR handshake, the three
// login paths, liveness probes, and teardown. Everything else requires
// an authenticated session and is buffered while disconnected.
var preLoginAPIs = map[string]struct{}{
	APIInit:            {},
	APIWXInitialize:    {},
	APIWXGetQRCode:     {},
	APIWXCheckQRCode:   {},
	APIWXQRCodeLogin:   {},
	APIWXHeartBeat:     {},
	APIWXSyncMessage:   {},
	APIWXGenerateWxDat: {},
	APIWXLoadWxDat:     {},
	APIWXAutoLogin:     {},
	APIWXLoginRequest:  {},
	APIWXGetLoginToken: {},
	APIWXLogout:        {},
}

// RequiresLogin reports whether an API needs an authenticated session.
func RequiresLogin(apiName string) bool {
	_, ok := preLoginAPIs[apiName]

	return !ok
}
