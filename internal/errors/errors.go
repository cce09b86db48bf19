package errors

import "errors"

// Transport errors.
var (
	ErrNotConnected      = errors.New("gateway connection is not established")
	ErrCallTimeout       = errors.New("timed out waiting for gateway response")
	ErrMalformedResponse = errors.New("gateway response was not decodable")
)

// Fatal gateway token errors. These end the session; the text is shown
// to the operator, so it explains what to do next.
var (
	ErrInvalidToken = errors.New("" +
		"gateway rejected the token as invalid\n" +
		"\n" +
		"  1. check PADCHAT_TOKEN for typos or truncation\n" +
		"  2. confirm the token was issued for this gateway endpoint\n")

	ErrTokenOnline = errors.New("" +
		"gateway token is already in use by another connection\n" +
		"\n" +
		"  only one client may hold a token at a time; stop the other\n" +
		"  client or obtain a separate token before retrying\n")

	ErrTokenExpired = errors.New("" +
		"gateway token has expired\n" +
		"\n" +
		"  renew the token with your gateway provider and update\n" +
		"  PADCHAT_TOKEN before restarting\n")
)

// Session errors.
var (
	ErrCacheExists     = errors.New("cache exists")
	ErrNotLoggedIn     = errors.New("no authenticated WeChat session")
	ErrLoginFailed     = errors.New("login rejected by gateway")
	ErrReconnectFailed = errors.New("reconnect attempts exhausted")
)
