// Package wire defines the JSON envelope exchanged with the padchat
// gateway and the payload types carried inside it. The gateway speaks a
// loose JSON-RPC dialect: requests name an API and carry positional,
// percent-encoded string arguments; responses echo the request's msgId
// and carry a percent-encoded JSON document in data.
package wire

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Control codes the gateway places in the top-level type field of a
// frame. Anything else is a call response or a pushed message batch.
const (
	// ControlLogout is a forced logout of the WeChat account. The
	// session is recoverable by scanning a fresh QR code.
	ControlLogout = -1

	// ControlInvalidToken means the gateway rejected our token outright.
	ControlInvalidToken = -1111

	// ControlTokenOnline means the token is already bound to another
	// live connection.
	ControlTokenOnline = -1112

	// ControlTokenExpired means the token's subscription has lapsed.
	ControlTokenExpired = -1113

	// controlNone marks a frame without a control code.
	controlNone = 0
)

// Request is the outgoing call envelope. Param entries are already
// percent-encoded by EncodeParams.
type Request struct {
	UserID  string   `json:"userId"`
	MsgID   string   `json:"msgId"`
	APIName string   `json:"apiName"`
	Param   []string `json:"param"`
}

// Frame is an inbound frame after the first-stage decode. Exactly one
// of the three interpretations applies: a control code (Control != 0),
// a call response (MsgID != ""), or a pushed message batch (Data only).
type Frame struct {
	Control int
	MsgID   string
	Data    string
}

// frameEnvelope is the raw JSON shape of an inbound frame.
type frameEnvelope struct {
	Type  int    `json:"type"`
	MsgID string `json:"msgId"`
	Data  string `json:"data"`
}

// ParseFrame decodes an inbound frame. The gjson probe rejects
// non-object frames cheaply before the full unmarshal.
func ParseFrame(data []byte) (Frame, error) {
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return Frame{}, fmt.Errorf("frame is not a JSON object (%d bytes)", len(data))
	}

	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}

	return Frame{Control: env.Type, MsgID: env.MsgID, Data: env.Data}, nil
}

// IsControl reports whether the frame carries a gateway control code.
func (f Frame) IsControl() bool {
	return f.Control != controlNone
}

// IsResponse reports whether the frame answers an outstanding call.
func (f Frame) IsResponse() bool {
	return !f.IsControl() && f.MsgID != ""
}

// IsPush reports whether the frame is an unsolicited message batch.
func (f Frame) IsPush() bool {
	return !f.IsControl() && f.MsgID == "" && f.Data != ""
}

// EncodeParams percent-encodes positional arguments for the request
// envelope. The gateway expects JavaScript encodeURIComponent encoding,
// which leaves !'()*~ alone and never emits '+' for spaces.
func EncodeParams(args ...string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = encodeComponent(a)
	}

	return out
}

// componentFixups undoes the places where QueryEscape diverges from
// encodeURIComponent: spaces and the unreserved marks !'()*~.
var componentFixups = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
	"%7E", "~",
)

func encodeComponent(s string) string {
	return componentFixups.Replace(url.QueryEscape(s))
}

// Decode percent-decodes a frame's data field and unmarshals the JSON
// document inside it into v.
func Decode(data string, v any) error {
	plain, err := url.PathUnescape(data)
	if err != nil {
		return fmt.Errorf("percent-decoding data: %w", err)
	}

	if err := json.Unmarshal([]byte(plain), v); err != nil {
		return fmt.Errorf("decoding data payload: %w", err)
	}

	return nil
}

// DecodeRaw percent-decodes a frame's data field and returns the raw
// JSON document for callers that decide the shape later.
func DecodeRaw(data string) (json.RawMessage, error) {
	plain, err := url.PathUnescape(data)
	if err != nil {
		return nil, fmt.Errorf("percent-decoding data: %w", err)
	}

	if !gjson.Valid(plain) {
		return nil, fmt.Errorf("data payload is not valid JSON")
	}

	return json.RawMessage(plain), nil
}

// DecodePushMessages decodes a push frame's data field into message
// payloads. Entries without a gateway message id are dropped; the
// gateway occasionally interleaves bookkeeping records that carry no id
// and cannot be deduplicated or delivered.
func DecodePushMessages(data string) ([]MessagePayload, error) {
	var msgs []MessagePayload
	if err := Decode(data, &msgs); err != nil {
		return nil, fmt.Errorf("decoding push batch: %w", err)
	}

	out := msgs[:0]

	for _, m := range msgs {
		if m.MsgID == "" {
			continue
		}

		out = append(out, m)
	}

	return out, nil
}
