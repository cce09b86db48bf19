package e2e_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/padsync/padchat/internal/gateway"
	"github.com/padsync/padchat/internal/manager"
	"github.com/padsync/padchat/internal/memory"
	"github.com/padsync/padchat/internal/wire"
)

const testToken = "padchat-e2e-token"

// apiHandler answers one API call. It returns the response document as
// raw JSON; ok=false answers with an empty frame (the gateway's "no
// result" shape).
type apiHandler func(params []string) (doc string, ok bool)

// harness runs an in-process gateway speaking the real WebSocket
// envelope, so the bridge and manager under test are exercised
// end to end.
type harness struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]apiHandler
	calls    []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		handlers: make(map[string]apiHandler),
	}

	h.srv = httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(h.srv.Close)

	return h
}

func (h *harness) endpoint() string {
	u, err := url.Parse(h.srv.URL)
	require.NoError(h.t, err)
	u.Scheme = "ws"

	return u.String()
}

// handle registers the responder for one API name.
func (h *harness) handle(apiName string, fn apiHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.handlers[apiName] = fn
}

// handleJSON registers a static response document.
func (h *harness) handleJSON(apiName, doc string) {
	h.handle(apiName, func(_ []string) (string, bool) {
		return doc, true
	})
}

func (h *harness) callsTo(apiName string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, c := range h.calls {
		if c == apiName {
			n++
		}
	}

	return n
}

func (h *harness) serve(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.conn = c
	h.mu.Unlock()

	ctx := r.Context()

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}

		var req wire.Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		h.mu.Lock()
		h.calls = append(h.calls, req.APIName)
		fn := h.handlers[req.APIName]
		h.mu.Unlock()

		params := make([]string, len(req.Param))
		for i, p := range req.Param {
			decoded, err := url.PathUnescape(p)
			require.NoError(h.t, err)
			params[i] = decoded
		}

		frame := map[string]any{"msgId": req.MsgID}

		if fn != nil {
			if doc, ok := fn(params); ok {
				frame["data"] = wire.EncodeParams(doc)[0]
			}
		}

		h.writeJSON(frame)
	}
}

func (h *harness) writeJSON(frame map[string]any) {
	payload, err := json.Marshal(frame)
	require.NoError(h.t, err)

	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()

	if conn == nil {
		return
	}

	// Writes race between the read loop and test pushes.
	_ = conn.Write(context.Background(), websocket.MessageText, payload)
}

// push delivers unsolicited messages the way the gateway does.
func (h *harness) push(msgs ...wire.MessagePayload) {
	batch, err := json.Marshal(msgs)
	require.NoError(h.t, err)

	h.writeJSON(map[string]any{"data": wire.EncodeParams(string(batch))[0]})
}

// control sends a bare control code frame.
func (h *harness) control(code int) {
	h.writeJSON(map[string]any{"type": code})
}

// --- event recording ---

type recordedEvents struct {
	mu       sync.Mutex
	scans    []int
	logins   []string
	messages []wire.MessagePayload
	resets   []string
	readies  int
}

func (r *recordedEvents) events() manager.Events {
	return manager.Events{
		OnScan: func(_ string, status int) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.scans = append(r.scans, status)
		},
		OnLogin: func(userID string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.logins = append(r.logins, userID)
		},
		OnMessage: func(msg wire.MessagePayload) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, msg)
		},
		OnReset: func(reason string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.resets = append(r.resets, reason)
		},
		OnReady: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.readies++
		},
	}
}

func (r *recordedEvents) loginCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.logins)
}

func (r *recordedEvents) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.messages)
}

func (r *recordedEvents) resetCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.resets)
}

func (r *recordedEvents) readyCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.readies
}

// --- assembly ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager wires a real bridge and manager against the harness.
// The returned slot store starts empty; tests that exercise a resumed
// session seed it with seedDevice first.
func newTestManager(t *testing.T, h *harness) (*manager.Manager, *recordedEvents, *memory.BoltStore) {
	t.Helper()

	logger := testLogger()

	slots, err := memory.OpenBolt(t.TempDir(), testToken)
	require.NoError(t, err)
	t.Cleanup(func() { slots.Close() })

	recorded := &recordedEvents{}

	var mgr *manager.Manager

	bridge := gateway.New(gateway.Config{
		Endpoint: h.endpoint(),
		Token:    testToken,
		OnMessage: func(msg wire.MessagePayload) {
			mgr.HandleMessage(msg)
		},
		OnReset: func() {
			mgr.HandleReset()
		},
		OnReconnected: func() {
			mgr.HandleReconnected()
		},
	}, logger)

	mgr = manager.New(bridge, manager.Config{
		GatewayToken: testToken,
		CacheRoot:    t.TempDir(),
		Slots:        slots,
		Events:       recorded.events(),
	}, logger)

	return mgr, recorded, slots
}

// seedDevice stores a device identity so the next login can resume
// through auto-login instead of the QR flow.
func seedDevice(t *testing.T, slots *memory.BoltStore, userID, token string) {
	t.Helper()

	slot := memory.Slot{CurrentUserID: userID}
	slot.SetDevice(userID, memory.Device{Data: "62-data-seeded", Token: token})

	require.NoError(t, slots.Save(context.Background(), slot))
}

// startManager runs mgr.Start in the background for the test duration.
func startManager(t *testing.T, mgr *manager.Manager) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		defer close(done)
		_ = mgr.Start(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		mgr.Stop()
		<-done
	})
}
