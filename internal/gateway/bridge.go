// Package gateway maintains the single WebSocket connection to the
// padchat gateway: the call/response envelope, buffering of calls that
// need an authenticated session, liveness probing, and reconnection.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	perrors "github.com/padsync/padchat/internal/errors"
	"github.com/padsync/padchat/internal/wire"
)

const (
	// callTimeout is how long a sent call waits for its response frame.
	callTimeout = 10 * time.Second

	// reconnectAttempts is the ceiling on consecutive redial attempts
	// before the bridge gives up.
	reconnectAttempts = 6

	// reconnectInterval is the pause before each redial attempt.
	reconnectInterval = 5 * time.Second

	// replayInterval spaces out buffered calls when they are replayed
	// after a reconnect, so the gateway is not flooded.
	replayInterval = 100 * time.Millisecond

	// heartbeatQuiet is how long the connection may stay silent before
	// the bridge probes it with a heartbeat call and a transport ping.
	heartbeatQuiet = 20 * time.Second

	// maxHeartbeatFailures is the number of consecutive failed probes
	// that condemn the connection.
	maxHeartbeatFailures = 3

	// trafficEventInterval paces the observational heartbeat events
	// emitted while frames are flowing.
	trafficEventInterval = 10 * time.Second

	// resetThrottleInterval collapses bursts of forced-logout frames
	// into a single reset signal.
	resetThrottleInterval = 5 * time.Second

	// reconnectThrottleInterval collapses bursts of condemnations into
	// a single reconnect.
	reconnectThrottleInterval = 5 * time.Second

	// inboundChanSize is the buffer size for the channel carrying
	// frames from the reader goroutine to the event loop.
	inboundChanSize = 64

	// dedupSize and dedupTTL bound the pushed-message dedup cache.
	dedupSize = 1000
	dedupTTL  = time.Hour
)

// Status is the bridge's view of the gateway connection.
type Status int32

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// inboundMsg wraps a frame read from the WebSocket by the reader goroutine.
type inboundMsg struct {
	data []byte
	err  error
}

// callResult carries a call's decoded data payload or error back to the
// goroutine blocked in Call.
type callResult struct {
	data json.RawMessage
	err  error
}

// pendingCall is a post-login call buffered while the connection is
// down. Enqueued records arrival order for the replay.
type pendingCall struct {
	req      wire.Request
	enqueued time.Time
}

// Config holds the parameters and callbacks for a Bridge. Callbacks are
// invoked from the event loop goroutine and must not block; OnMessage
// is called once per deduplicated pushed message, in arrival order.
type Config struct {
	Endpoint string
	Token    string

	// OnMessage receives pushed messages.
	OnMessage func(wire.MessagePayload)

	// OnHeartbeat receives observational liveness events, at most one
	// per trafficEventInterval.
	OnHeartbeat func(kind string)

	// OnReset signals a recoverable forced logout.
	OnReset func()

	// OnReconnected fires after a dropped connection is re-established,
	// before buffered calls are replayed.
	OnReconnected func()
}

// Bridge owns the gateway connection and the call envelope on top of it.
//
// Architecture: a reader goroutine feeds inboundCh with raw frames. A
// single event loop goroutine (Listen) matches responses to waiters,
// delivers pushes, and supervises liveness. Outgoing writes happen from
// caller goroutines under connMu.
type Bridge struct {
	logger *slog.Logger

	endpoint string
	token    string

	// conn is guarded by connMu, which also serializes writes.
	conn   wsConn
	connMu sync.Mutex

	// selfID is the logged-in account id, set by the session layer.
	// Used to let the own-profile lookup through before login.
	selfID   string
	selfIDMu sync.RWMutex

	status   Status
	statusMu sync.RWMutex

	// waiters maps outstanding msgIds to their result channels.
	waiters   map[string]chan callResult
	waitersMu sync.Mutex

	pending   []pendingCall
	pendingMu sync.Mutex

	inboundCh chan inboundMsg
	probeCh   chan error

	dedup *expirable.LRU[string, struct{}]

	// heartbeatFails is owned by the event loop goroutine.
	heartbeatFails int

	trafficEvents   *throttle
	resetSignal     *throttle
	reconnectSignal *throttle

	onMessage     func(wire.MessagePayload)
	onHeartbeat   func(string)
	onReset       func()
	onReconnected func()

	stopped   bool
	stoppedMu sync.Mutex
}

// New creates a Bridge from the given config.
func New(cfg Config, logger *slog.Logger) *Bridge {
	return &Bridge{
		logger:          logger,
		endpoint:        cfg.Endpoint,
		token:           cfg.Token,
		waiters:         make(map[string]chan callResult),
		probeCh:         make(chan error, 1),
		dedup:           expirable.NewLRU[string, struct{}](dedupSize, nil, dedupTTL),
		trafficEvents:   newThrottle(trafficEventInterval),
		resetSignal:     newThrottle(resetThrottleInterval),
		reconnectSignal: newThrottle(reconnectThrottleInterval),
		onMessage:       cfg.OnMessage,
		onHeartbeat:     cfg.OnHeartbeat,
		onReset:         cfg.OnReset,
		onReconnected:   cfg.OnReconnected,
	}
}

// Start dials the gateway. A dial failure here is fatal; reconnection
// only applies to connections that were once established.
func (b *Bridge) Start(ctx context.Context) error {
	b.setStatus(StatusConnecting)

	conn, err := dialGateway(ctx, b.endpoint)
	if err != nil {
		b.setStatus(StatusDisconnected)
		return err
	}

	b.setConn(conn)
	b.setStatus(StatusConnected)
	b.logger.Info("gateway connected", slog.String("endpoint", b.endpoint))

	return nil
}

// Stop closes the connection and makes Listen return nil.
func (b *Bridge) Stop() {
	b.stoppedMu.Lock()
	b.stopped = true
	b.stoppedMu.Unlock()

	if conn := b.currentConn(); conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
}

func (b *Bridge) isStopped() bool {
	b.stoppedMu.Lock()
	defer b.stoppedMu.Unlock()

	return b.stopped
}

// SetSelfID tells the bridge which account is logged in. An empty id
// clears it on logout.
func (b *Bridge) SetSelfID(id string) {
	b.selfIDMu.Lock()
	b.selfID = id
	b.selfIDMu.Unlock()
}

// SelfID returns the logged-in account id, or empty.
func (b *Bridge) SelfID() string {
	b.selfIDMu.RLock()
	defer b.selfIDMu.RUnlock()

	return b.selfID
}

// Status returns the current connection status.
func (b *Bridge) Status() Status {
	b.statusMu.RLock()
	defer b.statusMu.RUnlock()

	return b.status
}

func (b *Bridge) setStatus(s Status) {
	b.statusMu.Lock()
	b.status = s
	b.statusMu.Unlock()
}

func (b *Bridge) setConn(conn wsConn) {
	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()
}

func (b *Bridge) currentConn() wsConn {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	return b.conn
}

// Listen is the event loop with automatic reconnection. Returns nil
// after Stop, the fatal token error when the gateway revokes access,
// or ErrReconnectFailed when the redial budget is exhausted.
func (b *Bridge) Listen(ctx context.Context) error {
	connCtx, connCancel := context.WithCancel(ctx)
	b.startReader(connCtx)

	for {
		err := b.eventLoop(ctx, connCtx)
		connCancel()
		b.setStatus(StatusDisconnected)

		if err == nil || b.isStopped() {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if isFatal(err) {
			b.failAllCalls(err)
			return err
		}

		b.logger.Warn("gateway connection lost, reconnecting", slog.String("error", err.Error()))

		reconnected := false

		for attempt := 1; attempt <= reconnectAttempts; attempt++ {
			b.setStatus(StatusConnecting)

			timer := time.NewTimer(reconnectInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}

			conn, dialErr := dialGateway(ctx, b.endpoint)
			if dialErr != nil {
				b.logger.Warn("redial failed",
					slog.Int("attempt", attempt),
					slog.Int("attempts_left", reconnectAttempts-attempt),
					slog.String("error", dialErr.Error()),
				)

				continue
			}

			b.setConn(conn)

			connCtx, connCancel = context.WithCancel(ctx)
			b.startReader(connCtx)
			b.heartbeatFails = 0
			b.setStatus(StatusConnected)
			b.logger.Info("gateway reconnected", slog.Int("attempt", attempt))

			if b.onReconnected != nil {
				b.onReconnected()
			}

			go b.replayPending(ctx)

			reconnected = true

			break
		}

		if !reconnected {
			connCancel()

			err := fmt.Errorf("giving up after %d attempts: %w", reconnectAttempts, perrors.ErrReconnectFailed)
			b.failAllCalls(err)

			return err
		}
	}
}

// startReader launches a goroutine that reads frames into inboundCh.
// The goroutine captures conn and ch by value so a stale reader from a
// previous connection can never feed the new channel.
func (b *Bridge) startReader(connCtx context.Context) {
	ch := make(chan inboundMsg, inboundChanSize)
	b.inboundCh = ch
	conn := b.currentConn()

	go func() {
		for {
			_, data, err := conn.Read(connCtx)
			select {
			case ch <- inboundMsg{data: data, err: err}:
			case <-connCtx.Done():
				return
			}

			if err != nil {
				return
			}
		}
	}()
}

// eventLoop processes one connection's frames and probe results until
// the connection dies or the context is cancelled.
func (b *Bridge) eventLoop(ctx context.Context, connCtx context.Context) error {
	quiet := time.NewTimer(heartbeatQuiet)
	defer quiet.Stop()

	for {
		select {
		case msg := <-b.inboundCh:
			if msg.err != nil {
				return fmt.Errorf("reading frame: %w", msg.err)
			}

			// Any frame proves the connection is alive.
			b.heartbeatFails = 0
			resetQuietTimer(quiet)

			if b.trafficEvents.Ready() && b.onHeartbeat != nil {
				b.onHeartbeat("traffic")
			}

			if err := b.handleFrame(msg.data); err != nil {
				return err
			}

		case err := <-b.probeCh:
			if err == nil {
				b.heartbeatFails = 0
				continue
			}

			if !isLivenessFailure(err) {
				b.logger.Debug("heartbeat probe error", slog.String("error", err.Error()))
				continue
			}

			b.heartbeatFails++
			b.logger.Warn("heartbeat probe failed",
				slog.Int("consecutive", b.heartbeatFails),
				slog.String("error", err.Error()),
			)

			if b.heartbeatFails >= maxHeartbeatFailures && b.reconnectSignal.Ready() {
				b.heartbeatFails = 0

				return fmt.Errorf("connection condemned after %d failed heartbeats", maxHeartbeatFailures)
			}

		case <-quiet.C:
			quiet.Reset(heartbeatQuiet)

			go b.probe(ctx)

		case <-ctx.Done():
			return ctx.Err()

		case <-connCtx.Done():
			return connCtx.Err()
		}
	}
}

func resetQuietTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}

	t.Reset(heartbeatQuiet)
}

// probe checks liveness during a quiet period: a heartbeat call plus a
// transport ping. Runs outside the event loop because the call's
// response arrives through it.
func (b *Bridge) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := b.HeartBeat(ctx)
	if err == nil {
		if conn := b.currentConn(); conn != nil {
			_ = conn.Ping(ctx)
		}
	}

	select {
	case b.probeCh <- err:
	default:
	}
}

// handleFrame routes one inbound frame. Returns an error only for
// fatal control codes.
func (b *Bridge) handleFrame(data []byte) error {
	frame, err := wire.ParseFrame(data)
	if err != nil {
		b.logger.Debug("discarding unparseable frame", slog.Int("bytes", len(data)))
		return nil
	}

	switch {
	case frame.IsControl():
		return b.handleControl(frame)

	case frame.IsResponse():
		b.resolveResponse(frame)

	case frame.IsPush():
		b.handlePush(frame)

	default:
		b.logger.Debug("discarding empty frame")
	}

	return nil
}

// handleControl maps gateway control codes. Forced logout is
// recoverable and surfaces as a throttled reset signal; the three
// token codes end the session.
func (b *Bridge) handleControl(frame wire.Frame) error {
	switch frame.Control {
	case wire.ControlLogout:
		b.logger.Warn("gateway forced a logout")

		if b.resetSignal.Ready() && b.onReset != nil {
			b.onReset()
		}

		return nil

	case wire.ControlInvalidToken:
		return perrors.ErrInvalidToken

	case wire.ControlTokenOnline:
		return perrors.ErrTokenOnline

	case wire.ControlTokenExpired:
		return perrors.ErrTokenExpired

	default:
		b.logger.Warn("unknown control code", slog.Int("code", frame.Control))
		return nil
	}
}

// resolveResponse completes the waiter for a call response.
func (b *Bridge) resolveResponse(frame wire.Frame) {
	var res callResult

	if frame.Data != "" {
		raw, err := wire.DecodeRaw(frame.Data)
		if err != nil {
			res.err = fmt.Errorf("%w: %v", perrors.ErrMalformedResponse, err)
		} else {
			res.data = raw
		}
	}

	if !b.completeCall(frame.MsgID, res) {
		b.logger.Debug("response for unknown call", slog.String("msg_id", frame.MsgID))
	}
}

// handlePush delivers a pushed message batch, dropping duplicates.
func (b *Bridge) handlePush(frame wire.Frame) {
	msgs, err := wire.DecodePushMessages(frame.Data)
	if err != nil {
		b.logger.Warn("discarding malformed push batch", slog.String("error", err.Error()))
		return
	}

	b.deliver(msgs)
}

// DeliverMessages routes messages obtained outside the push stream,
// such as a WXSyncMessage drain, through the same dedup and delivery
// path as pushed messages. A message already seen on either path is
// dropped.
func (b *Bridge) DeliverMessages(msgs []wire.MessagePayload) {
	b.deliver(msgs)
}

func (b *Bridge) deliver(msgs []wire.MessagePayload) {
	for _, m := range msgs {
		if m.MsgID == "" {
			continue
		}

		if _, dup := b.dedup.Get(m.MsgID); dup {
			continue
		}

		b.dedup.Add(m.MsgID, struct{}{})

		if b.onMessage != nil {
			b.onMessage(m)
		}
	}
}

// Call sends an API call and waits for the response's decoded data
// payload. A nil payload with nil error means the gateway answered
// with no data. Calls that need an authenticated session are buffered
// while the connection is down and replayed after reconnect; the own
// account's contact lookup is exempt so a resumed session can fetch
// its own profile before login completes.
func (b *Bridge) Call(ctx context.Context, apiName string, args ...string) (json.RawMessage, error) {
	req := wire.Request{
		UserID:  b.token,
		MsgID:   uuid.NewString(),
		APIName: apiName,
		Param:   wire.EncodeParams(args...),
	}

	ch := make(chan callResult, 1)

	b.waitersMu.Lock()
	b.waiters[req.MsgID] = ch
	b.waitersMu.Unlock()

	if err := b.sendOrBuffer(ctx, req, apiName, args); err != nil {
		b.dropWaiter(req.MsgID)
		return nil, err
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("calling %s: %w", apiName, res.err)
		}

		return res.data, nil

	case <-ctx.Done():
		b.dropWaiter(req.MsgID)
		return nil, ctx.Err()
	}
}

// sendOrBuffer writes the request now, or buffers it when it needs an
// authenticated session and the connection is down. Only transport
// failures defer a call; an encoding failure is the caller's bug and
// propagates.
func (b *Bridge) sendOrBuffer(ctx context.Context, req wire.Request, apiName string, args []string) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", apiName, err)
	}

	deferrable := wire.RequiresLogin(apiName) && !b.isSelfLookup(apiName, args)

	if deferrable && b.Status() != StatusConnected {
		b.enqueuePending(req)
		b.logger.Debug("buffered call while disconnected", slog.String("api", apiName))

		return nil
	}

	if err := b.writeFrame(ctx, data); err != nil {
		if deferrable {
			b.enqueuePending(req)
			b.logger.Debug("buffered call after send failure",
				slog.String("api", apiName),
				slog.String("error", err.Error()),
			)

			return nil
		}

		return fmt.Errorf("sending %s: %w", apiName, err)
	}

	b.armCallTimeout(req.MsgID)

	return nil
}

func (b *Bridge) isSelfLookup(apiName string, args []string) bool {
	self := b.SelfID()

	return apiName == wire.APIWXGetContact && self != "" && len(args) == 1 && args[0] == self
}

func (b *Bridge) write(ctx context.Context, req wire.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	return b.writeFrame(ctx, data)
}

func (b *Bridge) writeFrame(ctx context.Context, data []byte) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.conn == nil {
		return perrors.ErrNotConnected
	}

	return b.conn.Write(ctx, websocket.MessageText, data)
}

// armCallTimeout fails the call if no response arrives in time. The
// timer starts when the request is actually written, not when it is
// buffered.
func (b *Bridge) armCallTimeout(msgID string) {
	time.AfterFunc(callTimeout, func() {
		b.completeCall(msgID, callResult{err: perrors.ErrCallTimeout})
	})
}

// completeCall resolves and removes a waiter. Reports whether the call
// was still outstanding.
func (b *Bridge) completeCall(msgID string, res callResult) bool {
	b.waitersMu.Lock()
	ch, ok := b.waiters[msgID]
	if ok {
		delete(b.waiters, msgID)
	}
	b.waitersMu.Unlock()

	if !ok {
		return false
	}

	ch <- res

	return true
}

func (b *Bridge) dropWaiter(msgID string) {
	b.waitersMu.Lock()
	delete(b.waiters, msgID)
	b.waitersMu.Unlock()
}

func (b *Bridge) enqueuePending(req wire.Request) {
	b.pendingMu.Lock()
	b.pending = append(b.pending, pendingCall{req: req, enqueued: time.Now()})
	b.pendingMu.Unlock()
}

// PendingCount returns the number of buffered calls.
func (b *Bridge) PendingCount() int {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()

	return len(b.pending)
}

// replayPending sends buffered calls oldest-first with replayInterval
// spacing. A send failure puts the unsent remainder back in the buffer
// for the next reconnect.
func (b *Bridge) replayPending(ctx context.Context) {
	b.pendingMu.Lock()
	calls := b.pending
	b.pending = nil
	b.pendingMu.Unlock()

	if len(calls) == 0 {
		return
	}

	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].enqueued.Before(calls[j].enqueued)
	})

	b.logger.Info("replaying buffered calls", slog.Int("count", len(calls)))

	for i, pc := range calls {
		if ctx.Err() != nil {
			b.requeuePending(calls[i:])
			return
		}

		if err := b.write(ctx, pc.req); err != nil {
			b.logger.Warn("replay interrupted, re-buffering",
				slog.Int("remaining", len(calls)-i),
				slog.String("error", err.Error()),
			)
			b.requeuePending(calls[i:])

			return
		}

		b.armCallTimeout(pc.req.MsgID)

		time.Sleep(replayInterval)
	}
}

func (b *Bridge) requeuePending(calls []pendingCall) {
	b.pendingMu.Lock()
	b.pending = append(calls, b.pending...)
	b.pendingMu.Unlock()
}

// failAllCalls resolves every outstanding and buffered call with err.
func (b *Bridge) failAllCalls(err error) {
	b.pendingMu.Lock()
	pending := b.pending
	b.pending = nil
	b.pendingMu.Unlock()

	for _, pc := range pending {
		b.completeCall(pc.req.MsgID, callResult{err: err})
	}

	b.waitersMu.Lock()
	waiters := b.waiters
	b.waiters = make(map[string]chan callResult)
	b.waitersMu.Unlock()

	for _, ch := range waiters {
		ch <- callResult{err: err}
	}
}

// isFatal reports whether err ends the session rather than triggering
// a reconnect.
func isFatal(err error) bool {
	return errors.Is(err, perrors.ErrInvalidToken) ||
		errors.Is(err, perrors.ErrTokenOnline) ||
		errors.Is(err, perrors.ErrTokenExpired)
}

// isLivenessFailure reports whether a probe error indicates a dead or
// garbled connection, as opposed to an application-level refusal.
func isLivenessFailure(err error) bool {
	return errors.Is(err, perrors.ErrCallTimeout) ||
		errors.Is(err, perrors.ErrMalformedResponse) ||
		errors.Is(err, context.DeadlineExceeded)
}
