// Package manager drives a WeChat session on top of the gateway
// bridge: login (QR scan or resumed), the device-identity memory slot,
// the entity cache, contact synchronization, and event delivery.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	perrors "github.com/padsync/padchat/internal/errors"
	"github.com/padsync/padchat/internal/memory"
	"github.com/padsync/padchat/internal/store"
	"github.com/padsync/padchat/internal/wire"
)

const (
	// startRetryMax and startRetryInterval bound the initial bridge
	// start attempts.
	startRetryMax      = 3
	startRetryInterval = time.Second

	// scanInterval is how often the QR scan state is polled.
	scanInterval = time.Second

	// qrReissueThreshold reissues the QR code once its remaining
	// validity drops below this many seconds.
	qrReissueThreshold = 10

	// qrIssueRetryMax bounds how many times a QR code fetch will
	// re-initialize the gateway instance and try again.
	qrIssueRetryMax = 5

	// confirmPollInterval and confirmPollMax pace the auto-login polls
	// while a token login waits for confirmation on the phone.
	confirmPollInterval = 3 * time.Second
	confirmPollMax      = 20
)

// Profile field codes for WXSetUserInfo.
const (
	profileFieldNickName  = 1
	profileFieldSignature = 2
)

// gatewayClient is the slice of the bridge the manager drives. It is an
// interface so the session logic can be tested against a scripted
// gateway.
type gatewayClient interface {
	Start(ctx context.Context) error
	Listen(ctx context.Context) error
	Stop()
	SetSelfID(id string)

	Init(ctx context.Context) error
	Initialize(ctx context.Context) error
	HeartBeat(ctx context.Context) (*wire.StatusResponse, error)
	Logout(ctx context.Context) error

	GetQRCode(ctx context.Context) (*wire.QRCodeResponse, error)
	CheckQRCode(ctx context.Context) (*wire.CheckQRCodeResponse, error)
	QRCodeLogin(ctx context.Context, userName, password string) (*wire.LoginResponse, error)
	AutoLogin(ctx context.Context, token string) (*wire.LoginResponse, error)
	LoginRequest(ctx context.Context, token string) (*wire.LoginResponse, error)
	GetLoginToken(ctx context.Context) (string, error)
	GenerateDeviceData(ctx context.Context) (string, error)
	LoadDeviceData(ctx context.Context, data string) error

	SyncContact(ctx context.Context) ([]wire.SyncRecord, error)
	SyncMessage(ctx context.Context) ([]wire.MessagePayload, error)
	DeliverMessages(msgs []wire.MessagePayload)
	GetContact(ctx context.Context, id string) (*wire.ContactPayload, error)
	GetRoom(ctx context.Context, id string) (*wire.RoomPayload, error)
	GetRoomMembers(ctx context.Context, roomID string) (*wire.MemberListPayload, error)

	SendMsg(ctx context.Context, to, content string, atList ...string) error
	SendImage(ctx context.Context, to, imageBase64 string) error
	SetUserRemark(ctx context.Context, id, remark string) error
	CreateRoom(ctx context.Context, memberIDs []string) (string, error)
	AddRoomMember(ctx context.Context, roomID, contactID string) error
	InviteRoomMember(ctx context.Context, roomID, contactID string) error
	DeleteRoomMember(ctx context.Context, roomID, contactID string) error
	SetRoomName(ctx context.Context, roomID, name string) error
	QuitRoom(ctx context.Context, roomID string) error
	AddUser(ctx context.Context, stranger, ticket, greeting string) error
	AcceptUser(ctx context.Context, stranger, ticket string) error
	DeleteUser(ctx context.Context, id string) error
	SearchContact(ctx context.Context, query string) (*wire.SearchContactResponse, error)
	SetUserInfo(ctx context.Context, field int, value string) error
	SetHeadImage(ctx context.Context, imageBase64 string) error
	SayHello(ctx context.Context, stranger, ticket, content string) error
}

// Events are the manager's outbound callbacks. All are optional and are
// invoked from manager goroutines; they must not block for long.
//
// Cardinality: OnLogin fires exactly once per authenticated session and
// OnReady exactly once per session, after the initial contact sync
// settles. OnScan fires once per issued QR code and once per observed
// scan-status change. The others fire per occurrence.
type Events struct {
	OnScan      func(qrcodeBase64 string, status int)
	OnLogin     func(userID string)
	OnLogout    func(userID string)
	OnMessage   func(msg wire.MessagePayload)
	OnReset     func(reason string)
	OnReconnect func()
	OnReady     func()
	OnDong      func(data string)
	OnError     func(err error)
}

// Config holds the manager's collaborators and settings.
type Config struct {
	// GatewayToken scopes the entity cache and memory slot on disk.
	GatewayToken string

	// CacheRoot is the directory the entity caches live under.
	CacheRoot string

	// Slots persists device identities. Required.
	Slots memory.Store

	Events Events
}

// Manager composes the bridge with persistent state and the login
// state machine.
type Manager struct {
	bridge gatewayClient
	logger *slog.Logger

	gatewayToken string
	cacheRoot    string
	slots        memory.Store
	events       Events

	queue *taskQueue

	// userID is the logged-in account, empty when unauthenticated.
	userID string
	userMu sync.RWMutex

	// cache is open exactly while a session is authenticated.
	cache   *store.EntityStore
	cacheMu sync.Mutex

	progress syncState

	// runCtx is the lifetime of Start, used by bridge callbacks that
	// need to spawn work.
	runCtx context.Context //nolint:containedctx // callbacks from the bridge have no context of their own

	// sessionActive guards against concurrent login flows.
	sessionActive   bool
	sessionActiveMu sync.Mutex
}

// New creates a Manager. The bridge's push and reset callbacks must be
// wired to HandleMessage, HandleReset and HandleReconnected by the
// caller that builds the bridge.
func New(bridge gatewayClient, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		bridge:       bridge,
		logger:       logger,
		gatewayToken: cfg.GatewayToken,
		cacheRoot:    cfg.CacheRoot,
		slots:        cfg.Slots,
		events:       cfg.Events,
		queue:        newTaskQueue(logger),
	}
}

// UserID returns the logged-in account id, or empty.
func (m *Manager) UserID() string {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	return m.userID
}

func (m *Manager) setUserID(id string) {
	m.userMu.Lock()
	m.userID = id
	m.userMu.Unlock()

	m.bridge.SetSelfID(id)
}

// LoggedIn reports whether a WeChat session is authenticated.
func (m *Manager) LoggedIn() bool {
	return m.UserID() != ""
}

// Start runs the session until ctx is cancelled or the bridge dies
// fatally. It dials the gateway (with a bounded retry), then runs the
// bridge event loop, the room-member fetch queue, and the login flow.
func (m *Manager) Start(ctx context.Context) error {
	m.runCtx = ctx

	var startErr error

	for attempt := 1; attempt <= startRetryMax; attempt++ {
		if startErr = m.bridge.Start(ctx); startErr == nil {
			break
		}

		m.logger.Warn("gateway start failed",
			slog.Int("attempt", attempt),
			slog.String("error", startErr.Error()),
		)

		timer := time.NewTimer(startRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if startErr != nil {
		return fmt.Errorf("starting gateway bridge: %w", startErr)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.bridge.Listen(gctx)
	})

	g.Go(func() error {
		m.queue.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return m.runSession(gctx)
	})

	err := g.Wait()

	m.closeCache()

	return err
}

// Stop closes the bridge connection; Start returns shortly after.
func (m *Manager) Stop() {
	m.bridge.Stop()
}

// runSession performs the login flow once, guarding against a second
// flow racing it from a reset or reconnect callback.
func (m *Manager) runSession(ctx context.Context) error {
	m.sessionActiveMu.Lock()
	if m.sessionActive {
		m.sessionActiveMu.Unlock()
		return nil
	}

	m.sessionActive = true
	m.sessionActiveMu.Unlock()

	defer func() {
		m.sessionActiveMu.Lock()
		m.sessionActive = false
		m.sessionActiveMu.Unlock()
	}()

	return m.login(ctx)
}

// login walks the full path to an authenticated session: gateway
// instance setup, device fingerprint restore, auto-login, and the QR
// scan loop as the fallback.
func (m *Manager) login(ctx context.Context) error {
	if err := m.bridge.Init(ctx); err != nil {
		return fmt.Errorf("binding gateway token: %w", err)
	}

	if err := m.bridge.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing gateway instance: %w", err)
	}

	slot, err := m.slots.Load(ctx)
	if err != nil {
		return err
	}

	if cur, ok := slot.Current(); ok && cur.Data != "" {
		if err := m.bridge.LoadDeviceData(ctx, cur.Data); err != nil {
			m.logger.Warn("restoring device fingerprint failed", slog.String("error", err.Error()))
		}
	}

	ok, err := m.tryAutoLogin(ctx, slot)
	if err != nil {
		return err
	}

	if ok {
		return nil
	}

	return m.scanLoop(ctx)
}

// tryAutoLogin attempts to resume the previous session from the stored
// device identity. Returns true when the session is authenticated.
// Without a stored login token there is nothing to resume and the
// caller goes straight to the QR flow.
func (m *Manager) tryAutoLogin(ctx context.Context, slot memory.Slot) (bool, error) {
	cur, ok := slot.Current()
	if !ok || cur.Token == "" {
		m.logger.Debug("no stored login token, starting at QR")
		return false, nil
	}

	resp, err := m.bridge.AutoLogin(ctx, cur.Token)
	if err != nil {
		return false, fmt.Errorf("auto login: %w", err)
	}

	if resp == nil {
		// Nothing to resume. Void the stored token and fall back to QR.
		m.dropLoginToken(ctx, slot)
		return false, nil
	}

	switch resp.Status {
	case 0:
		return true, m.onLogin(ctx, resp.UserName)

	case wire.LoginStatusLoggedOut:
		// The account was logged out on another device. The token is
		// void and the session must not silently re-scan; surface a
		// reset and let the operator decide.
		m.logger.Warn("account was logged out elsewhere", slog.String("user", resp.UserName))
		m.dropLoginToken(ctx, slot)
		m.emitReset("logged out on another device")

		return false, nil

	default:
		return m.trySecondaryLogin(ctx, slot, resp.Status)
	}
}

// trySecondaryLogin asks the phone to confirm a token login after a
// refused auto-login, then polls for the confirmation.
func (m *Manager) trySecondaryLogin(ctx context.Context, slot memory.Slot, autoStatus int) (bool, error) {
	cur, ok := slot.Current()
	if !ok || cur.Token == "" {
		m.logger.Debug("no stored login token", slog.Int("auto_login_status", autoStatus))
		m.dropLoginToken(ctx, slot)

		return false, nil
	}

	resp, err := m.bridge.LoginRequest(ctx, cur.Token)
	if err != nil || resp.Status != 0 {
		if err != nil {
			m.logger.Warn("token login request failed", slog.String("error", err.Error()))
		}

		m.dropLoginToken(ctx, slot)

		return false, nil
	}

	// The phone shows a confirmation prompt. Poll auto-login until the
	// user taps it or the window closes.
	for i := 0; i < confirmPollMax; i++ {
		timer := time.NewTimer(confirmPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false, ctx.Err()
		case <-timer.C:
		}

		poll, err := m.bridge.AutoLogin(ctx, cur.Token)
		if err != nil || poll == nil {
			continue
		}

		if poll.Status == 0 {
			return true, m.onLogin(ctx, poll.UserName)
		}
	}

	m.logger.Info("token login was not confirmed, falling back to QR")
	m.dropLoginToken(ctx, slot)

	return false, nil
}

// dropLoginToken voids the current account's auto-login token while
// keeping its device fingerprint.
func (m *Manager) dropLoginToken(ctx context.Context, slot memory.Slot) {
	if slot.CurrentUserID == "" {
		return
	}

	slot.ClearToken(slot.CurrentUserID)

	if err := m.slots.Save(ctx, slot); err != nil {
		m.logger.Warn("saving memory slot failed", slog.String("error", err.Error()))
	}
}

// issueQRCode fetches a login QR code, re-initializing the gateway
// instance when it answers empty, a bounded number of times.
func (m *Manager) issueQRCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < qrIssueRetryMax; attempt++ {
		resp, err := m.bridge.GetQRCode(ctx)
		if err != nil {
			return "", fmt.Errorf("fetching QR code: %w", err)
		}

		if resp.QRCode != "" {
			return resp.QRCode, nil
		}

		m.logger.Debug("gateway instance not ready for QR, re-initializing")

		if err := m.bridge.Initialize(ctx); err != nil {
			return "", fmt.Errorf("re-initializing for QR code: %w", err)
		}
	}

	return "", fmt.Errorf("gateway never produced a QR code")
}

// scanLoop polls the QR scan state until a scan is confirmed and the
// login completes. Reissues the code when it expires or is cancelled.
func (m *Manager) scanLoop(ctx context.Context) error {
	qr, err := m.issueQRCode(ctx)
	if err != nil {
		return err
	}

	m.emitScan(qr, wire.QRStatusWaitScan)

	lastStatus := wire.QRStatusWaitScan
	ticker := time.NewTicker(scanInterval)

	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		resp, err := m.bridge.CheckQRCode(ctx)
		if err != nil {
			m.logger.Warn("QR status check failed", slog.String("error", err.Error()))
			continue
		}

		if resp.Status != lastStatus {
			lastStatus = resp.Status
			m.emitScan(qr, resp.Status)
		}

		// Expiry is checked before the scan state; a code can run out
		// while the confirmation tap is still pending.
		if resp.ExpiredTime > 0 && resp.ExpiredTime < qrReissueThreshold {
			if qr, err = m.reissue(ctx); err != nil {
				return err
			}

			lastStatus = wire.QRStatusWaitScan

			continue
		}

		switch resp.Status {
		case wire.QRStatusWaitScan, wire.QRStatusWaitConfirm:
			// Waiting on the phone.

		case wire.QRStatusConfirmed:
			login, err := m.bridge.QRCodeLogin(ctx, resp.UserName, resp.Password)
			if err != nil {
				m.logger.Warn("QR login failed, issuing a fresh code", slog.String("error", err.Error()))

				if qr, err = m.reissue(ctx); err != nil {
					return err
				}

				lastStatus = wire.QRStatusWaitScan

				continue
			}

			return m.onLogin(ctx, login.UserName)

		default:
			// Timeout, cancel, ignore, unknown: the code is dead either
			// way, discard it and issue a fresh one.
			if qr, err = m.reissue(ctx); err != nil {
				return err
			}

			lastStatus = wire.QRStatusWaitScan
		}
	}
}

func (m *Manager) reissue(ctx context.Context) (string, error) {
	qr, err := m.issueQRCode(ctx)
	if err != nil {
		return "", err
	}

	m.emitScan(qr, wire.QRStatusWaitScan)

	return qr, nil
}

// onLogin finalizes an authenticated session: refreshes the device
// identity, opens the entity cache, refetches the own profile, starts
// the contact sync, and announces the login. A second call while
// authenticated (the reconnect case) is a no-op.
func (m *Manager) onLogin(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("login completed without a user id: %w", perrors.ErrLoginFailed)
	}

	if m.LoggedIn() {
		m.logger.Debug("already logged in, skipping session setup", slog.String("user", userID))
		return nil
	}

	m.setUserID(userID)

	if err := m.refreshMemorySlot(ctx, userID); err != nil {
		m.logger.Warn("refreshing device identity failed", slog.String("error", err.Error()))
	}

	if err := m.openCache(userID); err != nil {
		return err
	}

	// The cached own profile may be from a previous login; refetch.
	if err := m.cacheStore().DeleteContact(userID); err != nil {
		m.logger.Warn("dropping stale own profile failed", slog.String("error", err.Error()))
	}

	if self, err := m.bridge.GetContact(ctx, userID); err != nil {
		m.logger.Warn("fetching own profile failed", slog.String("error", err.Error()))
	} else if self.UserName != "" {
		if err := m.cacheStore().SetContact(*self); err != nil {
			m.logger.Warn("caching own profile failed", slog.String("error", err.Error()))
		}
	}

	m.logger.Info("logged in", slog.String("user", userID))

	go m.syncContacts(ctx)

	if m.events.OnLogin != nil {
		m.events.OnLogin(userID)
	}

	return nil
}

// refreshMemorySlot updates the stored device identity after a login.
// The gateway requires a live session before fingerprint operations, so
// a heartbeat goes first. Four cases: first login ever, the same user
// again, a user seen before, and a switch to a brand new user.
func (m *Manager) refreshMemorySlot(ctx context.Context, userID string) error {
	if _, err := m.bridge.HeartBeat(ctx); err != nil {
		return fmt.Errorf("heartbeat before identity refresh: %w", err)
	}

	slot, err := m.slots.Load(ctx)
	if err != nil {
		return err
	}

	_, seenBefore := slot.Device(userID)

	switch {
	case len(slot.Devices) == 0:
		// First login through this client: mint everything.
		data, err := m.bridge.GenerateDeviceData(ctx)
		if err != nil {
			return fmt.Errorf("generating device data: %w", err)
		}

		token, err := m.bridge.GetLoginToken(ctx)
		if err != nil {
			return fmt.Errorf("fetching login token: %w", err)
		}

		slot.SetDevice(userID, memory.Device{Data: data, Token: token})

	case slot.CurrentUserID == userID, seenBefore:
		// Same user, or a user with a stored fingerprint: keep the
		// fingerprint, refresh only the token.
		token, err := m.bridge.GetLoginToken(ctx)
		if err != nil {
			return fmt.Errorf("refreshing login token: %w", err)
		}

		d, _ := slot.Device(userID)
		d.Token = token
		slot.SetDevice(userID, d)

	default:
		// Switch to a user this client has never seen: mint a fresh
		// identity so accounts never share a fingerprint.
		data, err := m.bridge.GenerateDeviceData(ctx)
		if err != nil {
			return fmt.Errorf("generating device data for new user: %w", err)
		}

		token, err := m.bridge.GetLoginToken(ctx)
		if err != nil {
			return fmt.Errorf("fetching login token for new user: %w", err)
		}

		slot.SetDevice(userID, memory.Device{Data: data, Token: token})
	}

	slot.CurrentUserID = userID

	return m.slots.Save(ctx, slot)
}

// openCache opens the entity cache for the logged-in account. Opening
// while a cache is already open is a lifecycle bug.
func (m *Manager) openCache(userID string) error {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if m.cache != nil {
		return perrors.ErrCacheExists
	}

	cache, err := store.Open(m.cacheRoot, m.gatewayToken, userID)
	if err != nil {
		return fmt.Errorf("opening entity cache: %w", err)
	}

	m.cache = cache

	return nil
}

func (m *Manager) cacheStore() *store.EntityStore {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	return m.cache
}

func (m *Manager) closeCache() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	if m.cache == nil {
		return
	}

	if err := m.cache.Close(); err != nil {
		m.logger.Warn("closing entity cache failed", slog.String("error", err.Error()))
	}

	m.cache = nil
}

// Logout ends the authenticated session. A logout without a session is
// a no-op. Unless the manager is shutting down, the login flow restarts
// so a fresh QR code is issued.
func (m *Manager) Logout(ctx context.Context) error {
	userID := m.UserID()
	if userID == "" {
		m.logger.Debug("logout without a session, ignoring")
		return nil
	}

	if err := m.bridge.Logout(ctx); err != nil {
		m.logger.Warn("gateway logout failed", slog.String("error", err.Error()))
	}

	m.teardownSession()

	if m.events.OnLogout != nil {
		m.events.OnLogout(userID)
	}

	if m.runCtx != nil && m.runCtx.Err() == nil {
		go func() {
			if err := m.runSession(m.runCtx); err != nil && m.runCtx.Err() == nil {
				m.emitError(fmt.Errorf("re-login after logout: %w", err))
			}
		}()
	}

	return nil
}

// teardownSession clears the authenticated state shared by logout and
// reset handling.
func (m *Manager) teardownSession() {
	m.setUserID("")
	m.closeCache()
	m.progress.reset()
}

// HandleMessage is wired to the bridge's push callback.
func (m *Manager) HandleMessage(msg wire.MessagePayload) {
	if m.events.OnMessage != nil {
		m.events.OnMessage(msg)
	}
}

// HandleHeartbeat is wired to the bridge's observational heartbeat
// callback. Each heartbeat also drains messages queued at the gateway;
// the push stream occasionally skips messages the sync endpoint still
// holds, and the bridge's dedup drops anything seen on both paths.
func (m *Manager) HandleHeartbeat(kind string) {
	if m.events.OnDong != nil {
		m.events.OnDong(kind)
	}

	if !m.LoggedIn() || m.runCtx == nil || m.runCtx.Err() != nil {
		return
	}

	go func() {
		msgs, err := m.bridge.SyncMessage(m.runCtx)
		if err != nil {
			m.logger.Debug("draining queued messages failed", slog.String("error", err.Error()))
			return
		}

		m.bridge.DeliverMessages(msgs)
	}()
}

// HandleReset is wired to the bridge's forced-logout callback. The
// session is torn down and the login flow restarts from scratch.
func (m *Manager) HandleReset() {
	userID := m.UserID()

	m.logger.Warn("session reset", slog.String("user", userID))
	m.teardownSession()
	m.emitReset("gateway forced a logout")

	if m.runCtx == nil || m.runCtx.Err() != nil {
		return
	}

	go func() {
		if err := m.runSession(m.runCtx); err != nil && m.runCtx.Err() == nil {
			m.emitError(fmt.Errorf("re-login after reset: %w", err))
		}
	}()
}

// HandleReconnected is wired to the bridge's reconnect callback. An
// authenticated session is resumed in place; an unauthenticated one is
// left to the login flow already running.
func (m *Manager) HandleReconnected() {
	if m.runCtx == nil || m.runCtx.Err() != nil {
		return
	}

	if !m.LoggedIn() {
		return
	}

	go func() {
		if err := m.resumeSession(m.runCtx); err != nil && m.runCtx.Err() == nil {
			m.emitError(fmt.Errorf("resuming session after reconnect: %w", err))
		}
	}()
}

// resumeSession re-establishes the gateway-side session state after a
// reconnect: rebind the token, reload the fingerprint, auto-login, and
// refresh the stored identity. The entity cache stays open throughout.
func (m *Manager) resumeSession(ctx context.Context) error {
	if err := m.bridge.Init(ctx); err != nil {
		return fmt.Errorf("rebinding gateway token: %w", err)
	}

	if err := m.bridge.Initialize(ctx); err != nil {
		return fmt.Errorf("re-initializing gateway instance: %w", err)
	}

	slot, err := m.slots.Load(ctx)
	if err != nil {
		return err
	}

	cur, ok := slot.Current()
	if ok && cur.Data != "" {
		if err := m.bridge.LoadDeviceData(ctx, cur.Data); err != nil {
			m.logger.Warn("restoring device fingerprint failed", slog.String("error", err.Error()))
		}
	}

	var resp *wire.LoginResponse

	if ok && cur.Token != "" {
		resp, err = m.bridge.AutoLogin(ctx, cur.Token)
		if err != nil {
			return fmt.Errorf("auto login after reconnect: %w", err)
		}
	}

	if resp == nil || resp.Status != 0 {
		// The session did not survive the outage. Tear down and run
		// the full login flow again.
		m.logger.Warn("session not resumable after reconnect")
		m.teardownSession()

		go func() {
			if err := m.runSession(m.runCtx); err != nil && m.runCtx.Err() == nil {
				m.emitError(fmt.Errorf("re-login after reconnect: %w", err))
			}
		}()

		return nil
	}

	if err := m.refreshMemorySlot(ctx, resp.UserName); err != nil {
		m.logger.Warn("refreshing device identity failed", slog.String("error", err.Error()))
	}

	m.logger.Info("session resumed after reconnect", slog.String("user", resp.UserName))

	if m.events.OnReconnect != nil {
		m.events.OnReconnect()
	}

	return nil
}

// Ding asks the gateway for a liveness answer and emits it as a dong
// event. Usable with or without a login.
func (m *Manager) Ding(ctx context.Context) error {
	resp, err := m.bridge.HeartBeat(ctx)
	if err != nil {
		return fmt.Errorf("ding: %w", err)
	}

	if m.events.OnDong != nil {
		m.events.OnDong(fmt.Sprintf("status=%d", resp.Status))
	}

	return nil
}

func (m *Manager) emitScan(qr string, status int) {
	if m.events.OnScan != nil {
		m.events.OnScan(qr, status)
	}
}

func (m *Manager) emitReset(reason string) {
	if m.events.OnReset != nil {
		m.events.OnReset(reason)
	}
}

func (m *Manager) emitError(err error) {
	m.logger.Error("session error", slog.String("error", err.Error()))

	if m.events.OnError != nil {
		m.events.OnError(err)
	}
}
