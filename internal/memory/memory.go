// Package memory persists the device identity slot: the 62-data device
// fingerprint and auto-login token for every account that has ever
// logged in through this client, plus which account was active last.
// Keeping fingerprints per account lets a user switch accounts without
// triggering WeChat's new-device verification each time.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Device is one account's device identity at the gateway.
type Device struct {
	// Data is the opaque 62-data device fingerprint.
	Data string `json:"data"`

	// Token is the auto-login token bound to the fingerprint.
	Token string `json:"token"`
}

// Slot is the full persisted state. The zero value is a valid empty slot.
type Slot struct {
	CurrentUserID string            `json:"current_user_id"`
	Devices       map[string]Device `json:"devices"`
}

// Device returns the stored device identity for a user id.
func (s Slot) Device(userID string) (Device, bool) {
	d, ok := s.Devices[userID]

	return d, ok
}

// SetDevice stores a device identity for a user id, allocating the map
// on first use so the zero Slot works.
func (s *Slot) SetDevice(userID string, d Device) {
	if s.Devices == nil {
		s.Devices = make(map[string]Device)
	}

	s.Devices[userID] = d
}

// Current returns the active account's device identity.
func (s Slot) Current() (Device, bool) {
	if s.CurrentUserID == "" {
		return Device{}, false
	}

	return s.Device(s.CurrentUserID)
}

// ClearToken drops the auto-login token for a user while keeping the
// device fingerprint. Used when the gateway reports the token void.
func (s *Slot) ClearToken(userID string) {
	d, ok := s.Devices[userID]
	if !ok {
		return
	}

	d.Token = ""
	s.Devices[userID] = d
}

// Store persists slots. Implementations must return a zero Slot (not an
// error) when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (Slot, error)
	Save(ctx context.Context, slot Slot) error
}

const (
	slotDirPerm     = fs.FileMode(0o700)
	slotFilePerm    = fs.FileMode(0o600)
	slotOpenTimeout = 5 * time.Second
)

var (
	slotBucket = []byte("memory-slot")
	slotKey    = []byte("slot")
)

// BoltStore is the default Store, a single-key bbolt database scoped to
// one gateway token.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the slot database for a gateway
// token under root.
func OpenBolt(root, gatewayToken string) (*BoltStore, error) {
	if gatewayToken == "" {
		return nil, fmt.Errorf("gateway token is required to scope the memory slot")
	}

	dir := filepath.Join(root, gatewayToken)
	if err := os.MkdirAll(dir, slotDirPerm); err != nil {
		return nil, fmt.Errorf("creating memory slot directory: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, "memory-slot.db"), slotFilePerm, &bolt.Options{Timeout: slotOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening memory slot db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(slotBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing memory slot db: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// Load returns the persisted slot, or a zero slot when none exists.
func (b *BoltStore) Load(_ context.Context) (Slot, error) {
	var slot Slot

	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(slotBucket).Get(slotKey)
		if raw == nil {
			return nil
		}

		return json.Unmarshal(raw, &slot)
	})
	if err != nil {
		return Slot{}, fmt.Errorf("loading memory slot: %w", err)
	}

	return slot, nil
}

// Save persists the slot.
func (b *BoltStore) Save(_ context.Context, slot Slot) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(slot)
		if err != nil {
			return err
		}

		return tx.Bucket(slotBucket).Put(slotKey, data)
	})
	if err != nil {
		return fmt.Errorf("saving memory slot: %w", err)
	}

	return nil
}
