// Package store is the persistent entity cache: raw gateway payloads
// for contacts, rooms, room member maps and room invitations, mirrored
// locally so a restarted client does not have to replay the full
// contact sync. Each (gateway token, account) pair gets its own
// directory so independent sessions never share state.
package store

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/padsync/padchat/internal/wire"
)

const (
	// cacheDirPerm is the permission mode for cache directories.
	cacheDirPerm = fs.FileMode(0o700)

	// cacheFilePerm is the permission mode for cache database files.
	cacheFilePerm = fs.FileMode(0o600)

	// cacheOpenTimeout is the maximum time to wait for a bolt database lock.
	cacheOpenTimeout = 5 * time.Second
)

// Database file names, one bbolt database per entity kind.
const (
	contactDBName    = "contact-raw-payload"
	roomDBName       = "room-raw-payload"
	roomMemberDBName = "room-member-raw-payload"
	invitationDBName = "room-invitation-raw-payload"
)

// payloadBucket is the single bucket inside each entity database.
var payloadBucket = []byte("payload")

// EntityStore holds the four entity caches for one account.
type EntityStore struct {
	dir string

	contacts    *bolt.DB
	rooms       *bolt.DB
	roomMembers *bolt.DB
	invitations *bolt.DB
}

// Open opens the entity caches for the given gateway token and account
// under root. All four databases open together; on any failure the
// already-opened ones are closed and the error is returned.
func Open(root, gatewayToken, accountID string) (*EntityStore, error) {
	if gatewayToken == "" {
		return nil, fmt.Errorf("gateway token is required to scope the cache")
	}

	if accountID == "" {
		return nil, fmt.Errorf("account id is required to scope the cache")
	}

	dir := filepath.Join(root, gatewayToken, accountID)
	if err := os.MkdirAll(dir, cacheDirPerm); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	s := &EntityStore{dir: dir}

	for _, db := range []struct {
		name string
		dst  **bolt.DB
	}{
		{contactDBName, &s.contacts},
		{roomDBName, &s.rooms},
		{roomMemberDBName, &s.roomMembers},
		{invitationDBName, &s.invitations},
	} {
		opened, err := openEntityDB(filepath.Join(dir, db.name+".db"))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("opening %s cache: %w", db.name, err)
		}

		*db.dst = opened
	}

	return s, nil
}

func openEntityDB(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, cacheFilePerm, &bolt.Options{Timeout: cacheOpenTimeout})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(payloadBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Dir returns the directory the caches live in.
func (s *EntityStore) Dir() string {
	return s.dir
}

// Close closes all four databases. Safe to call on a partially-opened
// store; the first error is returned after all close attempts.
func (s *EntityStore) Close() error {
	var firstErr error

	for _, db := range []*bolt.DB{s.contacts, s.rooms, s.roomMembers, s.invitations} {
		if db == nil {
			continue
		}

		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.contacts, s.rooms, s.roomMembers, s.invitations = nil, nil, nil, nil

	return firstErr
}

// --- contacts ---

// GetContact returns the cached contact payload, or nil if not cached.
func (s *EntityStore) GetContact(id string) (*wire.ContactPayload, error) {
	var p *wire.ContactPayload

	err := get(s.contacts, id, &p)

	return p, err
}

// SetContact caches a contact payload keyed by its user name.
func (s *EntityStore) SetContact(p wire.ContactPayload) error {
	return put(s.contacts, p.UserName, p)
}

// DeleteContact removes a contact from the cache.
func (s *EntityStore) DeleteContact(id string) error {
	return del(s.contacts, id)
}

// ContactIDs returns the ids of all cached contacts.
func (s *EntityStore) ContactIDs() ([]string, error) {
	return keys(s.contacts)
}

// --- rooms ---

// GetRoom returns the cached room payload, or nil if not cached.
func (s *EntityStore) GetRoom(id string) (*wire.RoomPayload, error) {
	var p *wire.RoomPayload

	err := get(s.rooms, id, &p)

	return p, err
}

// SetRoom caches a room payload keyed by its room id.
func (s *EntityStore) SetRoom(p wire.RoomPayload) error {
	return put(s.rooms, p.UserName, p)
}

// DeleteRoom removes a room from the cache.
func (s *EntityStore) DeleteRoom(id string) error {
	return del(s.rooms, id)
}

// RoomIDs returns the ids of all cached rooms.
func (s *EntityStore) RoomIDs() ([]string, error) {
	return keys(s.rooms)
}

// --- room members ---

// GetRoomMembers returns the cached member map for a room, keyed by
// member id, or nil if not cached.
func (s *EntityStore) GetRoomMembers(roomID string) (map[string]wire.RoomMemberPayload, error) {
	var m map[string]wire.RoomMemberPayload

	err := get(s.roomMembers, roomID, &m)

	return m, err
}

// SetRoomMembers caches the member map for a room.
func (s *EntityStore) SetRoomMembers(roomID string, members map[string]wire.RoomMemberPayload) error {
	return put(s.roomMembers, roomID, members)
}

// DeleteRoomMembers removes a room's member map from the cache.
func (s *EntityStore) DeleteRoomMembers(roomID string) error {
	return del(s.roomMembers, roomID)
}

// --- room invitations ---

// GetInvitation returns a cached room invitation, or nil if not cached.
func (s *EntityStore) GetInvitation(id string) (*wire.InvitationPayload, error) {
	var p *wire.InvitationPayload

	err := get(s.invitations, id, &p)

	return p, err
}

// SetInvitation caches a room invitation keyed by its id.
func (s *EntityStore) SetInvitation(p wire.InvitationPayload) error {
	return put(s.invitations, p.ID, p)
}

// DeleteInvitation removes a room invitation from the cache.
func (s *EntityStore) DeleteInvitation(id string) error {
	return del(s.invitations, id)
}

// --- generic bbolt helpers ---

// get unmarshals the value at key into v, which must be a pointer to a
// pointer or map so a missing key leaves it nil.
func get(db *bolt.DB, key string, v any) error {
	if db == nil {
		return fmt.Errorf("cache is closed")
	}

	return db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(payloadBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}

		return json.Unmarshal(raw, v)
	})
}

func put(db *bolt.DB, key string, v any) error {
	if db == nil {
		return fmt.Errorf("cache is closed")
	}

	if key == "" {
		return fmt.Errorf("payload key is empty")
	}

	return db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}

		return tx.Bucket(payloadBucket).Put([]byte(key), data)
	})
}

func del(db *bolt.DB, key string) error {
	if db == nil {
		return fmt.Errorf("cache is closed")
	}

	return db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(payloadBucket).Delete([]byte(key))
	})
}

func keys(db *bolt.DB) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("cache is closed")
	}

	var out []string

	err := db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(payloadBucket).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))

			return nil
		})
	})

	return out, err
}
