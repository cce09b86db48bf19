package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func testStore(t *testing.T) *BoltStore {
	t.Helper()

	s, err := OpenBolt(t.TempDir(), "token-a")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

// --- slot model ---

func TestZeroSlotIsUsable(t *testing.T) {
	var slot Slot

	_, ok := slot.Current()
	assert.False(t, ok)

	slot.SetDevice("wxid_a", Device{Data: "62data", Token: "tok"})
	slot.CurrentUserID = "wxid_a"

	d, ok := slot.Current()
	require.True(t, ok)
	assert.Equal(t, "62data", d.Data)
	assert.Equal(t, "tok", d.Token)
}

func TestClearTokenKeepsFingerprint(t *testing.T) {
	var slot Slot

	slot.SetDevice("wxid_a", Device{Data: "62data", Token: "tok"})
	slot.ClearToken("wxid_a")

	d, ok := slot.Device("wxid_a")
	require.True(t, ok)
	assert.Equal(t, "62data", d.Data)
	assert.Empty(t, d.Token)

	// Clearing an unknown user is a no-op.
	slot.ClearToken("wxid_unknown")
}

func TestSlotKeepsDevicePerUser(t *testing.T) {
	var slot Slot

	slot.SetDevice("wxid_a", Device{Data: "data-a", Token: "tok-a"})
	slot.SetDevice("wxid_b", Device{Data: "data-b", Token: "tok-b"})
	slot.CurrentUserID = "wxid_b"

	a, ok := slot.Device("wxid_a")
	require.True(t, ok)
	assert.Equal(t, "data-a", a.Data)

	cur, ok := slot.Current()
	require.True(t, ok)
	assert.Equal(t, "data-b", cur.Data)
}

// --- persistence ---

func TestLoadReturnsZeroSlotWhenEmpty(t *testing.T) {
	s := testStore(t)

	slot, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, slot.CurrentUserID)
	assert.Empty(t, slot.Devices)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := testStore(t)

	var slot Slot
	slot.SetDevice("wxid_a", Device{Data: "62data", Token: "tok"})
	slot.CurrentUserID = "wxid_a"

	require.NoError(t, s.Save(context.Background(), slot))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, slot, got)
}

func TestSlotSurvivesReopen(t *testing.T) {
	root := t.TempDir()

	s, err := OpenBolt(root, "token-a")
	require.NoError(t, err)

	var slot Slot
	slot.SetDevice("wxid_a", Device{Data: "62data", Token: "tok"})
	slot.CurrentUserID = "wxid_a"
	require.NoError(t, s.Save(context.Background(), slot))
	require.NoError(t, s.Close())

	s, err = OpenBolt(root, "token-a")
	require.NoError(t, err)

	defer s.Close()

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wxid_a", got.CurrentUserID)
}

func TestSlotsAreScopedByToken(t *testing.T) {
	root := t.TempDir()

	a, err := OpenBolt(root, "token-a")
	require.NoError(t, err)

	defer a.Close()

	b, err := OpenBolt(root, "token-b")
	require.NoError(t, err)

	defer b.Close()

	var slot Slot
	slot.CurrentUserID = "wxid_a"
	require.NoError(t, a.Save(context.Background(), slot))

	got, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got.CurrentUserID)
}
