package memory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T, numSlots, frameSize int) (*PhysicalMemory, *BackingStore) {
	t.Helper()
	store, err := NewBackingStore(filepath.Join(t.TempDir(), "backing-store.txt"), frameSize)
	require.NoError(t, err)
	return NewPhysicalMemory(numSlots, frameSize, store), store
}

func TestInstallPromotesToMRU(t *testing.T) {
	pm, store := newTestMemory(t, 2, 4)
	require.NoError(t, store.CreateZero(1))
	require.NoError(t, store.CreateZero(2))

	require.NoError(t, pm.Install(1, 0))
	require.NoError(t, pm.Install(2, 1))

	// 2 was installed last, so it's MRU; victim should be slot 0 (frame 1).
	victim := pm.TakeVictim()
	id, ok := pm.FrameIDAt(victim)
	require.True(t, ok)
	require.Equal(t, uint64(1), id)
}

func TestReadByteFreshFrameIsZero(t *testing.T) {
	pm, store := newTestMemory(t, 1, 16)
	require.NoError(t, store.CreateZero(7))
	require.NoError(t, pm.Install(7, 0))

	b, ok := pm.ReadByte("0000")
	require.True(t, ok)
	require.Equal(t, byte(0), b)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	pm, store := newTestMemory(t, 1, 16)
	require.NoError(t, store.CreateZero(3))
	require.NoError(t, pm.Install(3, 0))

	require.True(t, pm.WriteByte("0000", 0x45))
	b, ok := pm.ReadByte("0000")
	require.True(t, ok)
	require.Equal(t, byte(0x45), b)
}

func TestPurgeWritesBackDirtyFrames(t *testing.T) {
	pm, store := newTestMemory(t, 1, 4)
	require.NoError(t, store.CreateZero(9))
	require.NoError(t, pm.Install(9, 0))
	pm.WriteByte("0000", 0xAB)

	evicted, err := pm.Purge([]uint64{9}, map[uint64]bool{9: true})
	require.NoError(t, err)
	require.Equal(t, 1, evicted)

	rec, err := store.Load(9)
	require.NoError(t, err)
	require.Equal(t, "AB000000", rec)

	_, found := pm.FindSlotOf(9)
	require.False(t, found)
}

func TestLRUEvictionScenario(t *testing.T) {
	// Scenario C: 3 slots, 4 single-page processes. Admit frames 1,2,3,
	// touch 1 (MRU), then install 4th -- frame 2 (LRU) must be the victim.
	pm, store := newTestMemory(t, 3, 4)
	for _, id := range []uint64{1, 2, 3} {
		require.NoError(t, store.CreateZero(id))
	}
	require.NoError(t, pm.Install(1, 0))
	require.NoError(t, pm.Install(2, 1))
	require.NoError(t, pm.Install(3, 2))

	pm.ReadByte("0000") // touch frame 1's slot (0) -> MRU

	victim := pm.TakeVictim()
	id, ok := pm.FrameIDAt(victim)
	require.True(t, ok)
	require.Equal(t, uint64(2), id)
}
