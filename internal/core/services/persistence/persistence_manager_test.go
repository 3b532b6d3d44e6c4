package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// MockArchive implements ports.ObservationArchive for testing
type MockArchive struct {
	Saved   []domain.Observation
	Flushes int
	mu      sync.Mutex
}

func (m *MockArchive) ArchiveObservations(_ context.Context, obs []domain.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, obs...)
	m.Flushes++
	return nil
}

func (m *MockArchive) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Saved)
}

func batch(n int) []domain.Observation {
	out := make([]domain.Observation, n)
	for i := range out {
		out[i] = domain.Observation{Kind: domain.KindRTP, SrcAddr: "10.0.0.1", DstAddr: "10.0.0.2"}
	}
	return out
}

func TestPersistenceManager_Batching(t *testing.T) {
	store := &MockArchive{}
	pm := NewPersistenceManager(store, 10)
	pm.batchSize = 5
	pm.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pm.Start(ctx)

	require.NoError(t, pm.ArchiveObservations(ctx, batch(4)))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.count(), "below batch size nothing is written")

	require.NoError(t, pm.ArchiveObservations(ctx, batch(1)))
	assert.Eventually(t, func() bool { return store.count() == 5 }, time.Second, 10*time.Millisecond)
}

func TestPersistenceManager_FlushOnShutdown(t *testing.T) {
	store := &MockArchive{}
	pm := NewPersistenceManager(store, 10)
	pm.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	pm.Start(ctx)
	require.NoError(t, pm.ArchiveObservations(ctx, batch(3)))
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case <-pm.Done():
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}
	assert.Equal(t, 3, store.count())
}

func TestPersistenceManager_Ticker(t *testing.T) {
	store := &MockArchive{}
	pm := NewPersistenceManager(store, 10)
	pm.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pm.Start(ctx)
	require.NoError(t, pm.ArchiveObservations(ctx, batch(2)))

	assert.Eventually(t, func() bool { return store.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestPersistenceManager_Disabled(t *testing.T) {
	store := &MockArchive{}
	pm := NewPersistenceManager(store, 1)
	pm.SetEnabled(false)
	assert.False(t, pm.IsEnabled())

	require.NoError(t, pm.ArchiveObservations(context.Background(), batch(2)))
	assert.Len(t, pm.persistChan, 0)
}

func TestPersistenceManager_DropsWhenFull(t *testing.T) {
	pm := NewPersistenceManager(&MockArchive{}, 1)
	require.NoError(t, pm.ArchiveObservations(context.Background(), batch(1)))
	require.NoError(t, pm.ArchiveObservations(context.Background(), batch(1)))
	assert.Len(t, pm.persistChan, 1)
}
