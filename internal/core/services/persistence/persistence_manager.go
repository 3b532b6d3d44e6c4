package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/ports"
	"github.com/lcalzada-xor/voipmon/internal/telemetry"
)

// PersistenceManager batches observations evicted from memory and writes
// them to the archive in the background. It implements
// ports.ObservationArchive so the tracker never waits on disk.
type PersistenceManager struct {
	storage     ports.ObservationArchive
	persistChan chan []domain.Observation
	batchSize   int
	interval    time.Duration
	enabled     bool
	mu          sync.RWMutex
	done        chan struct{}
}

// NewPersistenceManager creates a new manager.
func NewPersistenceManager(storage ports.ObservationArchive, bufferSize int) *PersistenceManager {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &PersistenceManager{
		storage:     storage,
		persistChan: make(chan []domain.Observation, bufferSize),
		batchSize:   500,
		interval:    5 * time.Second,
		enabled:     true,
		done:        make(chan struct{}),
	}
}

// ArchiveObservations queues obs for the next flush. When the queue is full
// the batch is dropped and counted.
func (p *PersistenceManager) ArchiveObservations(_ context.Context, obs []domain.Observation) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.enabled || len(obs) == 0 {
		return nil
	}
	select {
	case p.persistChan <- obs:
	default:
		telemetry.FramesDropped.WithLabelValues("archive_full").Add(float64(len(obs)))
	}
	return nil
}

// IsEnabled returns the current persistence status.
func (p *PersistenceManager) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// SetEnabled toggles archiving.
func (p *PersistenceManager) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

// Start begins the flush loop. Pending observations are written once more
// when ctx is cancelled; Done is closed afterwards.
func (p *PersistenceManager) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	var buffer []domain.Observation

	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case batch := <-p.persistChan:
						buffer = append(buffer, batch...)
					default:
						p.flushBuffer(buffer)
						return
					}
				}
			case batch := <-p.persistChan:
				buffer = append(buffer, batch...)
				if len(buffer) >= p.batchSize {
					p.flushBuffer(buffer)
					buffer = nil
				}
			case <-ticker.C:
				if len(buffer) > 0 {
					p.flushBuffer(buffer)
					buffer = nil
				}
			}
		}
	}()
}

// Done is closed once the loop has stopped and flushed.
func (p *PersistenceManager) Done() <-chan struct{} {
	return p.done
}

func (p *PersistenceManager) flushBuffer(buffer []domain.Observation) {
	if len(buffer) == 0 || p.storage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.storage.ArchiveObservations(ctx, buffer); err != nil {
		slog.Error("failed to archive observations", "count", len(buffer), "error", err)
	}
}
