// Package tracker owns the observation log, the ingestion counters, and the
// SIP session and RTP stream tables.
package tracker

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
	"github.com/lcalzada-xor/voipmon/internal/core/ports"
	"github.com/lcalzada-xor/voipmon/internal/core/services/rules"
	"github.com/lcalzada-xor/voipmon/internal/telemetry"
)

// MinRetainedObservations is the smallest non-zero log cap accepted. The rule
// engine needs at least its window of history.
const MinRetainedObservations = rules.DefaultFloodWindow

// Options bound the tracker's memory. Zero values mean unbounded.
type Options struct {
	MaxObservations int
	SessionTTL      time.Duration
	StreamTTL       time.Duration
}

// Tracker is the single-writer state holder fed by the ingestion pipeline.
// Readers always receive copies.
type Tracker struct {
	mu sync.RWMutex

	log      []domain.Observation
	stats    domain.Statistics
	sessions map[string]domain.SipSession
	streams  map[string]domain.RtpStream
	alerts   []domain.SuspiciousEvent

	rules   *rules.Engine
	archive ports.ObservationArchive
	opts    Options
	now     func() time.Time
}

// New creates a tracker. A nil engine disables inline rules; a nil archive
// discards evicted observations.
func New(engine *rules.Engine, archive ports.ObservationArchive, opts Options) *Tracker {
	if opts.MaxObservations > 0 && opts.MaxObservations < MinRetainedObservations {
		opts.MaxObservations = MinRetainedObservations
	}
	return &Tracker{
		stats:    make(domain.Statistics),
		sessions: make(map[string]domain.SipSession),
		streams:  make(map[string]domain.RtpStream),
		rules:    engine,
		archive:  archive,
		opts:     opts,
		now:      time.Now,
	}
}

// SetClock overrides the clock used by TTL cleanup.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Record runs the rule engine on obs, appends it to the log and updates the
// counters and tables. It returns the alert raised for obs, if any.
func (t *Tracker) Record(obs domain.Observation) *domain.SuspiciousEvent {
	t.mu.Lock()

	var event *domain.SuspiciousEvent
	if t.rules != nil {
		event = t.rules.Evaluate(obs, t.tailLocked(t.rules.Window()))
		if event != nil {
			obs.Suspicious = true
			t.alerts = append(t.alerts, *event)
		}
	}

	t.log = append(t.log, obs)

	switch obs.Kind {
	case domain.KindSIP:
		t.recordSIPLocked(obs)
	case domain.KindRTP:
		t.recordRTPLocked(obs)
	}

	evicted := t.evictLocked()
	size := len(t.log)
	t.mu.Unlock()

	telemetry.Observations.WithLabelValues(string(obs.Kind)).Inc()
	telemetry.ObservationLogSize.Set(float64(size))
	if event != nil {
		telemetry.SuspiciousEvents.WithLabelValues(string(event.Category)).Inc()
	}
	if len(evicted) > 0 {
		t.archiveEvicted(evicted)
	}
	return event
}

func (t *Tracker) recordSIPLocked(obs domain.Observation) {
	t.stats[domain.SIPCounterKey(obs.Method())]++
	if obs.IsInvite() && obs.SIP.CallID != "" {
		t.sessions[obs.SIP.CallID] = domain.SipSession{
			CallID:    obs.SIP.CallID,
			StartTime: obs.Timestamp,
			SrcAddr:   obs.SrcAddr,
			DstAddr:   obs.DstAddr,
			UserAgent: obs.SIP.UserAgent,
		}
	}
}

func (t *Tracker) recordRTPLocked(obs domain.Observation) {
	t.stats[domain.StatRTPPackets]++
	if obs.RTP == nil {
		return
	}
	key := obs.RTP.StreamKey
	if key == "" {
		key = domain.StreamKey(obs.SrcAddr, obs.RTP.SrcPort, obs.DstAddr, obs.RTP.DstPort)
	}
	stream, ok := t.streams[key]
	if !ok {
		stream = domain.RtpStream{
			StreamKey: key,
			StartTime: obs.Timestamp,
			SrcAddr:   obs.SrcAddr,
			SrcPort:   obs.RTP.SrcPort,
			DstAddr:   obs.DstAddr,
			DstPort:   obs.RTP.DstPort,
		}
	}
	stream.PacketCount++
	stream.LastSeen = obs.Timestamp
	t.streams[key] = stream
}

func (t *Tracker) tailLocked(n int) []domain.Observation {
	if n <= 0 || len(t.log) <= n {
		return t.log
	}
	return t.log[len(t.log)-n:]
}

func (t *Tracker) evictLocked() []domain.Observation {
	limit := t.opts.MaxObservations
	if limit <= 0 || len(t.log) <= limit {
		return nil
	}
	cut := len(t.log) - limit
	evicted := slices.Clone(t.log[:cut])
	t.log = slices.Clone(t.log[cut:])
	return evicted
}

func (t *Tracker) archiveEvicted(evicted []domain.Observation) {
	telemetry.ObservationsArchived.Add(float64(len(evicted)))
	if t.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.archive.ArchiveObservations(ctx, evicted); err != nil {
		slog.Error("failed to archive evicted observations", "count", len(evicted), "error", err)
	}
}

// Cleanup drops sessions and streams idle for longer than their TTL and
// returns how many entries were removed.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	if ttl := t.opts.SessionTTL; ttl > 0 {
		for id, s := range t.sessions {
			if now.Sub(s.StartTime) > ttl {
				delete(t.sessions, id)
				removed++
			}
		}
	}
	if ttl := t.opts.StreamTTL; ttl > 0 {
		for key, s := range t.streams {
			if now.Sub(s.LastSeen) > ttl {
				delete(t.streams, key)
				removed++
			}
		}
	}
	return removed
}

// StartCleanupLoop runs Cleanup every interval until ctx is cancelled. It is a
// no-op when no TTL is configured.
func (t *Tracker) StartCleanupLoop(ctx context.Context, interval time.Duration) {
	if t.opts.SessionTTL <= 0 && t.opts.StreamTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := t.Cleanup(); n > 0 {
					slog.Debug("evicted idle sessions and streams", "count", n)
				}
			}
		}
	}()
}

// Observations returns a copy of the log in arrival order.
func (t *Tracker) Observations() []domain.Observation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.log)
}

// Len returns the number of observations held in memory.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.log)
}

// Statistics returns a copy of the counters.
func (t *Tracker) Statistics() domain.Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.stats)
}

// Sessions returns a copy of the session table.
func (t *Tracker) Sessions() map[string]domain.SipSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.sessions)
}

// Streams returns a copy of the stream table.
func (t *Tracker) Streams() map[string]domain.RtpStream {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.streams)
}

// Alerts returns a copy of the alert log.
func (t *Tracker) Alerts() []domain.SuspiciousEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.alerts)
}

// Snapshot returns a consistent copy of the whole tracker state.
func (t *Tracker) Snapshot() domain.DataExport {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return domain.DataExport{
		Observations: slices.Clone(t.log),
		Sessions:     maps.Clone(t.sessions),
		Streams:      maps.Clone(t.streams),
		Alerts:       slices.Clone(t.alerts),
		Statistics:   maps.Clone(t.stats),
	}
}

// Restore replaces the tracker state with the content of an export.
// Rules are not re-evaluated.
func (t *Tracker) Restore(data domain.DataExport) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.log = slices.Clone(data.Observations)
	t.alerts = slices.Clone(data.Alerts)
	t.stats = maps.Clone(data.Statistics)
	if t.stats == nil {
		t.stats = make(domain.Statistics)
	}
	t.sessions = maps.Clone(data.Sessions)
	if t.sessions == nil {
		t.sessions = make(map[string]domain.SipSession)
	}
	t.streams = maps.Clone(data.Streams)
	if t.streams == nil {
		t.streams = make(map[string]domain.RtpStream)
	}
	telemetry.ObservationLogSize.Set(float64(len(t.log)))
}
