// Package reputation keeps a per-source trust score that only ever goes down.
package reputation

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// penalties by severity. Unknown severities cost DefaultPenalty.
var penalties = map[domain.Severity]int{
	domain.SeverityLow:    5,
	domain.SeverityMedium: 15,
	domain.SeverityHigh:   30,
}

// DefaultPenalty applies to severities without a listed penalty.
const DefaultPenalty = 10

// PenaltyFor returns the score deduction for a severity.
func PenaltyFor(s domain.Severity) int {
	if p, ok := penalties[s]; ok {
		return p
	}
	return DefaultPenalty
}

// Ledger is the reputation store. All mutation goes through ApplyPenalty.
type Ledger struct {
	mu      sync.Mutex
	records map[string]*domain.ReputationRecord
	now     func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		records: make(map[string]*domain.ReputationRecord),
		now:     time.Now,
	}
}

// SetClock overrides the clock stamping incidents.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// ApplyPenalty records an incident against addr, creating the record at the
// maximum score on first contact, and returns the updated record.
func (l *Ledger) ApplyPenalty(addr string, kind domain.PatternKind, severity domain.Severity) domain.ReputationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().Round(0)
	rec, ok := l.records[addr]
	if !ok {
		rec = &domain.ReputationRecord{
			SrcAddr:   addr,
			Score:     domain.MaxReputation,
			FirstSeen: now,
		}
		l.records[addr] = rec
	}

	rec.Score = max(domain.MinReputation, min(domain.MaxReputation, rec.Score-PenaltyFor(severity)))
	rec.Incidents = append(rec.Incidents, domain.Incident{
		PatternKind: kind,
		Severity:    severity,
		Timestamp:   now,
	})
	rec.LastActivity = now
	return rec.Clone()
}

// RiskTier assesses addr. Untracked addresses are UNKNOWN.
func (l *Ledger) RiskTier(addr string) domain.RiskAssessment {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[addr]
	if !ok {
		return domain.UnknownAssessment(addr)
	}
	return domain.AssessRecord(*rec)
}

// Record returns a copy of the record for addr.
func (l *Ledger) Record(addr string) (domain.ReputationRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[addr]
	if !ok {
		return domain.ReputationRecord{}, false
	}
	return rec.Clone(), true
}

// Assessments returns the assessment of every tracked address in address order.
func (l *Ledger) Assessments() []domain.RiskAssessment {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.RiskAssessment, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, domain.AssessRecord(*rec))
	}
	slices.SortFunc(out, func(a, b domain.RiskAssessment) int {
		return cmp.Compare(a.SrcAddr, b.SrcAddr)
	})
	return out
}

// Records returns copies of all records in address order.
func (l *Ledger) Records() []domain.ReputationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.ReputationRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec.Clone())
	}
	slices.SortFunc(out, func(a, b domain.ReputationRecord) int {
		return cmp.Compare(a.SrcAddr, b.SrcAddr)
	})
	return out
}

// Restore replaces the ledger content. Scores are clamped into range.
func (l *Ledger) Restore(records []domain.ReputationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[string]*domain.ReputationRecord, len(records))
	for _, r := range records {
		rec := r.Clone()
		rec.Score = max(domain.MinReputation, min(domain.MaxReputation, rec.Score))
		l.records[rec.SrcAddr] = &rec
	}
}

// Len returns the number of tracked addresses.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
