// Package rules implements the inline rule engine that flags observations
// before they enter the observation log.
package rules

import (
	"strings"
	"sync"

	"github.com/lcalzada-xor/voipmon/internal/core/domain"
)

// Defaults for the INVITE flood rule.
const (
	DefaultFloodWindow    = 50
	DefaultFloodThreshold = 10
)

// DefaultBlacklist is the address set shipped with the engine.
var DefaultBlacklist = []string{"192.168.1.100", "10.0.0.50", "172.16.1.200"}

// Rule is a single check applied to an observation about to be logged.
// recent holds the tail of the observation log, oldest first, not
// including obs itself.
type Rule interface {
	Name() string
	Evaluate(obs domain.Observation, recent []domain.Observation) (reason string, hit bool)
}

// Engine runs its rules against incoming observations.
type Engine struct {
	mu     sync.RWMutex
	rules  []Rule
	window int
}

// NewEngine creates an engine with the given rules. window is the number of
// trailing log entries callers must hand to Evaluate.
func NewEngine(window int, rules ...Rule) *Engine {
	if window <= 0 {
		window = DefaultFloodWindow
	}
	return &Engine{rules: rules, window: window}
}

// NewDefaultEngine builds the blacklist and INVITE flood rules with their defaults.
func NewDefaultEngine() *Engine {
	return NewEngine(DefaultFloodWindow,
		NewBlacklistRule(DefaultBlacklist),
		NewInviteFloodRule(DefaultFloodWindow, DefaultFloodThreshold),
	)
}

// AddRule registers an extra rule.
func (e *Engine) AddRule(r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, r)
}

// Window returns the log tail length the engine needs.
func (e *Engine) Window() int {
	return e.window
}

// Evaluate runs every rule and returns one event carrying all reasons, or nil
// when no rule fired. It never fails.
func (e *Engine) Evaluate(obs domain.Observation, recent []domain.Observation) *domain.SuspiciousEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var reasons []string
	for _, r := range e.rules {
		if reason, hit := r.Evaluate(obs, recent); hit {
			reasons = append(reasons, reason)
		}
	}
	if len(reasons) == 0 {
		return nil
	}

	event := domain.NewSuspiciousEvent(obs, strings.Join(reasons, "; "))
	return &event
}

// BlacklistRule flags traffic from or to a listed address.
type BlacklistRule struct {
	mu    sync.RWMutex
	addrs map[string]struct{}
}

// NewBlacklistRule creates a blacklist rule seeded with addrs.
func NewBlacklistRule(addrs []string) *BlacklistRule {
	r := &BlacklistRule{addrs: make(map[string]struct{}, len(addrs))}
	for _, a := range addrs {
		r.addrs[a] = struct{}{}
	}
	return r
}

func (r *BlacklistRule) Name() string { return "Blacklist" }

// Add inserts an address at runtime.
func (r *BlacklistRule) Add(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addrs[addr] = struct{}{}
}

// Contains reports whether addr is listed.
func (r *BlacklistRule) Contains(addr string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.addrs[addr]
	return ok
}

func (r *BlacklistRule) Evaluate(obs domain.Observation, _ []domain.Observation) (string, bool) {
	if r.Contains(obs.SrcAddr) || r.Contains(obs.DstAddr) {
		return "Blacklisted IP", true
	}
	return "", false
}

// InviteFloodRule flags an INVITE when its source already sent more than
// threshold INVITEs within the last window log entries.
type InviteFloodRule struct {
	window    int
	threshold int
}

// NewInviteFloodRule creates the flood rule.
func NewInviteFloodRule(window, threshold int) *InviteFloodRule {
	if window <= 0 {
		window = DefaultFloodWindow
	}
	if threshold <= 0 {
		threshold = DefaultFloodThreshold
	}
	return &InviteFloodRule{window: window, threshold: threshold}
}

func (r *InviteFloodRule) Name() string { return "InviteFlood" }

func (r *InviteFloodRule) Evaluate(obs domain.Observation, recent []domain.Observation) (string, bool) {
	if !obs.IsInvite() {
		return "", false
	}
	if len(recent) > r.window {
		recent = recent[len(recent)-r.window:]
	}

	count := 0
	for _, o := range recent {
		if o.IsInvite() && o.SrcAddr == obs.SrcAddr {
			count++
		}
	}
	if count > r.threshold {
		return "Rapid INVITE requests", true
	}
	return "", false
}
