// Package presence keeps an in-memory roster of callers: who is active,
// which row they are working on, and how their shift is going.
//
// The tracker is fed by the dispatch engine's journal events (it is a
// dispatch.Observer), so it sees exactly what the journal sees without a
// NATS round-trip. A background reaper marks callers idle after a quiet
// period and eventually forgets them.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/callsheet/internal/model"
)

// Entry represents a single caller's live state.
type Entry struct {
	Caller     string          `json:"caller"`
	FirstSeen  time.Time       `json:"first_seen"`
	LastSeen   time.Time       `json:"last_seen"`
	LastEvent  model.EventKind `json:"last_event"`
	Holding    int             `json:"holding,omitempty"` // position of the unfinished row, 0 when none
	Claims     int64           `json:"claims"`
	Submitted  int64           `json:"submitted"`
	Passed     int64           `json:"passed"`
	RacesLost  int64           `json:"races_lost"`
	WriteFails int64           `json:"write_fails,omitempty"`
	IdleSecs   float64         `json:"idle_secs"`
	Idle       bool            `json:"idle,omitempty"` // true once the reaper marked the caller idle
	IdleSince  time.Time       `json:"idle_since,omitempty"`
}

// ReaperConfig configures the background idle-caller reaper.
type ReaperConfig struct {
	// IdleThreshold is how long a caller must be quiet before being marked idle.
	// Default: 15 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long after being marked idle before a caller is
	// dropped from the roster. Default: 8 hours, about one shift.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans. Default: 60 seconds.
	SweepInterval time.Duration

	// OnIdle is called for each caller newly marked idle, with the row they
	// were holding (0 for none). Called outside the lock.
	OnIdle func(caller string, holding int)
}

// Tracker maintains an in-memory roster of callers.
type Tracker struct {
	mu      sync.RWMutex
	callers map[string]*callerState
	now     func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

type callerState struct {
	firstSeen  time.Time
	lastSeen   time.Time
	lastEvent  model.EventKind
	holding    int
	claims     int64
	submitted  int64
	passed     int64
	racesLost  int64
	writeFails int64
	idle       bool
	idleSince  time.Time
}

// New creates a new presence tracker.
func New() *Tracker {
	return &Tracker{
		callers: make(map[string]*callerState),
		now:     time.Now,
	}
}

// Observe updates the roster from a journaled dispatch event.
func (t *Tracker) Observe(ev model.Event) {
	if ev.Actor == "" {
		return
	}

	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.callers[ev.Actor]
	if !ok {
		state = &callerState{firstSeen: now}
		t.callers[ev.Actor] = state
	}
	if state.idle {
		slog.Info("presence: caller back", "caller", ev.Actor)
		state.idle = false
		state.idleSince = time.Time{}
	}

	state.lastSeen = now
	state.lastEvent = ev.Kind

	switch ev.Kind {
	case model.EventClaimed:
		state.claims++
		state.holding = ev.Position
	case model.EventResumed:
		state.holding = ev.Position
	case model.EventRaceLost:
		state.racesLost++
	case model.EventSubmitted:
		state.submitted++
		if ev.Outcome == model.OutcomePass {
			state.passed++
		}
		if state.holding == ev.Position {
			state.holding = 0
		}
	case model.EventReleased:
		if state.holding == ev.Position {
			state.holding = 0
		}
	case model.EventWriteFail:
		state.writeFails++
	}
}

// Roster returns a snapshot of all tracked callers, most recently active
// first. Callers quiet for longer than staleThreshold are left out; pass 0
// to include everyone still tracked.
func (t *Tracker) Roster(staleThreshold time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0, len(t.callers))
	for caller, s := range t.callers {
		idle := now.Sub(s.lastSeen)
		if staleThreshold > 0 && idle > staleThreshold {
			continue
		}
		entries = append(entries, Entry{
			Caller:     caller,
			FirstSeen:  s.firstSeen,
			LastSeen:   s.lastSeen,
			LastEvent:  s.lastEvent,
			Holding:    s.holding,
			Claims:     s.claims,
			Submitted:  s.submitted,
			Passed:     s.passed,
			RacesLost:  s.racesLost,
			WriteFails: s.writeFails,
			IdleSecs:   idle.Seconds(),
			Idle:       s.idle,
			IdleSince:  s.idleSince,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].LastSeen.After(entries[j].LastSeen)
		}
		return entries[i].Caller < entries[j].Caller
	})
	return entries
}

// StartReaper launches a background goroutine that periodically marks quiet
// callers idle. Call Stop() to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 15 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 8 * time.Hour
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"idle_threshold", cfg.IdleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()

	type quiet struct {
		caller  string
		holding int
	}
	var newlyIdle []quiet

	t.mu.Lock()
	for caller, s := range t.callers {
		if s.idle {
			if now.Sub(s.idleSince) > cfg.EvictAfter {
				delete(t.callers, caller)
			}
			continue
		}
		if now.Sub(s.lastSeen) > cfg.IdleThreshold {
			s.idle = true
			s.idleSince = now
			newlyIdle = append(newlyIdle, quiet{caller: caller, holding: s.holding})
		}
	}
	t.mu.Unlock()

	for _, q := range newlyIdle {
		slog.Info("presence: caller idle",
			"caller", q.caller,
			"holding", q.holding,
			"threshold", cfg.IdleThreshold)
		if cfg.OnIdle != nil {
			cfg.OnIdle(q.caller, q.holding)
		}
	}
}
