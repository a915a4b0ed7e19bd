package domain

import (
	"time"
)

// Phase of the round loop
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseActive
	PhaseCrashed
	PhaseCooldown
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseActive:
		return "active"
	case PhaseCrashed:
		return "crashed"
	case PhaseCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Round is the live round owned by the state machine
type Round struct {
	RoundID          string
	Phase            Phase
	Countdown        int
	Nonce            int
	CrashPoint       float64
	HashedServerSeed string
	StartTime        *time.Time
	EndTime          *time.Time
}

// NewRound creates a round in the waiting phase
func NewRound(roundID, hashedServerSeed string, countdown int) *Round {
	return &Round{
		RoundID:          roundID,
		Phase:            PhaseWaiting,
		Countdown:        countdown,
		HashedServerSeed: hashedServerSeed,
	}
}

// Launch fixes the outcome and start time. The start time is set once per round.
func (r *Round) Launch(nonce int, crashPoint float64, at time.Time) {
	r.Nonce = nonce
	r.CrashPoint = crashPoint
	r.Countdown = 0
	if r.StartTime == nil {
		r.StartTime = &at
	}
	r.Phase = PhaseActive
}

// Crash ends the flight
func (r *Round) Crash(at time.Time) {
	r.EndTime = &at
	r.Phase = PhaseCrashed
}

// Cooldown moves to the pause before the next round
func (r *Round) Cooldown() {
	r.Phase = PhaseCooldown
}

// Started reports whether the start time has been set
func (r *Round) Started() bool {
	return r.StartTime != nil
}

// RoundInfo is a finished round. ServerSeed stays empty while the seed that
// produced it is still in use.
type RoundInfo struct {
	RoundID          string    `json:"roundId"`
	Multiplier       float64   `json:"multiplier"`
	ServerSeed       string    `json:"serverSeed,omitempty"`
	HashedServerSeed string    `json:"hashedServerSeed"`
	Nonce            int       `json:"nonce"`
	StartedAt        time.Time `json:"startedAt"`
	EndedAt          time.Time `json:"endedAt"`
}

// RetiredSeed is a server seed that no longer generates rounds
type RetiredSeed struct {
	ServerSeed       string    `json:"serverSeed"`
	HashedServerSeed string    `json:"hashedServerSeed"`
	LastNonce        int       `json:"lastNonce"`
	RetiredAt        time.Time `json:"retiredAt"`
}

// History keeps finished rounds most recent first, dropping the oldest beyond its limit
type History struct {
	limit   int
	entries []RoundInfo
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 30
	}
	return &History{limit: limit, entries: make([]RoundInfo, 0, limit+1)}
}

// Push inserts at the head
func (h *History) Push(info RoundInfo) {
	h.entries = append(h.entries, RoundInfo{})
	copy(h.entries[1:], h.entries)
	h.entries[0] = info
	if len(h.entries) > h.limit {
		h.entries = h.entries[:h.limit]
	}
}

// Reveal fills in the server seed of every entry committed to hashedServerSeed
func (h *History) Reveal(hashedServerSeed, serverSeed string) {
	for i := range h.entries {
		if h.entries[i].HashedServerSeed == hashedServerSeed {
			h.entries[i].ServerSeed = serverSeed
		}
	}
}

// Entries returns a copy
func (h *History) Entries() []RoundInfo {
	out := make([]RoundInfo, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Len() int {
	return len(h.entries)
}
