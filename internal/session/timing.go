package session

import "time"

// Timing constants: the single source of truth for every poll-pacing
// and expiry decision in this package.
// These are vars, not consts: cmd/signalserver overrides them from
// Config at startup, before any session is created.
var (
	MaxConnection = 3600 * time.Second // kill_at offset from creation
	FirstPoll     = 1 * time.Second    // next_poll offset from creation
	FastPoll      = 1 * time.Second    // next_poll offset once paired
	SlowPoll      = 10 * time.Second   // next_poll offset while unpaired
	ConnectGrace  = 5 * time.Second    // connect_at = peer.next_poll + this
	LivenessGrace = 20 * time.Second   // is_alive tolerance past next_poll
)
