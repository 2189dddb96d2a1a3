package session

import (
	"context"
	"fmt"

	"rtc-signal/internal/record"
	"rtc-signal/internal/room"
	"rtc-signal/internal/store"
)

// Session wraps the generic record with the signaling state machine.
type Session struct {
	rec   *record.Record[Body, Metadata]
	clock Clock
}

// BucketKey returns the full "auth:<token>" store key for token.
func BucketKey(token string) string {
	return fmt.Sprintf("%s:%s", prefix, token)
}

// Create allocates a fresh session with a random 32-character token.
func Create(ctx context.Context, s store.Store, clock Clock) (*Session, error) {
	rec, err := record.Create[Body, Metadata](ctx, s, schema{clock: clock})
	if err != nil {
		return nil, err
	}
	return &Session{rec: rec, clock: clock}, nil
}

// Load fetches a session by token. Returns (nil, nil) if absent.
func Load(ctx context.Context, s store.Store, token string, clock Clock) (*Session, error) {
	rec, err := record.Load[Body, Metadata](ctx, s, schema{clock: clock}, token)
	if err != nil || rec == nil {
		return nil, err
	}
	return &Session{rec: rec, clock: clock}, nil
}

// Token returns this session's key.
func (sess *Session) Token() string { return sess.rec.Key }

// Write persists the session if modified.
func (sess *Session) Write(ctx context.Context, s store.Store) error {
	return sess.rec.Write(ctx, s)
}

// Room returns the joined room key, or "" if none.
func (sess *Session) Room() string { return sess.rec.Metadata.Room }

// Peer returns the paired peer token, or "" if none.
func (sess *Session) Peer() string { return sess.rec.Metadata.Peer }

// Service returns the asserted service tag, or "" if unset.
func (sess *Session) Service() string { return sess.rec.Metadata.Service }

// SetService records the service tag a client asserts on first poll.
func (sess *Session) SetService(service string) {
	if sess.rec.Metadata.Service == service {
		return
	}
	sess.rec.Metadata.Service = service
	sess.rec.MarkModified()
}

// SetRoom records the room this session joined.
func (sess *Session) SetRoom(code string) {
	sess.rec.Metadata.Room = code
	sess.rec.MarkModified()
}

// SetPeer records the paired peer token, or clears it if peer == "".
func (sess *Session) SetPeer(peer string) {
	sess.rec.Metadata.Peer = peer
	sess.rec.MarkModified()
}

// JoinRoom wraps room.Room.JoinRoom, additionally recording the
// joined room's key on this session.
func (sess *Session) JoinRoom(r *room.Room) error {
	if err := r.JoinRoom(sess.Token(), sess.Service()); err != nil {
		return err
	}
	sess.SetRoom(r.Code())
	return nil
}

// SendSignal enqueues each submitted signal: drops anything not
// client-originated, enforces the single-SDP and single-ICE-terminator
// rules, and marks the record modified on any enqueue.
func (sess *Session) SendSignal(signals []Signal) {
	body := &sess.rec.Body

	for _, sig := range signals {
		if !sig.CanSend() {
			continue
		}

		switch sig.Type {
		case SignalSetSDP:
			if body.SentSDP {
				continue
			}
			body.SentSDP = true
		case SignalAddCandidate:
			if body.IceDone {
				continue
			}
			if sig.Candidate.Empty() {
				body.IceDone = true
			}
		}

		body.Queue = append(body.Queue, sig)
		sess.rec.MarkModified()
	}
}

// PullSignals returns the signal batch to deliver on this poll:
// peer-queue catch-up (via TryConnect + the read cursor), then
// at-most-once JoinRoom/ConnectAt, then NextPoll last.
func (sess *Session) PullSignals(peer *Session) []Signal {
	var out []Signal

	if peer != nil {
		sess.TryConnect(peer)
		out = append(out, sess.readPeerQueue(peer)...)
	}

	body := &sess.rec.Body
	meta := &sess.rec.Metadata

	if meta.Room != "" && !body.SentJoin {
		body.SentJoin = true
		sess.rec.MarkModified()
		out = append(out, JoinRoom(meta.Room))
	}

	if body.ConnectAt != nil && !body.ReadConnect {
		body.ReadConnect = true
		sess.rec.MarkModified()
		out = append(out, ConnectAt(*body.ConnectAt))
	}

	out = append(out, NextPoll(meta.NextPoll))
	return out
}

// readPeerQueue advances the monotonic read cursor over peer's queue
// and returns the newly visible entries.
func (sess *Session) readPeerQueue(peer *Session) []Signal {
	body := &sess.rec.Body
	peerQueue := peer.rec.Body.Queue

	if body.Read > len(peerQueue) {
		// Should not happen per the read<=|peer.queue| invariant, but
		// guards against a stale cursor surviving a lost write race.
		body.Read = len(peerQueue)
	}

	signals := append([]Signal(nil), peerQueue[body.Read:]...)
	if len(signals) > 0 {
		body.Read = len(peerQueue)
		sess.rec.MarkModified()
	}
	return signals
}

// TryConnect establishes the agreed connect instant: idempotent, and
// order-independent of which side computes it first.
func (sess *Session) TryConnect(peer *Session) {
	body := &sess.rec.Body
	peerBody := &peer.rec.Body

	if body.ConnectAt != nil {
		return
	}
	if peerBody.ConnectAt != nil {
		at := *peerBody.ConnectAt
		body.ConnectAt = &at
		body.ReadConnect = false
		sess.rec.MarkModified()
		return
	}

	if !body.SentSDP || !peerBody.SentSDP {
		return
	}
	if !body.IceDone && !peerBody.IceDone {
		return
	}

	at := peer.rec.Metadata.NextPoll.Add(ConnectGrace)
	body.ConnectAt = &at
	body.ReadConnect = false
	sess.rec.MarkModified()
}

// Poll applies this poll's pacing decision: fast mode once paired,
// slow mode otherwise.
func (sess *Session) Poll() {
	interval := SlowPoll
	if sess.rec.Metadata.Peer != "" {
		interval = FastPoll
	}
	sess.rec.Metadata.NextPoll = sess.clock.Now().Add(interval)
	sess.rec.MarkModified()
}

// IsDone reports whether both sides have fully exchanged signals and
// agreed a connect time — a true result means the client should stop
// polling.
func (sess *Session) IsDone(peer *Session) bool {
	body := &sess.rec.Body
	peerBody := &peer.rec.Body

	if body.ConnectAt == nil {
		return false
	}
	if !body.IceDone || !peerBody.IceDone {
		return false
	}
	if len(peerBody.Queue)-body.Read > 0 {
		return false
	}
	return true
}

// IsAlive reports whether this session is still within its liveness
// window.
func (sess *Session) IsAlive() bool {
	meta := &sess.rec.Metadata
	limit := meta.KillAt
	graceLimit := meta.NextPoll.Add(LivenessGrace)
	if graceLimit.Before(limit) {
		limit = graceLimit
	}
	return sess.clock.Now().Before(limit)
}

// KeysToKill returns the prefixed keys of this session, its paired
// peer, and its joined room, or nil if this session is still alive.
func (sess *Session) KeysToKill() []string {
	if sess.IsAlive() {
		return nil
	}

	keys := []string{BucketKey(sess.Token())}
	if peer := sess.rec.Metadata.Peer; peer != "" {
		keys = append(keys, BucketKey(peer))
	}
	if code := sess.rec.Metadata.Room; code != "" {
		keys = append(keys, room.BucketKey(code))
	}
	return keys
}
