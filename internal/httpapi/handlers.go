package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"rtc-signal/internal/adminops"
	"rtc-signal/internal/metrics"
	"rtc-signal/internal/room"
	"rtc-signal/internal/session"
)

// identResponse is the /ident success body.
type identResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleIdent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, msgServerError)
		return
	}

	sess, err := session.Create(r.Context(), s.store, s.clock)
	if err != nil {
		s.logger.Errorf("[%s] ident: create session: %v", requestIDFrom(r.Context()), err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if err := sess.Write(r.Context(), s.store); err != nil {
		s.logger.Errorf("[%s] ident: persist session: %v", requestIDFrom(r.Context()), err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	metrics.RecordIdent()
	s.publish(adminops.Event{Kind: adminops.EventSessionCreated, Token: sess.Token()})
	writeJSON(w, http.StatusOK, identResponse{Token: sess.Token()})
}

var allowedSubmittedTypes = map[session.SignalType]bool{
	session.SignalSetSDP:       true,
	session.SignalAddCandidate: true,
	session.SignalJoinRoom:     true,
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, msgServerError)
		return
	}
	ctx := r.Context()
	reqID := requestIDFrom(ctx)

	token := r.Header.Get("Authorization")
	if token == "" {
		writeError(w, http.StatusForbidden, msgMissingToken)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidSignal)
		return
	}
	var batch []session.Signal
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &batch); err != nil {
			writeError(w, http.StatusBadRequest, msgInvalidSignal)
			return
		}
	}
	for _, sig := range batch {
		if !allowedSubmittedTypes[sig.Type] {
			writeError(w, http.StatusBadRequest, msgInvalidSignal)
			return
		}
	}

	sess, err := session.Load(ctx, s.store, token, s.clock)
	if err != nil {
		s.logger.Errorf("[%s] poll: load session: %v", reqID, err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if sess == nil {
		writeError(w, http.StatusForbidden, msgInvalidToken)
		return
	}

	if service := r.Header.Get("X-Service"); service != "" {
		sess.SetService(service)
	}

	peerToken, status, message, err := s.resolvePeer(ctx, sess, batch)
	if err != nil {
		s.logger.Errorf("[%s] poll: resolve peer: %v", reqID, err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}
	if message != "" {
		writeError(w, status, message)
		return
	}

	var peer *session.Session
	if peerToken != "" {
		peer, err = session.Load(ctx, s.store, peerToken, s.clock)
		if err != nil {
			s.logger.Errorf("[%s] poll: load peer: %v", reqID, err)
			writeError(w, http.StatusInternalServerError, msgServerError)
			return
		}
		// An absent peer record just means it hasn't written anything
		// yet; proceed without peer data for this poll.
	}

	if peer != nil && sess.IsDone(peer) {
		writeError(w, http.StatusBadRequest, msgConnectionDone)
		return
	}

	sess.Poll()
	sess.SendSignal(batch)
	out := sess.PullSignals(peer)

	if err := sess.Write(ctx, s.store); err != nil {
		s.logger.Errorf("[%s] poll: persist session: %v", reqID, err)
		writeError(w, http.StatusInternalServerError, msgServerError)
		return
	}

	metrics.RecordPoll()
	writeJSON(w, http.StatusOK, out)
}

// resolvePeer implements the peer/room resolution step of /poll. Both
// room-resolution sub-paths (already joined a room vs. joining or
// creating one now) converge on one get-peer/set-peer sequence, so a
// session that was already in an unpaired room gets the same
// SetPeer-on-pairing treatment as one pairing for the first time. The
// room is written only on the joining sub-path, and the paired-room
// metric is counted only there, so each room counts once.
// Returns the resolved peer token (possibly empty), or a non-empty
// message and status to short-circuit the request with an error.
func (s *Server) resolvePeer(ctx context.Context, sess *session.Session, batch []session.Signal) (peerToken string, status int, message string, err error) {
	if peer := sess.Peer(); peer != "" {
		return peer, 0, "", nil
	}

	var r *room.Room
	joinedNow := false

	if code := sess.Room(); code != "" {
		r, err = room.Load(ctx, s.store, code)
		if err != nil {
			return "", 0, "", err
		}
		if r == nil {
			return "", http.StatusBadRequest, msgRoomExpired, nil
		}
	} else {
		code, joinRequested := findJoinRoom(batch)

		if joinRequested {
			r, err = room.Load(ctx, s.store, code)
			if err != nil {
				return "", 0, "", err
			}
			if r == nil {
				return "", http.StatusNotFound, msgRoomNotFound, nil
			}
		} else {
			r, err = room.Create(ctx, s.store)
			if err != nil {
				return "", 0, "", err
			}
			metrics.RecordRoomCreated()
			s.publish(adminops.Event{Kind: adminops.EventRoomCreated, Room: r.Code()})
		}

		if err = sess.JoinRoom(r); err != nil {
			if errors.Is(err, room.ErrRoomFull) {
				return "", http.StatusBadRequest, msgRoomFull, nil
			}
			return "", 0, "", err
		}
		if err = r.Write(ctx, s.store); err != nil {
			return "", 0, "", err
		}
		joinedNow = true
	}

	peer := r.GetPeer(sess.Token())
	sess.SetPeer(peer)
	if peer != "" {
		if joinedNow {
			metrics.RecordRoomPaired()
		}
		s.publish(adminops.Event{Kind: adminops.EventRoomPaired, Token: sess.Token(), Room: r.Code()})
	}
	return peer, 0, "", nil
}

func findJoinRoom(batch []session.Signal) (code string, found bool) {
	for _, sig := range batch {
		if sig.Type == session.SignalJoinRoom {
			return sig.Room, true
		}
	}
	return "", false
}
