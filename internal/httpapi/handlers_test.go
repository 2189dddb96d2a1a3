package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pion/logging"

	"rtc-signal/internal/adminops"
	"rtc-signal/internal/session"
	"rtc-signal/internal/store"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestServer() *Server {
	logger := logging.NewDefaultLoggerFactory().NewLogger("test")
	return New(store.NewMemory(), fixedClock{now: time.Unix(1_700_000_000, 0)}, logger, adminops.NewHub())
}

func ident(t *testing.T, s *Server) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ident", nil)
	rec := httptest.NewRecorder()
	s.handleIdent(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ident status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var resp identResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode ident response: %v", err)
	}
	return resp.Token
}

func poll(t *testing.T, s *Server, token string, signals []session.Signal) (int, []session.Signal) {
	t.Helper()
	body, err := json.Marshal(signals)
	if err != nil {
		t.Fatalf("marshal signals: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/poll", bytes.NewReader(body))
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	s.handlePoll(rec, req)

	if rec.Code != http.StatusOK {
		return rec.Code, nil
	}
	var out []session.Signal
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode poll response: %v", err)
	}
	return rec.Code, out
}

func TestIdentReturnsToken(t *testing.T) {
	s := newTestServer()
	token := ident(t, s)
	if len(token) != 32 {
		t.Fatalf("token length = %d, want 32", len(token))
	}
}

func TestPollMissingTokenIsForbidden(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/poll", bytes.NewReader([]byte("[]")))
	rec := httptest.NewRecorder()
	s.handlePoll(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestPollUnknownTokenIsForbidden(t *testing.T) {
	s := newTestServer()
	status, _ := poll(t, s, "NOSUCHTOKEN00000000000000000000", nil)
	if status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", status)
	}
}

func TestPollInvalidSignalTypeIsRejected(t *testing.T) {
	s := newTestServer()
	token := ident(t, s)

	body := []byte(`[{"type":"ConnectAt","payload":1700000000}]`)
	req := httptest.NewRequest(http.MethodPost, "/poll", bytes.NewReader(body))
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	s.handlePoll(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSoloPollReturnsNextPoll(t *testing.T) {
	s := newTestServer()
	token := ident(t, s)

	status, out := poll(t, s, token, []session.Signal{session.SetSDP("v=0...")})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if len(out) == 0 || out[len(out)-1].Type != session.SignalNextPoll {
		t.Fatalf("expected trailing NextPoll, got %+v", out)
	}
}

func TestRoomPairingHandshake(t *testing.T) {
	s := newTestServer()
	tokenA := ident(t, s)
	tokenB := ident(t, s)

	statusA, outA := poll(t, s, tokenA, nil)
	if statusA != http.StatusOK {
		t.Fatalf("A join status = %d, want 200", statusA)
	}
	var roomCode string
	for _, sig := range outA {
		if sig.Type == session.SignalJoinRoom {
			roomCode = sig.Room
		}
	}
	if roomCode == "" {
		t.Fatal("expected A to receive a JoinRoom echo with a room code")
	}

	statusB, outB := poll(t, s, tokenB, []session.Signal{session.JoinRoom(roomCode)})
	if statusB != http.StatusOK {
		t.Fatalf("B join status = %d, want 200", statusB)
	}
	sawJoin := false
	for _, sig := range outB {
		if sig.Type == session.SignalJoinRoom && sig.Room == roomCode {
			sawJoin = true
		}
	}
	if !sawJoin {
		t.Fatalf("expected B to receive JoinRoom(%s), got %+v", roomCode, outB)
	}

	// A's room was already resolved and paired by B's join; A's very
	// next poll must see the peer and switch to fast pacing rather
	// than staying on the unpaired slow-poll interval forever.
	_, outA2 := poll(t, s, tokenA, nil)
	var nextPoll session.Signal
	for _, sig := range outA2 {
		if sig.Type == session.SignalNextPoll {
			nextPoll = sig
		}
	}
	if nextPoll.Timestamp.IsZero() {
		t.Fatalf("expected a NextPoll signal, got %+v", outA2)
	}
	if got := nextPoll.Timestamp.Sub(time.Unix(1_700_000_000, 0)); got != session.FastPoll {
		t.Fatalf("A's next_poll offset = %v, want FastPoll (%v)", got, session.FastPoll)
	}
}

func TestRoomNotFoundIsRejected(t *testing.T) {
	s := newTestServer()
	token := ident(t, s)

	status, _ := poll(t, s, token, []session.Signal{session.JoinRoom("NOEXIST")})
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
}
