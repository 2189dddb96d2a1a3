package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestRecordIdent(t *testing.T) {
	Reset()

	RecordIdent()
	RecordIdent()

	if got := Get().IdentsIssued; got != 2 {
		t.Errorf("IdentsIssued = %d, want 2", got)
	}
}

func TestRecordPoll(t *testing.T) {
	Reset()

	RecordPoll()

	if got := Get().PollsServed; got != 1 {
		t.Errorf("PollsServed = %d, want 1", got)
	}
}

func TestRecordRoomCreatedAndPaired(t *testing.T) {
	Reset()

	RecordRoomCreated()
	RecordRoomCreated()
	RecordRoomPaired()

	m := Get()
	if m.RoomsCreated != 2 {
		t.Errorf("RoomsCreated = %d, want 2", m.RoomsCreated)
	}
	if m.RoomsPaired != 1 {
		t.Errorf("RoomsPaired = %d, want 1", m.RoomsPaired)
	}
}

func TestRecordCleanup(t *testing.T) {
	Reset()

	RecordCleanup(3, 50*time.Millisecond)
	RecordCleanup(2, 30*time.Millisecond)

	m := Get()
	if m.CleanupSweeps != 2 {
		t.Errorf("CleanupSweeps = %d, want 2", m.CleanupSweeps)
	}
	if m.SessionsExpired != 5 {
		t.Errorf("SessionsExpired = %d, want 5", m.SessionsExpired)
	}
	if m.LastCleanupTook != 30*time.Millisecond {
		t.Errorf("LastCleanupTook = %v, want 30ms (most recent sweep)", m.LastCleanupTook)
	}
}

func TestReset(t *testing.T) {
	Reset()

	RecordIdent()
	RecordPoll()
	RecordRoomCreated()
	RecordCleanup(1, time.Millisecond)

	Reset()

	m := Get()
	if m.IdentsIssued != 0 || m.PollsServed != 0 || m.RoomsCreated != 0 ||
		m.RoomsPaired != 0 || m.SessionsExpired != 0 || m.CleanupSweeps != 0 {
		t.Error("expected all counters to be reset to 0")
	}
}

func TestUptime(t *testing.T) {
	m := Get()
	uptime := m.Uptime()

	if uptime < 0 {
		t.Errorf("Uptime = %v, want non-negative", uptime)
	}
	if uptime > time.Second {
		t.Errorf("Uptime = %v, want small this soon after process start", uptime)
	}
}

func TestToJSON(t *testing.T) {
	Reset()

	RecordIdent()
	data := Get().ToJSON()

	if len(data) == 0 {
		t.Error("expected non-empty JSON data")
	}
	if !strings.Contains(string(data), "idents_issued") {
		t.Error("expected JSON to contain \"idents_issued\"")
	}
}
