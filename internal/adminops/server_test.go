package adminops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pion/logging"

	"rtc-signal/internal/session"
	"rtc-signal/internal/store"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestServer(t *testing.T, s store.Store, clock session.Clock, secret string) *Server {
	t.Helper()
	logger := logging.NewDefaultLoggerFactory().NewLogger("test")
	return New(s, clock, logger, secret)
}

func TestCleanupRejectsWithoutToken(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), fixedClock{now: time.Unix(0, 0)}, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/admin/cleanup", nil)
	rec := httptest.NewRecorder()
	s.handleCleanup(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestCleanupRejectsWhenSecretUnset(t *testing.T) {
	s := newTestServer(t, store.NewMemory(), fixedClock{now: time.Unix(0, 0)}, "")

	req := httptest.NewRequest(http.MethodPost, "/admin/cleanup", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	s.handleCleanup(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestCleanupRunsASweepWithValidToken(t *testing.T) {
	clock := fixedClock{now: time.Unix(1_700_000_000, 0)}
	memStore := store.NewMemory()
	s := newTestServer(t, memStore, clock, "s3cret")

	sess, err := session.Create(t.Context(), memStore, clock)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := sess.Write(t.Context(), memStore); err != nil {
		t.Fatalf("Write: %v", err)
	}

	token, _, _ := GenerateAdminToken("s3cret", time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/admin/cleanup", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handleCleanup(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if scanned, ok := resp["scanned"].(float64); !ok || scanned != 1 {
		t.Fatalf("scanned = %v, want 1", resp["scanned"])
	}
}
