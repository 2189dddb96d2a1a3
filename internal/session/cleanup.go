package session

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"rtc-signal/internal/record"
	"rtc-signal/internal/store"
)

// CleanupResult summarizes one sweep, for internal/metrics. Scanned
// counts the session objects listed; Deleted counts the session keys
// deleted (room keys deleted alongside them are not counted).
type CleanupResult struct {
	Scanned int
	Deleted int
}

// Cleanup lists every Session object, reads its metadata, unions
// every KeysToKill result, and deletes the lot. A missing or corrupt
// object aborts the sweep with a fatal error; this is not
// incremental-resumable.
//
// The delete phase is parallelized with golang.org/x/sync/errgroup:
// the first failing delete cancels the group and its error becomes
// the sweep's fatal error.
func Cleanup(ctx context.Context, s store.Store, clock Clock) (CleanupResult, error) {
	listed, err := s.List(ctx, prefix, true)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("session: cleanup: list %s objects: %w", prefix, err)
	}

	toKill := map[string]struct{}{}
	for _, entry := range listed {
		sess, err := record.FromListed[Body, Metadata](schema{clock: clock}, entry)
		if err != nil {
			return CleanupResult{}, fmt.Errorf("session: cleanup: read %s: %w", entry.Key, err)
		}

		wrapped := &Session{rec: sess, clock: clock}
		for _, key := range wrapped.KeysToKill() {
			toKill[key] = struct{}{}
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for key := range toKill {
		key := key
		group.Go(func() error {
			return s.Delete(gctx, key)
		})
	}
	if err := group.Wait(); err != nil {
		return CleanupResult{}, fmt.Errorf("session: cleanup: delete: %w", err)
	}

	deletedSessions := 0
	for key := range toKill {
		if strings.HasPrefix(key, prefix+":") {
			deletedSessions++
		}
	}
	return CleanupResult{Scanned: len(listed), Deleted: deletedSessions}, nil
}
