package cmd

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/teemow/calweather/internal/store"
)

func TestPurge(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []store.SessionRecord{
		{JTI: "expired", UserSub: "u1", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour)},
		{JTI: "live", UserSub: "u1", ExpiresAt: now.Add(time.Hour), CreatedAt: now},
	}
	for _, rec := range records {
		if err := st.SaveSession(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.SaveExchangeCode(ctx, store.ExchangeCodeRecord{Code: "old", UserSub: "u1", ExpiresAt: now.Add(-time.Second), CreatedAt: now.Add(-time.Minute)}); err != nil {
		t.Fatal(err)
	}

	result, err := purge(ctx, st, now, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("purge() error = %v", err)
	}
	if result.Sessions != 1 || result.ExchangeCodes != 1 {
		t.Errorf("purge() = %+v, want 1 session and 1 exchange code", result)
	}
	if _, err := st.GetSession(ctx, "live"); err != nil {
		t.Errorf("live session was purged: %v", err)
	}
}

func TestRunPurgeLoopStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runPurgeLoop(ctx, store.NewMemoryStore(), time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runPurgeLoop did not return after cancel")
	}
}
