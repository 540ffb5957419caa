package sqlite

import (
	"database/sql"
	"testing"

	"github.com/yegors/voicebridge/pkg/logger"
	_ "modernc.org/sqlite"
)

func newTestStorage(t *testing.T) *CallStorage {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewCallStorage(db, log)
}

func TestCallLifecycle(t *testing.T) {
	storage := newTestStorage(t)

	id, err := storage.StartCall("CA123", DirectionInbound)
	if err != nil {
		t.Fatalf("StartCall failed: %v", err)
	}

	if err := storage.SetStreaming(id, "CA123", "SS123"); err != nil {
		t.Fatalf("SetStreaming failed: %v", err)
	}
	if err := storage.FinishCall(id, StatusCompleted, 3); err != nil {
		t.Fatalf("FinishCall failed: %v", err)
	}

	record, err := storage.GetCallBySID("CA123")
	if err != nil {
		t.Fatalf("GetCallBySID failed: %v", err)
	}
	if record == nil {
		t.Fatal("expected a call record")
	}
	if record.StreamSID != "SS123" {
		t.Errorf("expected stream SID SS123, got %q", record.StreamSID)
	}
	if record.Status != StatusCompleted {
		t.Errorf("expected completed status, got %q", record.Status)
	}
	if record.Turns != 3 {
		t.Errorf("expected 3 turns, got %d", record.Turns)
	}
	if record.EndedAt.IsZero() {
		t.Error("expected ended_at to be set")
	}
}

func TestGetRecentCallsOrder(t *testing.T) {
	storage := newTestStorage(t)

	for _, sid := range []string{"CA1", "CA2", "CA3"} {
		if _, err := storage.StartCall(sid, DirectionOutbound); err != nil {
			t.Fatalf("StartCall failed: %v", err)
		}
	}

	records, err := storage.GetRecentCalls(2)
	if err != nil {
		t.Fatalf("GetRecentCalls failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

func TestGetCallBySIDMissing(t *testing.T) {
	storage := newTestStorage(t)

	record, err := storage.GetCallBySID("CA-missing")
	if err != nil {
		t.Fatalf("GetCallBySID failed: %v", err)
	}
	if record != nil {
		t.Errorf("expected nil record for unknown SID, got %+v", record)
	}
}
