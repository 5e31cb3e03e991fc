package history

import (
	"context"
	"testing"
	"time"
)

func TestSQLSinkSQLiteRoundTrip(t *testing.T) {
	sink, err := NewSQLSinkFromDSN(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	events := []Event{
		{Type: EventSpawned, OccurredAt: time.Now().UTC(), Server: "api", Index: 0, PID: 100, Port: 4000},
		{Type: EventReady, OccurredAt: time.Now().UTC(), Server: "api", Index: 0, PID: 100, Port: 4000, Resource: "tcp:localhost:4000"},
		{Type: EventFailed, OccurredAt: time.Now().UTC(), Server: "worker", Index: 1, PID: 0, Port: 0, Detail: "no command"},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("send %s: %v", e.Type, err)
		}
	}

	var count int
	row := sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM server_history WHERE server = ?", "api")
	if err := row.Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 api events, got %d", count)
	}

	var detail string
	row = sink.db.QueryRowContext(ctx, "SELECT detail FROM server_history WHERE server = ?", "worker")
	if err := row.Scan(&detail); err != nil {
		t.Fatalf("scan detail: %v", err)
	}
	if detail != "no command" {
		t.Fatalf("detail = %q", detail)
	}
}

func TestSQLSinkEmptyDSN(t *testing.T) {
	if _, err := NewSQLSinkFromDSN("  "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}
