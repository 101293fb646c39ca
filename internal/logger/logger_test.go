package logger

import "testing"

func TestRedactSecrets(t *testing.T) {
	got := redact([]interface{}{"database_dsn", "postgres://u:p@h/db", "heading_id", 7, "dangling"})
	if len(got) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(got))
	}
	if got[1] != "[REDACTED]" {
		t.Errorf("Expected dsn to be redacted, got %v", got[1])
	}
	if got[3] != 7 {
		t.Errorf("Expected heading_id to pass through, got %v", got[3])
	}
	if got[4] != "dangling" {
		t.Errorf("Expected trailing key to be kept, got %v", got[4])
	}
}

func TestNopLogger(t *testing.T) {
	l := Nop().With("component", "test")
	l.Info("ignored", "k", "v")
	l.Sync()
}
