package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// TestPortableDriver_SameSchema exercises the same migration and
// upsert paths against modernc.org/sqlite, the pure-Go driver used
// where cgo is unavailable, to confirm the schema and queries are not
// accidentally tied to mattn/go-sqlite3-specific SQL extensions.
func TestPortableDriver_SameSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portable.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	defer db.Close()

	s, err := OpenWithDB(db)
	if err != nil {
		t.Fatalf("OpenWithDB() error: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.UpsertDevice(ctx, "esp_portable"); err != nil {
		t.Fatalf("UpsertDevice() error: %v", err)
	}

	key := SensorKey{Device: "esp_portable", ID: 1}
	value := "42"
	if err := s.UpsertSensor(ctx, key, SensorFields{Value: &value}); err != nil {
		t.Fatalf("UpsertSensor() error: %v", err)
	}

	got, err := s.GetSensor(ctx, key)
	if err != nil {
		t.Fatalf("GetSensor() error: %v", err)
	}
	if got == nil || got.Value == nil || *got.Value != value {
		t.Fatalf("GetSensor() = %+v, want value %q", got, value)
	}
}
