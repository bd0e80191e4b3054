package db

import (
	"context"
	"testing"
	"time"

	"github.com/j-veylop/vehicle-dashboard/internal/models"
)

func TestInsertOdometerReading(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	r := &models.OdometerReading{UserID: "u1", Value: 12345.6}
	if err := db.InsertOdometerReading(context.Background(), r); err != nil {
		t.Fatalf("InsertOdometerReading() failed: %v", err)
	}

	if r.ID == 0 {
		t.Error("InsertOdometerReading() should set ID")
	}
	if r.Timestamp.IsZero() {
		t.Error("InsertOdometerReading() should default the timestamp")
	}
}

func TestInsertFuelEntry(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	e := &models.FuelEntry{UserID: "u1", Quantity: 20, Price: 95.5}
	if err := db.InsertFuelEntry(context.Background(), e); err != nil {
		t.Fatalf("InsertFuelEntry() failed: %v", err)
	}

	if e.ID == 0 {
		t.Error("InsertFuelEntry() should set ID")
	}
}

func TestAppendEvents(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	r, err := db.AppendOdometerReading(ctx, "u1", 1500, at)
	if err != nil {
		t.Fatalf("AppendOdometerReading() failed: %v", err)
	}
	if r.ID == 0 || r.UserID != "u1" || r.Value != 1500 || !r.Timestamp.Equal(at) {
		t.Errorf("AppendOdometerReading() = %+v", r)
	}

	e, err := db.AppendFuelEntry(ctx, "u1", 20, 95.5, time.Time{})
	if err != nil {
		t.Fatalf("AppendFuelEntry() failed: %v", err)
	}
	if e.ID == 0 || e.Quantity != 20 || e.Price != 95.5 || e.Timestamp.IsZero() {
		t.Errorf("AppendFuelEntry() = %+v", e)
	}
}

func TestListOdometerReadings_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, v := range []float64{1000, 1200, 1500} {
		r := &models.OdometerReading{UserID: "u1", Value: v, Timestamp: base.Add(time.Duration(i) * 24 * time.Hour)}
		if err := db.InsertOdometerReading(ctx, r); err != nil {
			t.Fatalf("InsertOdometerReading() failed: %v", err)
		}
	}
	// Another user's data must not leak in
	if err := db.InsertOdometerReading(ctx, &models.OdometerReading{UserID: "u2", Value: 99, Timestamp: base}); err != nil {
		t.Fatalf("InsertOdometerReading() failed: %v", err)
	}

	readings, err := db.ListOdometerReadings(ctx, "u1")
	if err != nil {
		t.Fatalf("ListOdometerReadings() failed: %v", err)
	}

	if len(readings) != 3 {
		t.Fatalf("Expected 3 readings, got %d", len(readings))
	}
	if readings[0].Value != 1500 || readings[2].Value != 1000 {
		t.Errorf("Expected newest first, got %v, %v, %v", readings[0].Value, readings[1].Value, readings[2].Value)
	}
	if !readings[2].Timestamp.Equal(base) {
		t.Errorf("Timestamp = %v, want %v", readings[2].Timestamp, base)
	}
	if readings[0].UserID != "u1" {
		t.Errorf("UserID = %q, want u1", readings[0].UserID)
	}
}

func TestListOdometerReadings_PreservesMilliseconds(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	at := time.Date(2025, 6, 1, 9, 0, 0, 250*int(time.Millisecond), time.FixedZone("CEST", 2*3600))
	if err := db.InsertOdometerReading(ctx, &models.OdometerReading{UserID: "u1", Value: 1, Timestamp: at}); err != nil {
		t.Fatalf("InsertOdometerReading() failed: %v", err)
	}

	readings, err := db.ListOdometerReadings(ctx, "u1")
	if err != nil {
		t.Fatalf("ListOdometerReadings() failed: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
	if !readings[0].Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", readings[0].Timestamp, at)
	}
}

func TestListFuelEntries(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	entries := []*models.FuelEntry{
		{UserID: "u1", Quantity: 20, Price: 95.5, Timestamp: base},
		{UserID: "u1", Quantity: 15, Price: 0, Timestamp: base.Add(time.Hour)},
	}
	for _, e := range entries {
		if err := db.InsertFuelEntry(ctx, e); err != nil {
			t.Fatalf("InsertFuelEntry() failed: %v", err)
		}
	}

	got, err := db.ListFuelEntries(ctx, "u1")
	if err != nil {
		t.Fatalf("ListFuelEntries() failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(got))
	}
	if got[0].Quantity != 15 || got[1].Quantity != 20 {
		t.Errorf("Expected newest first, got quantities %v, %v", got[0].Quantity, got[1].Quantity)
	}
	if got[1].Price != 95.5 {
		t.Errorf("Price = %v, want 95.5", got[1].Price)
	}
}

func TestListFuelEntries_LenientValues(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	// Rows written by other tools may carry empty, NULL or malformed amounts
	_, err := db.ExecContext(ctx, `
		INSERT INTO fuel_entries (user_id, fuel_quantity, fuel_price, created_at) VALUES
		('u1', '12.5', NULL, '2025-06-01 09:00:00'),
		('u1', 'abc', '', '2025-06-02 09:00:00'),
		('u1', NULL, '101', '2025-06-03 09:00:00')
	`)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := db.ListFuelEntries(ctx, "u1")
	if err != nil {
		t.Fatalf("ListFuelEntries() failed: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(got))
	}

	want := []struct{ qty, price float64 }{
		{0, 101},
		{0, 0},
		{12.5, 0},
	}
	for i, w := range want {
		if got[i].Quantity != w.qty || got[i].Price != w.price {
			t.Errorf("entry %d = (%v, %v), want (%v, %v)", i, got[i].Quantity, got[i].Price, w.qty, w.price)
		}
	}
}

func TestListOdometerReadings_LenientValues(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	// REAL affinity still stores text that does not look like a number
	_, err := db.ExecContext(ctx, `
		INSERT INTO odometer_readings (user_id, reading, created_at) VALUES
		('u1', 1000, '2025-06-01 09:00:00'),
		('u1', 'abc', '2025-06-02 09:00:00'),
		('u1', '1250.5', '2025-06-03 09:00:00')
	`)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := db.ListOdometerReadings(ctx, "u1")
	if err != nil {
		t.Fatalf("ListOdometerReadings() failed: %v", err)
	}

	want := []float64{1250.5, 0, 1000}
	if len(got) != len(want) {
		t.Fatalf("Expected %d readings, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Value != w {
			t.Errorf("reading %d = %v, want %v", i, got[i].Value, w)
		}
	}
}

func TestReadingValue(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{12.5, 12.5},
		{int64(42000), 42000},
		{"310.25", 310.25},
		{[]byte("77"), 77},
		{"abc", 0},
		{nil, 0},
	}

	for _, tt := range tests {
		if got := readingValue(tt.in); got != tt.want {
			t.Errorf("readingValue(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestListOdometerReadings_SkipsBadTimestamps(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO odometer_readings (user_id, reading, created_at) VALUES
		('u1', 100, 'yesterday'),
		('u1', 200, '2025-06-02 09:00:00')
	`)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := db.ListOdometerReadings(ctx, "u1")
	if err != nil {
		t.Fatalf("ListOdometerReadings() failed: %v", err)
	}

	if len(got) != 1 || got[0].Value != 200 {
		t.Errorf("Expected only the parseable reading, got %+v", got)
	}
}

func TestListEmpty(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	readings, err := db.ListOdometerReadings(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListOdometerReadings() failed: %v", err)
	}
	entries, err := db.ListFuelEntries(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListFuelEntries() failed: %v", err)
	}

	if len(readings) != 0 || len(entries) != 0 {
		t.Errorf("Expected no events, got %d readings and %d entries", len(readings), len(entries))
	}
}

func TestCountEvents(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := db.InsertOdometerReading(ctx, &models.OdometerReading{UserID: "u1", Value: float64(i)}); err != nil {
			t.Fatalf("InsertOdometerReading() failed: %v", err)
		}
	}
	if err := db.InsertFuelEntry(ctx, &models.FuelEntry{UserID: "u1", Quantity: 1}); err != nil {
		t.Fatalf("InsertFuelEntry() failed: %v", err)
	}

	readings, fuel, err := db.CountEvents(ctx, "u1")
	if err != nil {
		t.Fatalf("CountEvents() failed: %v", err)
	}

	if readings != 3 || fuel != 1 {
		t.Errorf("CountEvents() = (%d, %d), want (3, 1)", readings, fuel)
	}
}

func TestListUsers(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	_ = db.InsertOdometerReading(ctx, &models.OdometerReading{UserID: "bob", Value: 1})
	_ = db.InsertFuelEntry(ctx, &models.FuelEntry{UserID: "alice", Quantity: 1})
	_ = db.InsertFuelEntry(ctx, &models.FuelEntry{UserID: "bob", Quantity: 1})

	users, err := db.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() failed: %v", err)
	}

	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Errorf("ListUsers() = %v, want [alice bob]", users)
	}
}

func TestParseTimeString(t *testing.T) {
	want := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"Layout", "2025-07-01 10:00:00.000", true},
		{"NoFraction", "2025-07-01 10:00:00", true},
		{"RFC3339", "2025-07-01T10:00:00Z", true},
		{"RFC3339Offset", "2025-07-01T12:00:00+02:00", true},
		{"GoString", "2025-07-01 10:00:00 +0000 UTC", true},
		{"Invalid", "not a time", false},
		{"Empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTimeString(tt.input)
			if ok != tt.ok {
				t.Fatalf("parseTimeString(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && !got.Equal(want) {
				t.Errorf("parseTimeString(%q) = %v, want %v", tt.input, got, want)
			}
		})
	}
}

func TestNormalizeTimestamps(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO odometer_readings (user_id, reading, created_at) VALUES
		('u1', 100, '2025-06-01T09:00:00Z'),
		('u1', 200, '2025-06-02 09:00:00 +0000 UTC'),
		('u1', 300, '2025-06-03 09:00:00.000'),
		('u1', 400, '2025-07-01T01:00:00+05:30'),
		('u1', 500, '2025-07-02 09:00:00'),
		('u1', 600, 'not a time')
	`)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := db.NormalizeTimestamps(); err != nil {
		t.Fatalf("NormalizeTimestamps() failed: %v", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT created_at FROM odometer_readings ORDER BY reading")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	want := []string{
		"2025-06-01 09:00:00.000",
		"2025-06-02 09:00:00.000",
		"2025-06-03 09:00:00.000",
		// The offset is applied, not dropped
		"2025-06-30 19:30:00.000",
		"2025-07-02 09:00:00.000",
		"not a time",
	}
	var got []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		got = append(got, s)
	}

	if len(got) != len(want) {
		t.Fatalf("Expected %d rows, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d created_at = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNormalizeTimestamps_OffsetSurvivesReopen(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	path := db.Path()

	if _, err := db.ExecContext(ctx, `
		INSERT INTO odometer_readings (user_id, reading, created_at)
		VALUES ('u1', 100, '2025-07-01T01:00:00+05:30')
	`); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	before, err := db.ListOdometerReadings(ctx, "u1")
	if err != nil || len(before) != 1 {
		t.Fatalf("ListOdometerReadings() = %v, %v", before, err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = New(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer db.Close()

	after, err := db.ListOdometerReadings(ctx, "u1")
	if err != nil || len(after) != 1 {
		t.Fatalf("ListOdometerReadings() = %v, %v", after, err)
	}

	want := time.Date(2025, 6, 30, 19, 30, 0, 0, time.UTC)
	if !before[0].Timestamp.Equal(want) || !after[0].Timestamp.Equal(want) {
		t.Errorf("timestamp before=%v after=%v, want %v", before[0].Timestamp, after[0].Timestamp, want)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{20, "20"},
		{95.5, "95.5"},
		{0, "0"},
	}

	for _, tt := range tests {
		if got := formatAmount(tt.in); got != tt.want {
			t.Errorf("formatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
