package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestamp_UnmarshalLocalDateTime(t *testing.T) {
	var s Session
	data := []byte(`{"id":7,"title":"HIIT","scheduledDate":"2024-03-15T18:30:00","duration":45}`)
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("failed to unmarshal session: %v", err)
	}

	want := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
	if !s.ScheduledDate.Equal(want) {
		t.Errorf("ScheduledDate: expected %v, got %v", want, s.ScheduledDate.Time)
	}
}

func TestTimestamp_UnmarshalVariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339", `"2024-03-15T18:30:00Z"`, time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC), false},
		{"rfc3339 with offset", `"2024-03-15T20:30:00+02:00"`, time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC), false},
		{"fractional seconds", `"2024-03-15T18:30:00.123"`, time.Date(2024, 3, 15, 18, 30, 0, 123000000, time.UTC), false},
		{"minutes only", `"2024-03-15T18:30"`, time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC), false},
		{"null", `null`, time.Time{}, false},
		{"empty", `""`, time.Time{}, false},
		{"garbage", `"next tuesday"`, time.Time{}, true},
		{"number", `1710527400`, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := ts.UnmarshalJSON([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %s", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ts.Equal(tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ts.Time)
			}
		})
	}
}

func TestTimestamp_MarshalJSON(t *testing.T) {
	ts := Timestamp{Time: time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)}
	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if string(data) != `"2024-03-15T18:30:00"` {
		t.Errorf("expected local date-time, got %s", data)
	}

	data, err = json.Marshal(Timestamp{})
	if err != nil {
		t.Fatalf("failed to marshal zero value: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("expected null for zero timestamp, got %s", data)
	}
}

func TestSession_SpotsLeft(t *testing.T) {
	if got := (Session{MaxParticipants: 20, CurrentParticipants: 5}).SpotsLeft(); got != 15 {
		t.Errorf("expected 15 spots, got %d", got)
	}
	if got := (Session{MaxParticipants: 10, CurrentParticipants: 12}).SpotsLeft(); got != 0 {
		t.Errorf("overbooked class should report 0 spots, got %d", got)
	}
}

func TestParseBookingStatus(t *testing.T) {
	tests := []struct {
		input string
		want  BookingStatus
		ok    bool
	}{
		{"PENDING", BookingPending, true},
		{"confirmed", BookingConfirmed, true},
		{" Cancelled ", BookingCancelled, true},
		{"completed", BookingCompleted, true},
		{"refunded", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseBookingStatus(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseBookingStatus(%q) = (%q, %v), expected (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBookingStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to BookingStatus
		want     bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingCompleted, false},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingPending, false},
		{BookingCompleted, BookingCancelled, false},
		{BookingCancelled, BookingConfirmed, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestGrant_DecodesBackendShape(t *testing.T) {
	data := []byte(`{"token":"a.b.c","refreshToken":"r-1","user":{"id":3,"name":"Asha","email":"asha@example.com","role":"ROLE_ADMIN"}}`)

	var g Grant
	if err := json.Unmarshal(data, &g); err != nil {
		t.Fatalf("failed to unmarshal grant: %v", err)
	}
	if g.Token != "a.b.c" || g.RefreshToken != "r-1" {
		t.Errorf("unexpected tokens: %+v", g)
	}
	if g.User == nil || g.User.Role != "ROLE_ADMIN" || g.User.ID != 3 {
		t.Errorf("unexpected user: %+v", g.User)
	}
}

func TestProduct_Request(t *testing.T) {
	p := Product{ID: 4, Name: "Kettlebell", Price: 1499, Stock: 3, Brand: "Iron", Category: &Category{ID: 2}}
	req := p.Request()

	if req.Name != "Kettlebell" || req.Price != 1499 || req.Stock != 3 || req.Brand != "Iron" {
		t.Errorf("unexpected request: %+v", req)
	}
	if req.CategoryID != 2 {
		t.Errorf("CategoryID: expected 2, got %d", req.CategoryID)
	}
	if (Product{Name: "Mat"}).Request().CategoryID != 0 {
		t.Error("expected no category id for an uncategorized product")
	}
}

func TestSession_Request(t *testing.T) {
	when := Timestamp{Time: time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)}
	s := Session{ID: 9, Title: "HIIT", InstructorName: "Asha", ScheduledDate: when, Duration: 45, MaxParticipants: 12, CurrentParticipants: 5, Price: 300}
	req := s.Request()

	if req.Title != "HIIT" || req.InstructorName != "Asha" || req.Duration != 45 || req.MaxParticipants != 12 || req.Price != 300 {
		t.Errorf("unexpected request: %+v", req)
	}
	if !req.ScheduledDate.Equal(when.Time) {
		t.Errorf("ScheduledDate: expected %v, got %v", when.Time, req.ScheduledDate.Time)
	}
}
