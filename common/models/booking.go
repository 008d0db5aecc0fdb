package models

import "strings"

// SessionStatus is the lifecycle state of a fitness class.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "SCHEDULED"
	SessionOngoing   SessionStatus = "ONGOING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// Session is a bookable fitness class. It is unrelated to the
// authentication session.
type Session struct {
	ID                  int64         `json:"id"`
	Title               string        `json:"title"`
	Description         string        `json:"description,omitempty"`
	InstructorName      string        `json:"instructorName"`
	ScheduledDate       Timestamp     `json:"scheduledDate"`
	Duration            int           `json:"duration"`
	MaxParticipants     int           `json:"maxParticipants"`
	CurrentParticipants int           `json:"currentParticipants"`
	Price               float64       `json:"price"`
	ImageURL            string        `json:"imageUrl,omitempty"`
	MeetLink            string        `json:"meetLink,omitempty"`
	Status              SessionStatus `json:"status"`
}

// SpotsLeft reports the remaining capacity, never below zero.
func (s Session) SpotsLeft() int {
	if left := s.MaxParticipants - s.CurrentParticipants; left > 0 {
		return left
	}
	return 0
}

// Request returns the editable fields of s, the starting point of an update.
func (s Session) Request() SessionRequest {
	return SessionRequest{
		Title:           s.Title,
		Description:     s.Description,
		InstructorName:  s.InstructorName,
		ScheduledDate:   s.ScheduledDate,
		Duration:        s.Duration,
		MaxParticipants: s.MaxParticipants,
		Price:           s.Price,
		ImageURL:        s.ImageURL,
		MeetLink:        s.MeetLink,
	}
}

// SessionRequest is the body for creating or updating a class.
type SessionRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	InstructorName  string    `json:"instructorName"`
	ScheduledDate   Timestamp `json:"scheduledDate"`
	Duration        int       `json:"duration"`
	MaxParticipants int       `json:"maxParticipants"`
	Price           float64   `json:"price"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	MeetLink        string    `json:"meetLink,omitempty"`
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// ParseBookingStatus accepts any letter case.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	status := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case BookingPending, BookingConfirmed, BookingCancelled, BookingCompleted:
		return status, true
	}
	return "", false
}

// CanTransition reports whether an admin may move a booking from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking is a user's reservation of a class.
type Booking struct {
	ID            int64         `json:"id"`
	User          *UserProfile  `json:"user,omitempty"`
	Session       *Session      `json:"session,omitempty"`
	Status        BookingStatus `json:"status"`
	Amount        float64       `json:"amount,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	PaymentID     string        `json:"paymentId,omitempty"`
	OrderID       string        `json:"orderId,omitempty"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	MeetLink      string        `json:"meetLink,omitempty"`
	CreatedAt     Timestamp     `json:"createdAt"`
}

// BookingRequest is the body of POST /sessions/{id}/book.
type BookingRequest struct {
	Notes         string `json:"notes,omitempty"`
	PaymentID     string `json:"paymentId,omitempty"`
	OrderID       string `json:"orderId,omitempty"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
}

// StatusUpdate is the body of PATCH /bookings/{id}/status.
type StatusUpdate struct {
	Status BookingStatus `json:"status"`
}
