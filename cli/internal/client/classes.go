package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/phoenixfitness/phoenix-stack/common/models"
)

// ClassService covers /sessions, the bookable fitness classes.
type ClassService struct {
	c *Client
}

// Classes returns the class endpoints.
func (c *Client) Classes() *ClassService {
	return &ClassService{c: c}
}

func (s *ClassService) List(ctx context.Context) ([]models.Session, error) {
	return list[models.Session](ctx, s.c, "/sessions", nil)
}

// Upcoming returns scheduled classes that have not started yet.
func (s *ClassService) Upcoming(ctx context.Context) ([]models.Session, error) {
	return list[models.Session](ctx, s.c, "/sessions/upcoming", nil)
}

func (s *ClassService) Get(ctx context.Context, id int64) (*models.Session, error) {
	if err := validateID("session", id); err != nil {
		return nil, err
	}
	var cls models.Session
	if err := s.c.get(ctx, fmt.Sprintf("/sessions/%d", id), nil, &cls); err != nil {
		return nil, err
	}
	return &cls, nil
}

// Book reserves a place in class id for the signed-in user.
func (s *ClassService) Book(ctx context.Context, id int64, req models.BookingRequest) (*models.Booking, error) {
	if err := validateID("session", id); err != nil {
		return nil, err
	}
	var b models.Booking
	if err := s.c.write(ctx, http.MethodPost, fmt.Sprintf("/sessions/%d/book", id), req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *ClassService) Create(ctx context.Context, req models.SessionRequest) (*models.Session, error) {
	if err := validateSession(req); err != nil {
		return nil, err
	}
	var cls models.Session
	if err := s.c.write(ctx, http.MethodPost, "/sessions", req, &cls); err != nil {
		return nil, err
	}
	return &cls, nil
}

func (s *ClassService) Update(ctx context.Context, id int64, req models.SessionRequest) (*models.Session, error) {
	if err := validateID("session", id); err != nil {
		return nil, err
	}
	if err := validateSession(req); err != nil {
		return nil, err
	}
	var cls models.Session
	if err := s.c.write(ctx, http.MethodPut, fmt.Sprintf("/sessions/%d", id), req, &cls); err != nil {
		return nil, err
	}
	return &cls, nil
}

func (s *ClassService) Delete(ctx context.Context, id int64) error {
	if err := validateID("session", id); err != nil {
		return err
	}
	return s.c.write(ctx, http.MethodDelete, fmt.Sprintf("/sessions/%d", id), nil, nil)
}

// BookingService covers /bookings.
type BookingService struct {
	c *Client
}

// Bookings returns the booking endpoints.
func (c *Client) Bookings() *BookingService {
	return &BookingService{c: c}
}

// ForUser returns the signed-in user's bookings.
func (s *BookingService) ForUser(ctx context.Context) ([]models.Booking, error) {
	return list[models.Booking](ctx, s.c, "/bookings/user", nil)
}

// List returns every booking. Admin only.
func (s *BookingService) List(ctx context.Context) ([]models.Booking, error) {
	return list[models.Booking](ctx, s.c, "/bookings", nil)
}

// UpdateStatus moves booking id to status. Admin only.
func (s *BookingService) UpdateStatus(ctx context.Context, id int64, status string) (*models.Booking, error) {
	if err := validateID("booking", id); err != nil {
		return nil, err
	}
	st, ok := models.ParseBookingStatus(status)
	if !ok {
		return nil, invalid("unknown booking status %q", status)
	}
	var b models.Booking
	if err := s.c.write(ctx, http.MethodPatch, fmt.Sprintf("/bookings/%d/status", id), models.StatusUpdate{Status: st}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
