package client

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/phoenixfitness/phoenix-stack/common/models"
)

// ErrInvalidRequest marks a request rejected before it was sent.
var ErrInvalidRequest = errors.New("invalid request")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func validateID(kind string, id int64) error {
	if id <= 0 {
		return invalid("%s id must be positive", kind)
	}
	return nil
}

func validateProduct(req models.ProductRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return invalid("product name is required")
	}
	if req.Price <= 0 {
		return invalid("product price must be positive")
	}
	if req.OriginalPrice < 0 {
		return invalid("original price cannot be negative")
	}
	if req.Stock < 0 {
		return invalid("stock cannot be negative")
	}
	return nil
}

func validateCategory(req models.CategoryRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return invalid("category name is required")
	}
	return nil
}

func validateSession(req models.SessionRequest) error {
	n := utf8.RuneCountInString(strings.TrimSpace(req.Title))
	switch {
	case n < 2 || n > 200:
		return invalid("title must be between 2 and 200 characters")
	case strings.TrimSpace(req.InstructorName) == "":
		return invalid("instructor name is required")
	case req.ScheduledDate.IsZero():
		return invalid("scheduled date is required")
	case req.Duration <= 0:
		return invalid("duration must be positive")
	case req.MaxParticipants <= 0:
		return invalid("max participants must be positive")
	case req.Price <= 0:
		return invalid("price must be positive")
	}
	return nil
}

func validateOrder(req models.CreateOrderRequest) error {
	if err := validateID("session", req.SessionID); err != nil {
		return err
	}
	if req.Amount <= 0 {
		return invalid("amount must be positive")
	}
	return nil
}

func validateVerification(req models.VerifyPaymentRequest) error {
	if strings.TrimSpace(req.PaymentID) == "" {
		return invalid("payment id is required")
	}
	if strings.TrimSpace(req.OrderID) == "" {
		return invalid("order id is required")
	}
	return nil
}
