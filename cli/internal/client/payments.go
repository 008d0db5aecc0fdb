package client

import (
	"context"
	"net/http"

	"github.com/phoenixfitness/phoenix-stack/common/models"
)

// PaymentService covers /payments.
type PaymentService struct {
	c *Client
}

// Payments returns the payment endpoints.
func (c *Client) Payments() *PaymentService {
	return &PaymentService{c: c}
}

// CreateOrder opens a payment order. An empty currency means INR.
func (s *PaymentService) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	if req.Currency == "" {
		req.Currency = models.DefaultCurrency
	}
	if err := validateOrder(req); err != nil {
		return nil, err
	}
	var o models.Order
	if err := s.c.write(ctx, http.MethodPost, "/payments/create-order", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Verify confirms a completed payment with the backend.
func (s *PaymentService) Verify(ctx context.Context, req models.VerifyPaymentRequest) error {
	if err := validateVerification(req); err != nil {
		return err
	}
	return s.c.write(ctx, http.MethodPost, "/payments/verify", req, nil)
}
