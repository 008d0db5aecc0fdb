package models

// DefaultCurrency is used when an order does not name one.
const DefaultCurrency = "INR"

// CreateOrderRequest is the body of POST /payments/create-order.
type CreateOrderRequest struct {
	SessionID int64   `json:"sessionId"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

// Order is the payment order returned by the backend.
type Order struct {
	OrderID  string  `json:"orderId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status,omitempty"`
	KeyID    string  `json:"keyId,omitempty"`
}

// VerifyPaymentRequest is the body of POST /payments/verify.
type VerifyPaymentRequest struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
	Signature string `json:"signature,omitempty"`
}
