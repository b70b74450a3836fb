package service

import (
	"context"
)

const (
	PaymentStatusSuccess  = "success"
	PaymentStatusPending  = "pending"
	PaymentStatusFailure  = "failure"
	PaymentStatusRefunded = "refunded"
)

// ChargeRequest asks the gateway to collect funds. Repeating a request with the
// same IdempotencyKey must not charge twice.
type ChargeRequest struct {
	IdempotencyKey string
	Amount         float64
	Currency       string
	PaymentMethod  string
	CustomerID     string
	Description    string
}

type ChargeResult struct {
	Reference   string
	Status      string
	RedirectURL string
}

type RefundRequest struct {
	IdempotencyKey string
	Reference      string
	Amount         float64
	Reason         string
}

type RefundResult struct {
	Reference string
	Status    string
}

type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}
