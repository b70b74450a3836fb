package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"visaconnect/internal/domain/service"
	"visaconnect/pkg/logger"
)

// SandboxGateway settles every charge immediately and remembers results by
// idempotency key, so replays return the first outcome. Replaying a charge
// that has since been refunded reports it as refunded.
type SandboxGateway struct {
	mu      sync.Mutex
	charges map[string]*service.ChargeResult
	refunds map[string]*service.RefundResult
	amounts map[string]float64
	voided  map[string]bool
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		charges: make(map[string]*service.ChargeResult),
		refunds: make(map[string]*service.RefundResult),
		amounts: make(map[string]float64),
		voided:  make(map[string]bool),
	}
}

func (g *SandboxGateway) Charge(ctx context.Context, req service.ChargeRequest) (*service.ChargeResult, error) {
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if res, ok := g.charges[req.IdempotencyKey]; ok {
		cp := *res
		if g.voided[res.Reference] {
			cp.Status = service.PaymentStatusRefunded
		}
		return &cp, nil
	}

	res := &service.ChargeResult{
		Reference: "sbx-" + uuid.New().String(),
		Status:    service.PaymentStatusSuccess,
	}
	g.charges[req.IdempotencyKey] = res
	g.amounts[res.Reference] = req.Amount
	logger.Info("Sandbox charge %s: %.2f %s", res.Reference, req.Amount, req.Currency)

	cp := *res
	return &cp, nil
}

func (g *SandboxGateway) Refund(ctx context.Context, req service.RefundRequest) (*service.RefundResult, error) {
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if res, ok := g.refunds[req.IdempotencyKey]; ok {
		cp := *res
		return &cp, nil
	}

	charged, ok := g.amounts[req.Reference]
	if !ok {
		return nil, fmt.Errorf("unknown payment reference %s", req.Reference)
	}
	if req.Amount > charged {
		return nil, fmt.Errorf("refund %.2f exceeds charged amount %.2f", req.Amount, charged)
	}

	g.amounts[req.Reference] = charged - req.Amount
	g.voided[req.Reference] = true
	res := &service.RefundResult{Reference: req.Reference, Status: service.PaymentStatusRefunded}
	g.refunds[req.IdempotencyKey] = res
	logger.Info("Sandbox refund %s: %.2f", req.Reference, req.Amount)

	cp := *res
	return &cp, nil
}

// Charged reports how much is still held under a reference.
func (g *SandboxGateway) Charged(reference string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.amounts[reference]
}
