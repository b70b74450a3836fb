package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"visaconnect/internal/domain/service"
	"visaconnect/pkg/logger"
)

// MidtransGateway talks to the Midtrans Snap and Core HTTP APIs. The
// idempotency key is used as the Midtrans order id for charges and as the
// refund_key for refunds, which Midtrans deduplicates itself.
type MidtransGateway struct {
	serverKey string
	snapURL   string
	apiURL    string
	client    *http.Client
}

func NewMidtransGateway(serverKey string, isProduction bool) *MidtransGateway {
	g := &MidtransGateway{
		serverKey: serverKey,
		snapURL:   "https://app.sandbox.midtrans.com/snap/v1",
		apiURL:    "https://api.sandbox.midtrans.com/v2",
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	if isProduction {
		g.snapURL = "https://app.midtrans.com/snap/v1"
		g.apiURL = "https://api.midtrans.com/v2"
	}
	return g
}

type snapRequest struct {
	TransactionDetails transactionDetails `json:"transaction_details"`
	CustomerDetails    customerDetails    `json:"customer_details"`
	ItemDetails        []itemDetail       `json:"item_details"`
	EnabledPayments    []string           `json:"enabled_payments,omitempty"`
}

type transactionDetails struct {
	OrderID     string  `json:"order_id"`
	GrossAmount float64 `json:"gross_amount"`
}

type customerDetails struct {
	FirstName string `json:"first_name"`
}

type itemDetail struct {
	ID       string  `json:"id"`
	Price    float64 `json:"price"`
	Quantity int32   `json:"quantity"`
	Name     string  `json:"name"`
}

type snapResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

type statusResponse struct {
	StatusCode        string `json:"status_code"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
}

// Charge returns success when the order has already settled; otherwise it
// opens a Snap transaction and returns pending with the payment page URL.
func (g *MidtransGateway) Charge(ctx context.Context, req service.ChargeRequest) (*service.ChargeResult, error) {
	if existing, err := g.status(ctx, req.IdempotencyKey); err == nil {
		status := mapStatus(existing.TransactionStatus)
		if status != service.PaymentStatusPending {
			logger.Info("Midtrans order %s already %s", req.IdempotencyKey, existing.TransactionStatus)
			return &service.ChargeResult{Reference: req.IdempotencyKey, Status: status}, nil
		}
	}

	body := snapRequest{
		TransactionDetails: transactionDetails{
			OrderID:     req.IdempotencyKey,
			GrossAmount: req.Amount,
		},
		CustomerDetails: customerDetails{FirstName: req.CustomerID},
		ItemDetails: []itemDetail{{
			ID:       req.IdempotencyKey,
			Price:    req.Amount,
			Quantity: 1,
			Name:     truncate(req.Description, 50),
		}},
	}
	if req.PaymentMethod != "" {
		body.EnabledPayments = []string{req.PaymentMethod}
	}

	var snap snapResponse
	status, raw, err := g.do(ctx, http.MethodPost, g.snapURL+"/transactions", body, &snap)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		logger.Error("Midtrans API error: %s", string(raw))
		return nil, fmt.Errorf("midtrans API error: status %d", status)
	}

	logger.Info("Midtrans payment created for order %s", req.IdempotencyKey)
	return &service.ChargeResult{
		Reference:   req.IdempotencyKey,
		Status:      service.PaymentStatusPending,
		RedirectURL: snap.RedirectURL,
	}, nil
}

func (g *MidtransGateway) Refund(ctx context.Context, req service.RefundRequest) (*service.RefundResult, error) {
	body := map[string]interface{}{
		"refund_key": req.IdempotencyKey,
		"amount":     req.Amount,
		"reason":     truncate(req.Reason, 255),
	}

	var resp statusResponse
	status, raw, err := g.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s/refund", g.apiURL, req.Reference), body, &resp)
	if err != nil {
		return nil, err
	}
	code, _ := strconv.Atoi(resp.StatusCode)
	if status != http.StatusOK || (code != http.StatusOK && code != 0) {
		logger.Error("Midtrans refund error: %s", string(raw))
		return nil, fmt.Errorf("midtrans refund error: status %d", status)
	}

	return &service.RefundResult{Reference: req.Reference, Status: service.PaymentStatusRefunded}, nil
}

func (g *MidtransGateway) status(ctx context.Context, orderID string) (*statusResponse, error) {
	var resp statusResponse
	status, _, err := g.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s/status", g.apiURL, orderID), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || resp.StatusCode == "404" {
		return nil, fmt.Errorf("order %s not found", orderID)
	}
	return &resp, nil
}

func (g *MidtransGateway) do(ctx context.Context, method, url string, body, out interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %v", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(g.serverKey+":")))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %v", err)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, raw, fmt.Errorf("failed to parse response: %v", err)
		}
	}
	return resp.StatusCode, raw, nil
}

// mapStatus maps a Midtrans transaction_status to the gateway status.
func mapStatus(transactionStatus string) string {
	switch transactionStatus {
	case "settlement", "capture":
		return service.PaymentStatusSuccess
	case "cancel", "deny", "expire", "failure":
		return service.PaymentStatusFailure
	case "refund", "partial_refund":
		return service.PaymentStatusRefunded
	}
	return service.PaymentStatusPending
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
