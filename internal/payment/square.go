package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"gm-occasions/internal/config"
	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"
)

// SquareGateway charges cards through the Square Payments REST API. Square
// has no Go SDK in use here; the API surface needed is two endpoints.
type SquareGateway struct {
	cfg    config.PaymentConfig
	client *http.Client
	log    *logger.Logger
}

func NewSquareGateway(cfg config.PaymentConfig, client *http.Client, log *logger.Logger) *SquareGateway {
	if client == nil {
		client = &http.Client{Timeout: cfg.ChargeTimeout}
	}
	return &SquareGateway{cfg: cfg, client: client, log: log}
}

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squarePaymentRequest struct {
	SourceID       string      `json:"source_id"`
	IdempotencyKey string      `json:"idempotency_key"`
	AmountMoney    squareMoney `json:"amount_money"`
	LocationID     string      `json:"location_id"`
	ReferenceID    string      `json:"reference_id,omitempty"`
	Note           string      `json:"note,omitempty"`
	Autocomplete   bool        `json:"autocomplete"`
}

type squareRefundRequest struct {
	IdempotencyKey string      `json:"idempotency_key"`
	PaymentID      string      `json:"payment_id"`
	AmountMoney    squareMoney `json:"amount_money"`
}

type squareError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type squarePaymentResponse struct {
	Payment *struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		ReceiptURL string `json:"receipt_url"`
		CreatedAt  string `json:"created_at"`
	} `json:"payment"`
	Refund *struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"refund"`
	Errors []squareError `json:"errors"`
}

// Charge creates an auto-completed Square payment attributed to the
// configured merchant location.
func (g *SquareGateway) Charge(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
	if err := validateChargeRequest(req); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = g.cfg.Currency
	}

	body := squarePaymentRequest{
		SourceID:       req.SourceToken,
		IdempotencyKey: req.IdempotencyKey,
		AmountMoney:    squareMoney{Amount: int64(req.AmountCents), Currency: currency},
		LocationID:     g.cfg.SquareLocationID,
		ReferenceID:    req.ReferenceID,
		Note:           req.Note,
		Autocomplete:   true,
	}

	result, err := g.post(ctx, "/v2/payments", body)
	if err != nil {
		return nil, err
	}

	if result.Payment == nil {
		return nil, &DeclineError{Detail: "payment missing from gateway response"}
	}

	created, _ := time.Parse(time.RFC3339, result.Payment.CreatedAt)
	g.log.LogPayment("CHARGE", result.Payment.ID,
		fmt.Sprintf("square payment %s for %d %s", result.Payment.Status, req.AmountCents, currency))

	return &models.ChargeResult{
		PaymentID:  result.Payment.ID,
		Status:     result.Payment.Status,
		ReceiptURL: result.Payment.ReceiptURL,
		CreatedAt:  created,
	}, nil
}

// Refund reverses a completed payment, used when a booking lost the
// capacity race after its charge had already settled.
func (g *SquareGateway) Refund(ctx context.Context, paymentID string, amountCents int, idempotencyKey string) error {
	body := squareRefundRequest{
		IdempotencyKey: idempotencyKey,
		PaymentID:      paymentID,
		AmountMoney:    squareMoney{Amount: int64(amountCents), Currency: g.cfg.Currency},
	}

	result, err := g.post(ctx, "/v2/refunds", body)
	if err != nil {
		return err
	}
	if result.Refund == nil {
		return &DeclineError{Detail: "refund missing from gateway response"}
	}

	g.log.LogPayment("REFUND", paymentID, fmt.Sprintf("square refund %s", result.Refund.Status))
	return nil
}

func (g *SquareGateway) post(ctx context.Context, path string, body interface{}) (*squarePaymentResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode square request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.SquareBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build square request: %w", err)
	}
	httpReq.Header.Set("Square-Version", g.cfg.SquareVersion)
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.SquareAccessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// The request may have reached Square before the failure: the
		// outcome is unknown, not a decline.
		return nil, fmt.Errorf("%w: %v", ErrUnknownOutcome, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnknownOutcome, err)
	}

	var result squarePaymentResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnknownOutcome, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: gateway returned %d", ErrUnknownOutcome, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		decline := &DeclineError{Detail: "payment processing failed"}
		if len(result.Errors) > 0 {
			decline.Code = result.Errors[0].Code
			decline.Detail = result.Errors[0].Detail
		}
		return nil, decline
	}
	return &result, nil
}
