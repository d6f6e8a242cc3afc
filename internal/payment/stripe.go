package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gm-occasions/internal/config"
	"gm-occasions/internal/logger"
	"gm-occasions/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

var ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")

// StripeGateway is the alternate card processor. It confirms a
// PaymentIntent in a single call using the client-side payment method token.
type StripeGateway struct {
	client *client.API
	cfg    config.PaymentConfig
	log    *logger.Logger
}

func NewStripeGateway(cfg config.PaymentConfig, log *logger.Logger) (*StripeGateway, error) {
	if cfg.StripeSecretKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY not set")
		return nil, ErrStripeClientInitFailed
	}
	sc := client.New(cfg.StripeSecretKey, nil)
	log.Info("STRIPE", "Stripe client initialized")
	return &StripeGateway{client: sc, cfg: cfg, log: log}, nil
}

func (g *StripeGateway) Charge(ctx context.Context, req models.ChargeRequest) (*models.ChargeResult, error) {
	if err := validateChargeRequest(req); err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = g.cfg.Currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(int64(req.AmountCents)),
		Currency:           stripe.String(currency),
		PaymentMethod:      stripe.String(req.SourceToken),
		Description:        stripe.String(req.Note),
		Confirm:            stripe.Bool(true),
		PaymentMethodTypes: []*string{stripe.String("card")},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	if req.ReferenceID != "" {
		params.AddMetadata("reference_code", req.ReferenceID)
	}

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			if stripeErr.Type == stripe.ErrorTypeCard || stripeErr.Type == stripe.ErrorTypeInvalidRequest {
				g.log.LogPayment("CHARGE", "", fmt.Sprintf("stripe declined: %s", stripeErr.Code))
				return nil, &DeclineError{Code: string(stripeErr.Code), Detail: stripeErr.Msg}
			}
		}
		// API or transport failure after the intent may have been created
		return nil, fmt.Errorf("%w: %v", ErrUnknownOutcome, err)
	}

	result := &models.ChargeResult{
		PaymentID: pi.ID,
		CreatedAt: timeFromUnix(pi.Created),
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Status = StatusCompleted
	case stripe.PaymentIntentStatusProcessing:
		result.Status = StatusPending
	default:
		g.log.LogPayment("CHARGE", pi.ID, fmt.Sprintf("payment intent ended in status %s", pi.Status))
		return nil, &DeclineError{Detail: fmt.Sprintf("payment not completed: %s", pi.Status)}
	}

	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		if charge, err := g.client.Charges.Get(pi.LatestCharge.ID, nil); err == nil {
			result.ReceiptURL = charge.ReceiptURL
		}
	}

	g.log.LogPayment("CHARGE", pi.ID, fmt.Sprintf("stripe payment %s for %d %s", result.Status, req.AmountCents, currency))
	return result, nil
}

func (g *StripeGateway) Refund(ctx context.Context, paymentID string, amountCents int, idempotencyKey string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentID),
		Amount:        stripe.Int64(int64(amountCents)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	refund, err := g.client.Refunds.New(params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownOutcome, err)
	}
	g.log.LogPayment("REFUND", paymentID, fmt.Sprintf("stripe refund %s", refund.Status))
	return nil
}

func timeFromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
