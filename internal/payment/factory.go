package payment

import (
	"fmt"
	"net/http"

	"gm-occasions/internal/config"
	"gm-occasions/internal/logger"
)

// NewGateway selects the configured card processor.
func NewGateway(cfg config.PaymentConfig, client *http.Client, log *logger.Logger) (Gateway, error) {
	switch cfg.Provider {
	case "square", "":
		if cfg.SquareAccessToken == "" {
			return nil, fmt.Errorf("SQUARE_ACCESS_TOKEN not set")
		}
		return NewSquareGateway(cfg, client, log), nil
	case "stripe":
		return NewStripeGateway(cfg, log)
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.Provider)
	}
}
