package payment

import (
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/grievance-portal/internal/config"
	"github.com/smallbiznis/grievance-portal/internal/observability/tracing"
	"github.com/smallbiznis/grievance-portal/internal/payment/adapters"
	"github.com/smallbiznis/grievance-portal/internal/payment/adapters/paypal"
	"github.com/smallbiznis/grievance-portal/internal/payment/adapters/sandbox"
	"github.com/smallbiznis/grievance-portal/internal/payment/adapters/stripe"
	"github.com/smallbiznis/grievance-portal/internal/payment/domain"
	"github.com/smallbiznis/grievance-portal/internal/payment/repository"
	"github.com/smallbiznis/grievance-portal/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			stripe.NewFactory(),
			paypal.NewFactory(),
			sandbox.NewFactory(),
		)
	}),
	fx.Provide(NewGateway),
	fx.Provide(webhook.NewService),
)

// NewGateway builds the adapter selected by PAYMENT_PROVIDER.
func NewGateway(cfg config.Config, registry *adapters.Registry, log *zap.Logger) (domain.Gateway, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Payment.Provider))
	gateway, err := registry.NewAdapter(provider, AdapterConfig(cfg))
	if err != nil {
		return nil, err
	}
	log.Info("payment gateway configured",
		zap.String("provider", gateway.Provider()),
		zap.String("environment", cfg.Environment),
	)
	return gateway, nil
}

// AdapterConfig maps the flat application config onto the keys each
// adapter factory reads.
func AdapterConfig(cfg config.Config) domain.AdapterConfig {
	return domain.AdapterConfig{
		Provider:    strings.ToLower(strings.TrimSpace(cfg.Payment.Provider)),
		Environment: cfg.Environment,
		Config: map[string]any{
			"secret_key":     cfg.Payment.StripeSecretKey,
			"webhook_secret": cfg.Payment.StripeWebhookSecret,
			"client_id":      cfg.Payment.PayPalClientID,
			"client_secret":  cfg.Payment.PayPalClientSecret,
			"sandbox":        cfg.Payment.PayPalSandbox,
			"http_client":    tracing.WrapHTTPClient(&http.Client{Timeout: 30 * time.Second}),
		},
	}
}
