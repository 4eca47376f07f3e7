// Package secrets overlays configuration with values held in AWS SSM
// Parameter Store.
package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/smallbiznis/grievance-portal/internal/awsclient"
	"github.com/smallbiznis/grievance-portal/internal/config"
	"go.uber.org/zap"
)

const loadTimeout = 10 * time.Second

// Parameter names relative to the configured prefix.
const (
	ParamDatabaseURL         = "database/url"
	ParamStripeSecretKey     = "stripe/secret-key"
	ParamStripeWebhookSecret = "stripe/webhook-secret"
	ParamSessionSecret       = "session/secret"
	ParamAnthropicAPIKey     = "anthropic/api-key"
	ParamPayPalClientID      = "paypal/client-id"
	ParamPayPalClientSecret  = "paypal/client-secret"
	ParamPublicBaseURL       = "frontend/url"
)

// Overlay is used with fx.Decorate. When SSM is disabled the config is
// returned unchanged. It runs before the application logger exists, so it
// logs through the global logger.
func Overlay(cfg config.Config) (config.Config, error) {
	if !cfg.Secrets.SSMEnabled {
		return cfg, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	awsCfg, err := awsclient.LoadConfig(ctx, cfg.AWS)
	if err != nil {
		return cfg, fmt.Errorf("load aws config: %w", err)
	}
	return Apply(ctx, ssm.NewFromConfig(awsCfg), cfg, zap.L())
}

// Apply reads every parameter under the prefix and copies the known ones
// onto cfg. Parameters that are absent leave the env value in place.
func Apply(ctx context.Context, client ssm.GetParametersByPathAPIClient, cfg config.Config, log *zap.Logger) (config.Config, error) {
	if log == nil {
		log = zap.NewNop()
	}
	params, err := Load(ctx, client, cfg.Secrets.SSMPrefix)
	if err != nil {
		return cfg, fmt.Errorf("load ssm parameters: %w", err)
	}

	targets := map[string]*string{
		ParamDatabaseURL:         &cfg.DBURL,
		ParamStripeSecretKey:     &cfg.Payment.StripeSecretKey,
		ParamStripeWebhookSecret: &cfg.Payment.StripeWebhookSecret,
		ParamSessionSecret:       &cfg.SessionSecret,
		ParamAnthropicAPIKey:     &cfg.Responder.AnthropicAPIKey,
		ParamPayPalClientID:      &cfg.Payment.PayPalClientID,
		ParamPayPalClientSecret:  &cfg.Payment.PayPalClientSecret,
		ParamPublicBaseURL:       &cfg.PublicBaseURL,
	}

	applied := make([]string, 0, len(targets))
	for name, target := range targets {
		value, ok := params[name]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		*target = strings.TrimSpace(value)
		applied = append(applied, name)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	log.Info("ssm parameters applied",
		zap.String("prefix", cfg.Secrets.SSMPrefix),
		zap.Strings("parameters", applied),
	)
	return cfg, nil
}

// Load returns parameter values keyed by name with the prefix removed.
func Load(ctx context.Context, client ssm.GetParametersByPathAPIClient, prefix string) (map[string]string, error) {
	prefix = normalizePrefix(prefix)
	out := map[string]string{}

	paginator := ssm.NewGetParametersByPathPaginator(client, &ssm.GetParametersByPathInput{
		Path:           aws.String(prefix),
		Recursive:      aws.Bool(true),
		WithDecryption: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, param := range page.Parameters {
			name := strings.TrimPrefix(aws.ToString(param.Name), prefix)
			if name == "" || param.Value == nil {
				continue
			}
			out[name] = aws.ToString(param.Value)
		}
	}
	return out, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "/grievance-portal/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
