package responder

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/smallbiznis/grievance-portal/internal/config"
	"github.com/smallbiznis/grievance-portal/internal/observability/tracing"
	"github.com/smallbiznis/grievance-portal/internal/responder/anthropic"
	"github.com/smallbiznis/grievance-portal/internal/responder/bedrock"
	"github.com/smallbiznis/grievance-portal/internal/responder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("responder",
	fx.Provide(NewGenerator),
)

type Params struct {
	fx.In

	Cfg config.Config
	AWS aws.Config
	Log *zap.Logger
}

func NewGenerator(p Params) (domain.Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(p.Cfg.Responder.Provider))
	switch provider {
	case "bedrock":
		p.Log.Info("response generator configured", zap.String("provider", provider))
		return bedrock.New(p.AWS), nil
	case "anthropic":
		httpClient := tracing.WrapHTTPClient(&http.Client{Timeout: 90 * time.Second})
		client, err := anthropic.New(p.Cfg.Responder.AnthropicAPIKey, p.Cfg.Responder.AnthropicBaseURL, httpClient)
		if err != nil {
			return nil, err
		}
		p.Log.Info("response generator configured", zap.String("provider", provider))
		return client, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrProviderUnknown, provider)
	}
}
