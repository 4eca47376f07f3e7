// Package awsclient loads the shared AWS SDK configuration used by the SSM,
// SQS and Bedrock clients.
package awsclient

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/smallbiznis/grievance-portal/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("awsclient",
	fx.Provide(func(cfg config.Config) (aws.Config, error) {
		return LoadConfig(context.Background(), cfg.AWS)
	}),
)

// LoadConfig uses static credentials when both keys are set and falls back
// to the default provider chain otherwise.
func LoadConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.Region),
	}
	if strings.TrimSpace(cfg.AccessKeyID) != "" && strings.TrimSpace(cfg.SecretAccessKey) != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	return awsConfig.LoadDefaultConfig(ctx, opts...)
}
