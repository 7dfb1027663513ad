// Package cloud loads AWS SDK configuration for the commands that talk to
// AWS directly rather than through synthesized templates.
package cloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// Options selects the account and endpoint to talk to
type Options struct {
	Region  string
	Profile string
	// Endpoint overrides every service endpoint, e.g. for LocalStack
	Endpoint string
}

// LoadConfig resolves credentials from the default chain
func LoadConfig(ctx context.Context, opts Options) (aws.Config, error) {
	var loaders []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loaders = append(loaders, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Endpoint != "" {
		loaders = append(loaders, awsconfig.WithBaseEndpoint(opts.Endpoint))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		return aws.Config{}, fmt.Errorf("no AWS region configured")
	}
	return cfg, nil
}
