// Package aws holds thin wrappers around the AWS SDK clients the storefront uses.
package aws

import (
	"context"
	"fmt"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// localStackKey is accepted by LocalStack for both the access key and secret.
const localStackKey = "test"

// LoadAWSConfig loads the AWS config for the storefront's clients. When
// AWS_ENDPOINT is set (LocalStack) every client targets that endpoint and
// signs with static credentials, taken from AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY or LocalStack's defaults. Otherwise the default
// credential chain applies.
func LoadAWSConfig(ctx context.Context) (sdkaws.Config, error) {
	endpoint := os.Getenv("AWS_ENDPOINT")

	var opts []func(*config.LoadOptions) error
	if region := os.Getenv("AWS_REGION"); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if endpoint != "" {
		opts = append(opts, config.WithCredentialsProvider(localCredentials()))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}
	if endpoint != "" {
		cfg.BaseEndpoint = sdkaws.String(endpoint)
	}
	return cfg, nil
}

func localCredentials() credentials.StaticCredentialsProvider {
	key, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if key == "" || secret == "" {
		key, secret = localStackKey, localStackKey
	}
	return credentials.NewStaticCredentialsProvider(key, secret, "")
}
