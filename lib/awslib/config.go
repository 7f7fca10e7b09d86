package awslib

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/artie-labs/warehouse/lib/stringutil"
)

type ConfigArgs struct {
	Region string
	// Static credentials are optional, the default chain (env, shared config, instance role) is used otherwise.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	// RoleARN is assumed on top of the resolved credentials when set.
	RoleARN string
}

// LoadConfig resolves the AWS config, falling back to AWS_REGION when no region is configured.
func LoadConfig(ctx context.Context, args ConfigArgs) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(stringutil.Override(os.Getenv("AWS_REGION"), args.Region))}
	if args.AccessKeyID != "" && args.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(args.AccessKeyID, args.SecretAccessKey, args.SessionToken),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}

	if args.RoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), args.RoleARN, func(opts *stscreds.AssumeRoleOptions) {
			opts.RoleSessionName = "warehouse"
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return cfg, nil
}
