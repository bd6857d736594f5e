package awsenv

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/haatos/simple-cd/internal/pipeline"
)

// NewConfig builds an aws.Config scoped to a single pipeline run. The
// credentials come from the run config, never from ambient process state.
func NewConfig(ctx context.Context, cfg *pipeline.Config) (aws.Config, error) {
	awsCfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Credentials.AccessKeyID,
			cfg.Credentials.SecretAccessKey,
			cfg.Credentials.SessionToken,
		)),
	)
	if err != nil {
		return aws.Config{}, pipeline.ConfigurationError{
			Detail: fmt.Sprintf("unable to assemble aws config: %v", err),
		}
	}
	return awsCfg, nil
}

type CallerIdentityAPI interface {
	GetCallerIdentity(
		ctx context.Context,
		params *sts.GetCallerIdentityInput,
		optFns ...func(*sts.Options),
	) (*sts.GetCallerIdentityOutput, error)
}

// VerifyIdentity confirms the credentials are usable and belong to the
// target account before any stage runs against it.
func VerifyIdentity(
	ctx context.Context,
	client CallerIdentityAPI,
	cfg *pipeline.Config,
) error {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "no such host"),
			strings.Contains(msg, "connection refused"),
			strings.Contains(msg, "i/o timeout"):
			return pipeline.NetworkError{Detail: msg}
		default:
			return pipeline.AuthenticationError{Detail: msg}
		}
	}
	if out.Account != nil && *out.Account != cfg.AccountID {
		return pipeline.ConfigurationError{
			Detail: fmt.Sprintf(
				"credentials belong to account %s, target is %s",
				*out.Account, cfg.AccountID,
			),
		}
	}
	return nil
}
