package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/haatos/simple-cd/internal/pipeline"
)

// DefaultImageTag matches the tag the stack definition deploys.
const DefaultImageTag = "latest"

type DescribeImagesAPI interface {
	DescribeImages(
		ctx context.Context,
		params *ecr.DescribeImagesInput,
		optFns ...func(*ecr.Options),
	) (*ecr.DescribeImagesOutput, error)
}

// ECRResolver resolves service unit names against the target account's ECR.
// Each service unit name is an ECR repository name; the unit is deployable
// when the repository holds an image with the expected tag.
type ECRResolver struct {
	client DescribeImagesAPI
	tag    string
}

func NewECRResolver(awsCfg aws.Config) *ECRResolver {
	return &ECRResolver{client: ecr.NewFromConfig(awsCfg), tag: DefaultImageTag}
}

func NewECRResolverWithClient(client DescribeImagesAPI, tag string) *ECRResolver {
	if tag == "" {
		tag = DefaultImageTag
	}
	return &ECRResolver{client: client, tag: tag}
}

func (r *ECRResolver) ResolveImage(
	ctx context.Context,
	cfg *pipeline.Config,
	unit string,
) (string, error) {
	out, err := r.client.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RegistryId:     aws.String(cfg.AccountID),
		RepositoryName: aws.String(unit),
		ImageIds: []types.ImageIdentifier{
			{ImageTag: aws.String(r.tag)},
		},
	})
	if err != nil {
		var repoNotFound *types.RepositoryNotFoundException
		var imageNotFound *types.ImageNotFoundException
		switch {
		case errors.As(err, &repoNotFound):
			return "", pipeline.ValidationError{
				Detail: fmt.Sprintf("service unit %s has no ECR repository", unit),
			}
		case errors.As(err, &imageNotFound):
			return "", pipeline.ValidationError{
				Detail: fmt.Sprintf(
					"service unit %s has no %s image", unit, r.tag,
				),
			}
		default:
			return "", pipeline.NetworkError{
				Detail: fmt.Sprintf("describe images for %s: %v", unit, err),
			}
		}
	}
	if len(out.ImageDetails) == 0 {
		return "", pipeline.ValidationError{
			Detail: fmt.Sprintf("service unit %s has no %s image", unit, r.tag),
		}
	}

	detail := out.ImageDetails[0]
	ref := fmt.Sprintf(
		"%s.dkr.ecr.%s.amazonaws.com/%s:%s",
		cfg.AccountID, cfg.Region, unit, r.tag,
	)
	if detail.ImageDigest != nil {
		ref = fmt.Sprintf(
			"%s.dkr.ecr.%s.amazonaws.com/%s@%s",
			cfg.AccountID, cfg.Region, unit, *detail.ImageDigest,
		)
	}
	return ref, nil
}
