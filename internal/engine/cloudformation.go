package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/haatos/simple-cd/internal/pipeline"
)

type DescribeStacksAPI interface {
	DescribeStacks(
		ctx context.Context,
		params *cloudformation.DescribeStacksInput,
		optFns ...func(*cloudformation.Options),
	) (*cloudformation.DescribeStacksOutput, error)
}

// ConvergenceChecker confirms against CloudFormation that a deployed stack
// actually reached a stable complete state, independent of the CLI's exit
// code.
type ConvergenceChecker struct {
	client       DescribeStacksAPI
	pollInterval time.Duration
}

func NewConvergenceChecker(awsCfg aws.Config) *ConvergenceChecker {
	return &ConvergenceChecker{
		client:       cloudformation.NewFromConfig(awsCfg),
		pollInterval: 10 * time.Second,
	}
}

func NewConvergenceCheckerWithClient(
	client DescribeStacksAPI,
	pollInterval time.Duration,
) *ConvergenceChecker {
	return &ConvergenceChecker{client: client, pollInterval: pollInterval}
}

// Confirm polls the stack until it leaves any in-progress state. Rollback
// and failed states are ConvergenceErrors; the failed update is expected to
// have left the stack in its own last-known rollback state.
func (c *ConvergenceChecker) Confirm(ctx context.Context, stackName string) error {
	for {
		out, err := c.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
			StackName: aws.String(stackName),
		})
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return pipeline.TimeoutError{
					Detail: fmt.Sprintf("stack %s did not stabilize in time", stackName),
				}
			}
			return pipeline.NetworkError{
				Detail: fmt.Sprintf("describe stack %s: %v", stackName, err),
			}
		}
		if len(out.Stacks) == 0 {
			return pipeline.ValidationError{
				Detail: fmt.Sprintf("stack %s does not exist", stackName),
			}
		}

		status := out.Stacks[0].StackStatus
		switch {
		case isStableComplete(status):
			return nil
		case isRollbackOrFailed(status):
			reason := string(status)
			if out.Stacks[0].StackStatusReason != nil {
				reason = fmt.Sprintf("%s: %s", status, *out.Stacks[0].StackStatusReason)
			}
			return pipeline.ConvergenceError{
				Detail: fmt.Sprintf("stack %s did not converge (%s)", stackName, reason),
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return pipeline.TimeoutError{
					Detail: fmt.Sprintf("stack %s did not stabilize in time", stackName),
				}
			}
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func isStableComplete(status types.StackStatus) bool {
	switch status {
	case types.StackStatusCreateComplete,
		types.StackStatusUpdateComplete,
		types.StackStatusImportComplete:
		return true
	}
	return false
}

func isRollbackOrFailed(status types.StackStatus) bool {
	s := string(status)
	return strings.Contains(s, "ROLLBACK") || strings.HasSuffix(s, "_FAILED")
}
