package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/haatos/simple-cd/internal/pipeline"
)

// CDKEngine drives the external stack engine through the cdk CLI. Both
// operations block until the CLI reports convergence or failure; cancellation
// and deadlines arrive through the context.
type CDKEngine struct {
	// AppDir is the directory holding the cdk app (cdk.json).
	AppDir string
	// Binary overrides the cdk executable, mostly for tests.
	Binary string
	// Output receives the CLI's stdout/stderr line by line. Credentials are
	// passed through the process environment only and never echoed by cdk.
	Output func(string)
	// Checker, when set, confirms stack convergence against CloudFormation
	// after a deploy exits successfully.
	Checker *ConvergenceChecker
}

func NewCDKEngine(appDir string) *CDKEngine {
	return &CDKEngine{AppDir: appDir, Binary: "cdk"}
}

func (e *CDKEngine) Bootstrap(ctx context.Context, cfg *pipeline.Config) error {
	return e.run(ctx, cfg, e.AppDir, "bootstrap", cfg.Environment())
}

func (e *CDKEngine) Deploy(
	ctx context.Context,
	cfg *pipeline.Config,
	def pipeline.StackDefinition,
) error {
	approval := def.RequireApproval
	if approval == "" {
		approval = pipeline.ApprovalNever
	}
	dir := e.AppDir
	if def.AppDir != "" {
		dir = filepath.Join(e.AppDir, def.AppDir)
	}
	args := []string{"deploy"}
	if def.StackName != "" {
		args = append(args, def.StackName)
	} else {
		args = append(args, "--all")
	}
	args = append(args, "--require-approval", approval)
	if err := e.run(ctx, cfg, dir, args...); err != nil {
		return err
	}
	if e.Checker != nil && def.StackName != "" {
		return e.Checker.Confirm(ctx, def.StackName)
	}
	return nil
}

func (e *CDKEngine) run(
	ctx context.Context,
	cfg *pipeline.Config,
	dir string,
	args ...string,
) error {
	binary := e.Binary
	if binary == "" {
		binary = "cdk"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"AWS_ACCESS_KEY_ID="+cfg.Credentials.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY="+cfg.Credentials.SecretAccessKey,
		"AWS_SESSION_TOKEN="+cfg.Credentials.SessionToken,
		"AWS_REGION="+cfg.Region,
		"AWS_DEFAULT_REGION="+cfg.Region,
		"CDK_DEFAULT_ACCOUNT="+cfg.AccountID,
		"CDK_DEFAULT_REGION="+cfg.Region,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("err starting %s %s: %w", binary, args[0], err)
	}

	var tail tailBuffer
	var wg sync.WaitGroup
	wg.Go(func() {
		e.scan(stdout, &tail)
	})
	wg.Go(func() {
		e.scan(stderr, &tail)
	})
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return pipeline.TimeoutError{
					Detail: fmt.Sprintf("%s %s exceeded the run time budget", binary, args[0]),
				}
			}
			return ctxErr
		}
		return classify(tail.String(), fmt.Sprintf("%s %s: %v", binary, args[0], err))
	}
	return nil
}

func (e *CDKEngine) scan(r io.Reader, tail *tailBuffer) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail.Append(line)
		if e.Output != nil {
			e.Output(line + "\n")
		}
	}
}

const tailLines = 50

// tailBuffer keeps the last lines of CLI output for failure classification.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (t *tailBuffer) Append(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > tailLines {
		t.lines = t.lines[len(t.lines)-tailLines:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}

// classify maps cdk failure output to the pipeline error taxonomy. Unmatched
// failures are returned with the tail of the output attached so the operator
// sees the stack engine's own message verbatim.
func classify(output, fallback string) error {
	combined := output
	switch {
	case containsAny(combined,
		"ExpiredToken",
		"InvalidClientTokenId",
		"SignatureDoesNotMatch",
		"security token included in the request is invalid",
		"Need to perform AWS calls but no credentials",
	):
		return pipeline.AuthenticationError{Detail: lastLine(combined, fallback)}
	case containsAny(combined,
		"AccessDenied",
		"is not authorized to perform",
		"UnauthorizedOperation",
		"insufficient permissions",
	):
		return pipeline.PermissionError{Detail: lastLine(combined, fallback)}
	case containsAny(combined,
		"no such host",
		"connection refused",
		"connection reset",
		"i/o timeout",
		"dial tcp",
		"ETIMEDOUT",
		"ENOTFOUND",
	):
		return pipeline.NetworkError{Detail: lastLine(combined, fallback)}
	case containsAny(combined,
		"ROLLBACK_IN_PROGRESS",
		"ROLLBACK_COMPLETE",
		"UPDATE_ROLLBACK",
		"ROLLBACK_FAILED",
		"stuck in",
	):
		return pipeline.ConvergenceError{Detail: lastLine(combined, fallback)}
	case containsAny(combined,
		"Template format error",
		"Invalid template",
		"ValidationError",
		"does not exist in the repository",
		"image not found",
		"No stacks match",
	):
		return pipeline.ValidationError{Detail: lastLine(combined, fallback)}
	default:
		return errors.New(lastLine(combined, fallback))
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lastLine(output, fallback string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return strings.TrimSpace(lines[i])
		}
	}
	return fallback
}
