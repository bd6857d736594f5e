package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// repositoryDir is the directory name git clone creates for a repository.
func repositoryDir(repository string) string {
	repoDir := repository[strings.LastIndex(repository, "/")+1:]
	return strings.TrimSuffix(repoDir, ".git")
}

func cloneRepository(ctx context.Context, runDir, repository, branch string) error {
	if err := os.MkdirAll(runDir, os.ModePerm); err != nil {
		return err
	}

	cloneCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(
		cloneCtx, "git", "clone", "-b", branch, "--single-branch", repository,
	)
	cmd.Dir = runDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone %s: %w: %s", repository, err, string(out))
	}
	return nil
}
