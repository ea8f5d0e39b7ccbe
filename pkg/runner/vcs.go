package runner

import (
	"context"
	"os/exec"
	"strings"

	"github.com/ethpandaops/dbbench/pkg/baseline"
)

// DetectVCS returns the git branch and commit of dir. Fields are empty when
// git or the repository is unavailable.
func DetectVCS(ctx context.Context, dir string) baseline.VCSInfo {
	return baseline.VCSInfo{
		Branch: gitOutput(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"),
		Commit: gitOutput(ctx, dir, "rev-parse", "HEAD"),
	}
}

func gitOutput(ctx context.Context, dir string, args ...string) string {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(out))
}
