package plan

import (
	"context"
	"fmt"
	"strings"

	"nvme-wipe-engine/internal/runner"
)

// SafetyCheck looks for conditions that make erasing the device suspect:
// the namespace being mounted or held open by another process. Findings are
// surfaced as warnings attached to the run; they never block by themselves.
// Missing check tools are skipped silently.
func SafetyCheck(ctx context.Context, run runner.Runner, namespacePath string) []string {
	var warnings []string

	if res, err := run.Run(ctx, "findmnt", "-n", "-o", "TARGET", "--source", namespacePath); err == nil {
		if res.Success() && strings.TrimSpace(res.Output) != "" {
			warnings = append(warnings,
				fmt.Sprintf("%s is mounted at %s", namespacePath, strings.TrimSpace(res.Output)))
		}
	}

	if res, err := run.Run(ctx, "lsof", namespacePath); err == nil {
		if res.Success() && strings.TrimSpace(res.Output) != "" {
			warnings = append(warnings,
				fmt.Sprintf("%s is held open by another process", namespacePath))
		}
	}

	return warnings
}
