package device

import (
	"context"
	"os"
	"strings"

	"nvme-wipe-engine/internal/runner"
)

// SystemInfo identifies the host the erase ran on. Fields that cannot be
// collected degrade to "Unknown"; system info never fails the workflow.
type SystemInfo struct {
	Hostname      string `json:"hostname"`
	KernelVersion string `json:"kernel_version"`
	SystemUUID    string `json:"system_uuid"`
}

// CollectSystemInfo gathers hostname, kernel version and machine UUID.
func CollectSystemInfo(ctx context.Context, run runner.Runner) *SystemInfo {
	info := &SystemInfo{
		Hostname:      "Unknown",
		KernelVersion: "Unknown",
		SystemUUID:    "Unknown",
	}

	if host, err := os.Hostname(); err == nil {
		info.Hostname = host
	}

	if res, err := run.Run(ctx, "uname", "-r"); err == nil && res.Success() {
		info.KernelVersion = strings.TrimSpace(res.Output)
	}

	if data, err := os.ReadFile("/etc/machine-id"); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			info.SystemUUID = id
		}
	} else if res, err := run.Run(ctx, "dmidecode", "-s", "system-uuid"); err == nil && res.Success() {
		info.SystemUUID = strings.TrimSpace(res.Output)
	}

	return info
}
