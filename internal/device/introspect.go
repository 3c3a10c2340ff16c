package device

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"nvme-wipe-engine/internal/runner"
)

// idCtrl mirrors the JSON output of `nvme id-ctrl -o json`. Only the fields
// the engine decodes are declared; the rest of the descriptor is ignored.
type idCtrl struct {
	ModelNumber      string `json:"mn"`
	SerialNumber     string `json:"sn"`
	FirmwareRevision string `json:"fr"`
	OACS             uint16 `json:"oacs"`
	FNA              uint8  `json:"fna"`
	ONCS             uint16 `json:"oncs"`
	MDTS             uint8  `json:"mdts"`
}

// idNS mirrors the JSON output of `nvme id-ns -o json`.
type idNS struct {
	NSZE uint64 `json:"nsze"`
	NCAP uint64 `json:"ncap"`
	NUSE uint64 `json:"nuse"`
}

// Introspector queries a device's controller and namespace descriptors
// through the nvme-cli binary.
type Introspector struct {
	run runner.Runner
}

// NewIntrospector returns an Introspector backed by the given runner.
func NewIntrospector(run runner.Runner) *Introspector {
	return &Introspector{run: run}
}

var nsPathRe = regexp.MustCompile(`nvme\d+n(\d+)$`)

// NamespaceID extracts the namespace number from a path like /dev/nvme0n1.
// Paths without a namespace suffix default to 1.
func NamespaceID(namespacePath string) int {
	m := nsPathRe.FindStringSubmatch(namespacePath)
	if m == nil {
		return 1
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return id
}

// Inspect captures controller identity, namespace size fields and capability
// flags for the given device. Any failure to complete either query reports
// ErrDeviceUnreachable.
func (in *Introspector) Inspect(ctx context.Context, controllerPath, namespacePath string) (*Capabilities, error) {
	ctrl, err := in.identifyController(ctx, controllerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnreachable, controllerPath, err)
	}

	ns, err := in.identifyNamespace(ctx, namespacePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnreachable, namespacePath, err)
	}

	caps := decodeCapabilities(ctrl, ns)
	caps.ControllerPath = controllerPath
	caps.NamespacePath = namespacePath
	caps.NamespaceID = NamespaceID(namespacePath)

	log.Info().
		Str("device", namespacePath).
		Str("model", caps.Identity.Model).
		Str("serial", caps.Identity.Serial).
		Bool("crypto_erase", caps.SupportsCryptoErase).
		Bool("secure_erase", caps.SupportsSecureErase).
		Bool("format", caps.SupportsFormat).
		Msg("device capabilities captured")

	return caps, nil
}

// Identify re-queries controller identity only. The verifier uses this after
// the erase to detect an identity change, which is informational.
func (in *Introspector) Identify(ctx context.Context, controllerPath string) (*Identity, error) {
	ctrl, err := in.identifyController(ctx, controllerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnreachable, controllerPath, err)
	}
	return &Identity{
		Model:    ctrl.ModelNumber,
		Serial:   ctrl.SerialNumber,
		Firmware: ctrl.FirmwareRevision,
	}, nil
}

func (in *Introspector) identifyController(ctx context.Context, path string) (*idCtrl, error) {
	res, err := in.run.Run(ctx, "nvme", "id-ctrl", path, "--output-format=json")
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("nvme id-ctrl exited %d: %s", res.ExitCode, firstLine(res.Output))
	}

	var ctrl idCtrl
	if err := json.Unmarshal([]byte(res.Output), &ctrl); err != nil {
		return nil, fmt.Errorf("malformed id-ctrl descriptor: %w", err)
	}
	return &ctrl, nil
}

func (in *Introspector) identifyNamespace(ctx context.Context, path string) (*idNS, error) {
	res, err := in.run.Run(ctx, "nvme", "id-ns", path, "--output-format=json")
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("nvme id-ns exited %d: %s", res.ExitCode, firstLine(res.Output))
	}

	var ns idNS
	if err := json.Unmarshal([]byte(res.Output), &ns); err != nil {
		return nil, fmt.Errorf("malformed id-ns descriptor: %w", err)
	}
	return &ns, nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
