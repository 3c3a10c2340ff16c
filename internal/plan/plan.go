// Package plan derives a ranked erase plan from device capabilities.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"nvme-wipe-engine/internal/device"
)

// ErrNoEraseCapability indicates the device reports no destructive erase
// method at all.
var ErrNoEraseCapability = errors.New("device reports no erase capability")

// Risk classification for a strategy. Every erase strategy is destructive;
// the field exists so the record is explicit about it.
const RiskDestructive = "destructive"

// Method names, ordered by preference.
const (
	MethodCryptoErase = "Crypto Erase"
	MethodSecureErase = "User Data Erase"
	MethodFormat      = "Block Format"
)

// Strategy is one concrete way to erase the device: an argument vector for
// the runner plus descriptive fields for the record.
type Strategy struct {
	Method  string   `json:"method"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
	SES     int      `json:"secure_erase_setting"` // NVMe SES field: 2 crypto, 1 user data, 0 none
	Risk    string   `json:"risk"`
}

// CommandLine renders the strategy for display and the record. The executor
// always invokes Command with Args directly, never this string.
func (s Strategy) CommandLine() string {
	return s.Command + " " + strings.Join(s.Args, " ")
}

// Plan is the immutable, ordered strategy list for one run. It always holds
// the primary strategy and, when the device supports one, the next-best
// fallback, so the executor never has to recompute a fallback live.
type Plan struct {
	Strategies  []Strategy `json:"strategies"`
	NamespaceID int        `json:"namespace_id"`
}

// Primary returns the highest-ranked strategy.
func (p *Plan) Primary() Strategy { return p.Strategies[0] }

// Fallback returns the second strategy and whether one exists.
func (p *Plan) Fallback() (Strategy, bool) {
	if len(p.Strategies) < 2 {
		return Strategy{}, false
	}
	return p.Strategies[1], true
}

// Build ranks the erase methods the device actually reports and returns a
// plan with the top two. Ranking is fixed: crypto erase over user-data erase
// over plain block format. Build is a pure function of its input.
func Build(caps *device.Capabilities) (*Plan, error) {
	if !caps.HasEraseCapability() {
		return nil, fmt.Errorf("%w: %s", ErrNoEraseCapability, caps.NamespacePath)
	}

	var ranked []Strategy
	if caps.SupportsCryptoErase {
		ranked = append(ranked, NewFormatStrategy(caps.NamespacePath, MethodCryptoErase))
	}
	if caps.SupportsSecureErase {
		ranked = append(ranked, NewFormatStrategy(caps.NamespacePath, MethodSecureErase))
	}
	if caps.SupportsFormat {
		ranked = append(ranked, NewFormatStrategy(caps.NamespacePath, MethodFormat))
	}

	if len(ranked) > 2 {
		ranked = ranked[:2]
	}

	return &Plan{
		Strategies:  ranked,
		NamespaceID: caps.NamespaceID,
	}, nil
}

// SESFor maps a method name to its NVMe secure-erase setting.
func SESFor(method string) int {
	switch method {
	case MethodCryptoErase:
		return 2
	case MethodSecureErase:
		return 1
	default:
		return 0
	}
}

// NewFormatStrategy builds the nvme-format strategy for the given method.
func NewFormatStrategy(namespacePath, method string) Strategy {
	ses := SESFor(method)
	args := []string{"format", namespacePath}
	if ses > 0 {
		args = append(args, fmt.Sprintf("--ses=%d", ses))
	}
	args = append(args, "--force")
	return Strategy{
		Method:  method,
		Command: "nvme",
		Args:    args,
		SES:     ses,
		Risk:    RiskDestructive,
	}
}
