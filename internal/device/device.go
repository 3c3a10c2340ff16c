// Package device is the single adapter between the erase engine and raw
// NVMe descriptor output. Everything downstream of this package works with
// typed Capabilities and never touches tool output text.
package device

import (
	"errors"
	"fmt"
)

// ErrDeviceUnreachable indicates the introspection query could not be
// completed: missing device, permission denied, or malformed descriptor.
var ErrDeviceUnreachable = errors.New("device unreachable")

// Identity holds controller identity fields from id-ctrl.
type Identity struct {
	Model    string `json:"model"`
	Serial   string `json:"serial"`
	Firmware string `json:"firmware"`
}

// Capabilities is the decoded, immutable view of a device captured once per
// workflow run.
type Capabilities struct {
	Identity Identity

	ControllerPath string
	NamespacePath  string
	NamespaceID    int

	// Namespace size fields, raw logical block counts.
	NSZE uint64
	NCAP uint64
	NUSE uint64

	// Raw capability registers, kept for the execution record.
	OACS uint16
	FNA  uint8
	ONCS uint16
	MDTS uint8

	SupportsFormat      bool // OACS bit 1: Format NVM command supported
	SupportsSecureErase bool // user-data erase via Format, requires OACS bit 1
	SupportsCryptoErase bool // FNA bit 2: cryptographic erase supported
	FormatAllNamespaces bool // FNA bit 0: format applies to all namespaces
}

// HasEraseCapability reports whether any destructive erase method is
// available at all.
func (c *Capabilities) HasEraseCapability() bool {
	return c.SupportsCryptoErase || c.SupportsSecureErase || c.SupportsFormat
}

// Capacity returns the namespace capacity in coarse human units.
func (c *Capabilities) Capacity() string {
	return FormatCapacity(fmt.Sprintf("%#x", c.NSZE))
}

// decodeCapabilities interprets the capability bitfields against the NVMe
// identify-controller schema. Missing fields decode as unsupported so a
// partial descriptor degrades instead of aborting the run.
func decodeCapabilities(ctrl *idCtrl, ns *idNS) *Capabilities {
	caps := &Capabilities{
		Identity: Identity{
			Model:    ctrl.ModelNumber,
			Serial:   ctrl.SerialNumber,
			Firmware: ctrl.FirmwareRevision,
		},
		OACS: ctrl.OACS,
		FNA:  ctrl.FNA,
		ONCS: ctrl.ONCS,
		MDTS: ctrl.MDTS,
	}

	caps.SupportsFormat = ctrl.OACS&0x2 != 0
	caps.SupportsSecureErase = caps.SupportsFormat
	caps.SupportsCryptoErase = ctrl.FNA&0x4 != 0
	caps.FormatAllNamespaces = ctrl.FNA&0x1 != 0

	if ns != nil {
		caps.NSZE = ns.NSZE
		caps.NCAP = ns.NCAP
		caps.NUSE = ns.NUSE
	}

	return caps
}
