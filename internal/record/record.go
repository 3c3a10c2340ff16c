// Package record persists the durable execution record: the union of device
// capabilities, erase plan, execution result and verification evidence that
// the external report renderer consumes.
package record

import (
	"nvme-wipe-engine/internal/device"
)

// Phase is the record's explicit lifecycle marker. Progress is never
// inferred from which JSON keys happen to be present.
type Phase string

const (
	PhasePlanned  Phase = "planned"
	PhaseExecuted Phase = "executed"
	PhaseVerified Phase = "verified"
	PhaseFailed   Phase = "failed"
)

// DeviceInfo is the identity and size section of the record.
type DeviceInfo struct {
	Model       string `json:"model"`
	Serial      string `json:"serial"`
	Firmware    string `json:"firmware"`
	Capacity    string `json:"capacity"`
	CapacityRaw string `json:"capacity_raw"`
	NSZE        string `json:"nsze"`
	NUSE        string `json:"nuse"`
	NCAP        string `json:"ncap"`
}

// CapabilityFields carries the raw capability registers, hex-encoded.
type CapabilityFields struct {
	OACS string `json:"oacs"`
	FNA  string `json:"fna"`
	ONCS string `json:"oncs"`
	MDTS string `json:"mdts"`
}

// ExecutionPlan holds the planned strategies and, once the execute phase has
// run, the appended execution outcome. Plan-time fields are never altered by
// the append.
type ExecutionPlan struct {
	RecommendedCommand string `json:"recommended_command"`
	RecommendedMethod  string `json:"recommended_method"`
	AlternativeCommand string `json:"alternative_command,omitempty"`
	AlternativeMethod  string `json:"alternative_method,omitempty"`
	SecureEraseSetting int    `json:"secure_erase_setting"`
	NamespaceID        int    `json:"namespace_id"`

	// Appended post-execution.
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
	Duration      string `json:"duration,omitempty"`
	ActualCommand string `json:"actual_command,omitempty"`
	ActualMethod  string `json:"actual_method,omitempty"`
	Success       bool   `json:"success"`
	IOErrors      int    `json:"io_errors"`
	Warnings      int    `json:"warnings"`
}

// DataAnalysis is the verifier's sample statistic section.
type DataAnalysis struct {
	Status        string `json:"status"`
	Analysis      string `json:"analysis"`
	NonZeroLines  int    `json:"non_zero_lines"`
	HexdumpSample string `json:"hexdump_sample"`
}

// Verification is appended after the verify phase.
type Verification struct {
	DeviceAccessible   bool         `json:"device_accessible"`
	EraseSuccessful    bool         `json:"erase_successful"`
	VerificationMethod string       `json:"verification_method"`
	DataAnalysis       DataAnalysis `json:"data_analysis"`
	Timestamp          string       `json:"timestamp"`
}

// PostEraseState captures device identity as re-queried after the erase.
type PostEraseState struct {
	Model    string `json:"model"`
	Serial   string `json:"serial"`
	Firmware string `json:"firmware"`
	Capacity string `json:"capacity"`
}

// Record is the persisted artifact, keyed by a timestamp-derived identifier.
// Created once at plan time and mutated exactly once more after execution
// and verification.
type Record struct {
	Phase             Phase             `json:"phase"`
	Timestamp         string            `json:"timestamp"`
	DevicePath        string            `json:"device_path"`
	ControllerDevice  string            `json:"controller_device"`
	NamespaceDevice   string            `json:"namespace_device"`
	DeviceInfo        DeviceInfo        `json:"device_info"`
	Capabilities      CapabilityFields  `json:"capabilities"`
	SystemInfo        device.SystemInfo `json:"system_info"`
	ExecutionPlan     ExecutionPlan     `json:"execution_plan"`
	BusinessDetails   map[string]string `json:"business_details"`
	TechnicianDetails map[string]string `json:"technician_details"`
	SafetyWarnings    []string          `json:"safety_warnings,omitempty"`

	// Appended post-verification.
	Verification   *Verification   `json:"verification,omitempty"`
	PostEraseState *PostEraseState `json:"post_erase_state,omitempty"`
}
