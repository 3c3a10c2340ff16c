// Package verify samples the device after a successful erase and classifies
// the outcome. This is explicitly a heuristic check, not a cryptographic or
// exhaustive verification.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"nvme-wipe-engine/internal/device"
	"nvme-wipe-engine/internal/runner"
)

// ErrUnreadable indicates the post-erase sample could not be read. It is
// non-fatal: the workflow still completes and persists the result.
var ErrUnreadable = errors.New("device unreadable for verification")

// Sampling parameters. The threshold is deliberately coarse; rows are
// 16-byte hexdump rows over the leading sample.
const (
	SampleSize       = 4096
	RowSize          = 16
	NonZeroThreshold = 5
)

// Classification of the erase outcome.
type Classification string

const (
	LikelyErased      Classification = "LIKELY_ERASED"
	PossiblyNotErased Classification = "POSSIBLY_NOT_ERASED"
	Indeterminate     Classification = "INDETERMINATE"
)

// Result is the verification evidence persisted into the execution record.
type Result struct {
	Classification   Classification `json:"status"`
	DeviceAccessible bool           `json:"device_accessible"`
	NonZeroRows      int            `json:"non_zero_lines"`
	Sample           string         `json:"hexdump_sample"`
	Analysis         string         `json:"analysis"`
	Method           string         `json:"verification_method"`
	Timestamp        string         `json:"timestamp"`

	PostEraseIdentity *device.Identity `json:"post_erase_identity,omitempty"`
	IdentityChanged   bool             `json:"identity_changed"`
}

// Erased reports whether the sample classified as erased.
func (r *Result) Erased() bool {
	return r.Classification == LikelyErased
}

// Verifier re-queries the device after the erase.
type Verifier struct {
	run   runner.Runner
	intro *device.Introspector
}

// New returns a Verifier.
func New(run runner.Runner, intro *device.Introspector) *Verifier {
	return &Verifier{run: run, intro: intro}
}

// Verify reads the leading SampleSize bytes of the namespace and classifies
// the result. It also re-queries controller identity; an identity change is
// logged but not treated as an error. Verify never fails the workflow: an
// unreadable device classifies as Indeterminate with the error as evidence.
func (v *Verifier) Verify(ctx context.Context, controllerPath, namespacePath string, before *device.Identity) *Result {
	res := &Result{
		Method:    "leading-sample hexdump analysis",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if id, err := v.intro.Identify(ctx, controllerPath); err == nil {
		res.PostEraseIdentity = id
		if before != nil && *id != *before {
			res.IdentityChanged = true
			log.Warn().
				Str("serial_before", before.Serial).
				Str("serial_after", id.Serial).
				Msg("device identity changed after erase")
		}
	} else {
		log.Warn().Err(err).Msg("post-erase identity query failed")
	}

	sample, err := v.readSample(ctx, namespacePath)
	if err != nil {
		log.Warn().Err(err).Str("device", namespacePath).Msg("verification sample unreadable")
		res.Classification = Indeterminate
		res.DeviceAccessible = false
		res.Sample = "<unreadable>"
		res.Analysis = fmt.Sprintf("%v: %v", ErrUnreadable, err)
		return res
	}

	res.DeviceAccessible = true
	res.NonZeroRows = countNonZeroRows(sample)
	res.Sample = renderSample(sample)

	if res.NonZeroRows < NonZeroThreshold {
		res.Classification = LikelyErased
		res.Analysis = fmt.Sprintf("%d of %d sampled rows non-zero (threshold %d)",
			res.NonZeroRows, len(sample)/RowSize, NonZeroThreshold)
	} else {
		res.Classification = PossiblyNotErased
		res.Analysis = fmt.Sprintf("%d non-zero rows in leading sample, device may retain data",
			res.NonZeroRows)
	}

	log.Info().
		Str("classification", string(res.Classification)).
		Int("non_zero_rows", res.NonZeroRows).
		Msg("verification completed")

	return res
}

// readSample pulls the first SampleSize bytes of the raw namespace through
// dd, the same privileged path the rest of the engine uses for device access.
func (v *Verifier) readSample(ctx context.Context, namespacePath string) ([]byte, error) {
	res, err := v.run.Run(ctx, "dd",
		"if="+namespacePath,
		fmt.Sprintf("bs=%d", SampleSize),
		"count=1",
		"status=none",
	)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, fmt.Errorf("dd exited %d", res.ExitCode)
	}

	sample := []byte(res.Output)
	if len(sample) > SampleSize {
		sample = sample[:SampleSize]
	}
	return sample, nil
}
