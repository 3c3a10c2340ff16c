package verify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"nvme-wipe-engine/internal/device"
	"nvme-wipe-engine/internal/runner"
)

type fakeRunner struct {
	ddOutput string
	ddExit   int
	ddErr    error
	ctrlJSON string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (*runner.Result, error) {
	now := time.Now()
	switch name {
	case "dd":
		if f.ddErr != nil {
			return nil, f.ddErr
		}
		return &runner.Result{Command: name, Args: args, Output: f.ddOutput, ExitCode: f.ddExit, Start: now, End: now}, nil
	case "nvme":
		if f.ctrlJSON == "" {
			return &runner.Result{Command: name, Args: args, ExitCode: 1, Start: now, End: now}, nil
		}
		return &runner.Result{Command: name, Args: args, Output: f.ctrlJSON, Start: now, End: now}, nil
	default:
		return nil, errors.New("command not scripted: " + name)
	}
}

func newVerifier(f *fakeRunner) *Verifier {
	return New(f, device.NewIntrospector(f))
}

func TestVerifyAllZeroSample(t *testing.T) {
	sample := make([]byte, SampleSize)
	run := &fakeRunner{ddOutput: string(sample)}

	res := newVerifier(run).Verify(context.Background(), "/dev/nvme0", "/dev/nvme0n1", nil)

	if res.Classification != LikelyErased {
		t.Errorf("Classification = %s, want LikelyErased", res.Classification)
	}
	if res.NonZeroRows != 0 {
		t.Errorf("NonZeroRows = %d, want 0", res.NonZeroRows)
	}
	if !res.DeviceAccessible {
		t.Error("DeviceAccessible = false, want true")
	}
	if !res.Erased() {
		t.Error("Erased() = false, want true")
	}
}

func TestVerifyBelowThreshold(t *testing.T) {
	// 4 non-zero rows is still under the 5-row threshold.
	sample := make([]byte, SampleSize)
	for row := 0; row < NonZeroThreshold-1; row++ {
		sample[row*RowSize] = 0xAB
	}
	run := &fakeRunner{ddOutput: string(sample)}

	res := newVerifier(run).Verify(context.Background(), "/dev/nvme0", "/dev/nvme0n1", nil)

	if res.Classification != LikelyErased {
		t.Errorf("Classification = %s, want LikelyErased at %d rows", res.Classification, res.NonZeroRows)
	}
}

func TestVerifyAtThreshold(t *testing.T) {
	// Exactly 5 non-zero rows classifies as possibly not erased.
	sample := make([]byte, SampleSize)
	for row := 0; row < NonZeroThreshold; row++ {
		sample[row*RowSize+3] = 0xFF
	}
	run := &fakeRunner{ddOutput: string(sample)}

	res := newVerifier(run).Verify(context.Background(), "/dev/nvme0", "/dev/nvme0n1", nil)

	if res.Classification != PossiblyNotErased {
		t.Errorf("Classification = %s, want PossiblyNotErased", res.Classification)
	}
	if res.NonZeroRows != NonZeroThreshold {
		t.Errorf("NonZeroRows = %d, want %d", res.NonZeroRows, NonZeroThreshold)
	}
}

func TestVerifyUnreadable(t *testing.T) {
	tests := []struct {
		name string
		run  *fakeRunner
	}{
		{"dd fails to start", &fakeRunner{ddErr: errors.New("no such device")}},
		{"dd non-zero exit", &fakeRunner{ddExit: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newVerifier(tt.run).Verify(context.Background(), "/dev/nvme0", "/dev/nvme0n1", nil)

			if res.Classification != Indeterminate {
				t.Errorf("Classification = %s, want Indeterminate", res.Classification)
			}
			if res.DeviceAccessible {
				t.Error("DeviceAccessible = true, want false")
			}
			if res.Sample != "<unreadable>" {
				t.Errorf("Sample = %q, want unreadable marker", res.Sample)
			}
		})
	}
}

func TestVerifyIdentityChange(t *testing.T) {
	sample := make([]byte, SampleSize)
	run := &fakeRunner{
		ddOutput: string(sample),
		ctrlJSON: `{"mn": "Model X", "sn": "NEWSERIAL", "fr": "1.0"}`,
	}
	before := &device.Identity{Model: "Model X", Serial: "OLDSERIAL", Firmware: "1.0"}

	res := newVerifier(run).Verify(context.Background(), "/dev/nvme0", "/dev/nvme0n1", before)

	if !res.IdentityChanged {
		t.Error("IdentityChanged = false, want true")
	}
	// An identity change is informational; classification is unaffected.
	if res.Classification != LikelyErased {
		t.Errorf("Classification = %s, want LikelyErased", res.Classification)
	}
}

func TestCountNonZeroRows(t *testing.T) {
	tests := []struct {
		name   string
		sample []byte
		want   int
	}{
		{"empty", nil, 0},
		{"all zero", make([]byte, 64), 0},
		{"one byte set", append([]byte{1}, make([]byte, 63)...), 1},
		{"partial trailing row", bytes.Repeat([]byte{0xFF}, 20), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countNonZeroRows(tt.sample); got != tt.want {
				t.Errorf("countNonZeroRows = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenderSampleBounded(t *testing.T) {
	sample := bytes.Repeat([]byte{0xAA}, SampleSize)
	out := renderSample(sample)

	lines := strings.Split(out, "\n")
	if len(lines) > maxSampleRows+1 {
		t.Errorf("rendered %d lines, want at most %d", len(lines), maxSampleRows+1)
	}
	if !strings.Contains(out, "rows omitted") {
		t.Error("long sample should carry an elision marker")
	}
	if !strings.HasPrefix(lines[0], "00000000 ") {
		t.Errorf("first row = %q, want offset prefix", lines[0])
	}
}
