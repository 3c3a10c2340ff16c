package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"nvme-wipe-engine/internal/config"
	"nvme-wipe-engine/internal/device"
	"nvme-wipe-engine/internal/execute"
	"nvme-wipe-engine/internal/plan"
	"nvme-wipe-engine/internal/record"
	"nvme-wipe-engine/internal/runner"
	"nvme-wipe-engine/internal/verify"
)

const (
	ctrlJSON = `{"mn": "Samsung SSD 980 PRO 1TB", "sn": "S5GXNX0R123456", "fr": "5B2QGXA7", "oacs": 23, "fna": 5, "oncs": 95, "mdts": 9}`
	nsJSON   = `{"nsze": 1953525168, "ncap": 1953525168, "nuse": 1048576}`
)

// fakeRunner scripts every external command the workflow touches.
type fakeRunner struct {
	formatExit  int
	ddOutput    string
	ctrlExit    int
	formatCalls int
	unameCtx    context.Context
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (*runner.Result, error) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	res := &runner.Result{Command: name, Args: args, Start: now, End: now.Add(time.Second)}

	switch name {
	case "nvme":
		switch args[0] {
		case "id-ctrl":
			if f.ctrlExit != 0 {
				res.ExitCode = f.ctrlExit
				return res, nil
			}
			res.Output = ctrlJSON
		case "id-ns":
			res.Output = nsJSON
		case "format":
			f.formatCalls++
			res.ExitCode = f.formatExit
		}
	case "dd":
		res.Output = f.ddOutput
	case "uname":
		f.unameCtx = ctx
		res.Output = "6.1.0-test\n"
	default:
		// findmnt, lsof, dmidecode: absent or nothing to report
		res.ExitCode = 1
	}
	return res, nil
}

type fakePrompter struct {
	answers []bool
	asked   int
}

func (f *fakePrompter) Confirm(string) (bool, error) {
	if f.asked >= len(f.answers) {
		return false, nil
	}
	ans := f.answers[f.asked]
	f.asked++
	return ans, nil
}

func newEngine(t *testing.T, run *fakeRunner, answers []bool) *Engine {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Records.Dir = t.TempDir()

	eng, err := New(cfg, Deps{
		Runner:   run,
		Prompter: &fakePrompter{answers: answers},
		Now:      func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func TestRunSuccess(t *testing.T) {
	run := &fakeRunner{ddOutput: string(make([]byte, verify.SampleSize))}
	eng := newEngine(t, run, []bool{true, true})

	out, err := eng.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !out.Success {
		t.Error("Outcome.Success = false, want true")
	}
	if out.Method != plan.MethodCryptoErase {
		t.Errorf("Method = %q, want crypto erase as primary", out.Method)
	}
	if out.Classification != verify.LikelyErased {
		t.Errorf("Classification = %s, want LikelyErased", out.Classification)
	}
	if run.formatCalls != 1 {
		t.Errorf("format invoked %d times, want 1", run.formatCalls)
	}

	rec, err := eng.Store().Load(out.RecordID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Phase != record.PhaseVerified {
		t.Errorf("record phase = %s, want verified", rec.Phase)
	}
	if rec.ExecutionPlan.ActualMethod != plan.MethodCryptoErase {
		t.Errorf("ActualMethod = %q", rec.ExecutionPlan.ActualMethod)
	}
	if rec.DeviceInfo.Model != "Samsung SSD 980 PRO 1TB" {
		t.Errorf("Model = %q", rec.DeviceInfo.Model)
	}
	if rec.Verification == nil || !rec.Verification.EraseSuccessful {
		t.Errorf("Verification = %+v, want erase successful", rec.Verification)
	}
}

func TestRunBothStrategiesFail(t *testing.T) {
	run := &fakeRunner{formatExit: 1}
	eng := newEngine(t, run, []bool{true, true})

	_, err := eng.Run(context.Background())
	if !errors.Is(err, execute.ErrBothStrategiesFailed) {
		t.Fatalf("error = %v, want ErrBothStrategiesFailed", err)
	}
	if run.formatCalls != 2 {
		t.Errorf("format invoked %d times, want exactly 2", run.formatCalls)
	}

	var werr *WorkflowError
	if !errors.As(err, &werr) {
		t.Fatalf("error type = %T, want *WorkflowError", err)
	}

	// The failed execution is still persisted; verification never ran.
	rec, loadErr := eng.Store().Load(werr.RunID)
	if loadErr != nil {
		t.Fatalf("Load: %v", loadErr)
	}
	if rec.Phase != record.PhaseFailed {
		t.Errorf("record phase = %s, want failed", rec.Phase)
	}
	if rec.Verification != nil {
		t.Error("Verification present after terminal failure, want absent")
	}
}

func TestRunUserCancelled(t *testing.T) {
	run := &fakeRunner{}
	eng := newEngine(t, run, []bool{true, false})

	_, err := eng.Run(context.Background())
	if !errors.Is(err, execute.ErrUserCancelled) {
		t.Fatalf("error = %v, want ErrUserCancelled", err)
	}
	if run.formatCalls != 0 {
		t.Errorf("format invoked %d times after cancellation, want 0", run.formatCalls)
	}

	var werr *WorkflowError
	if !errors.As(err, &werr) {
		t.Fatalf("error type = %T, want *WorkflowError", err)
	}
	if werr.Phase != "confirm" {
		t.Errorf("phase = %q, want confirm", werr.Phase)
	}

	// The plan-phase record survives untouched.
	rec, loadErr := eng.Store().Load(werr.RunID)
	if loadErr != nil {
		t.Fatalf("Load: %v", loadErr)
	}
	if rec.Phase != record.PhasePlanned {
		t.Errorf("record phase = %s, want planned", rec.Phase)
	}
}

func TestRunDeviceUnreachable(t *testing.T) {
	run := &fakeRunner{ctrlExit: 1}
	eng := newEngine(t, run, []bool{true, true})

	_, err := eng.Run(context.Background())
	if !errors.Is(err, device.ErrDeviceUnreachable) {
		t.Fatalf("error = %v, want ErrDeviceUnreachable", err)
	}
	if run.formatCalls != 0 {
		t.Errorf("format invoked %d times on unreachable device, want 0", run.formatCalls)
	}
}

func TestPlanPersistsPlanPhaseRecord(t *testing.T) {
	run := &fakeRunner{}
	eng := newEngine(t, run, nil)

	id, rec, err := eng.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if rec.ExecutionPlan.RecommendedMethod != plan.MethodCryptoErase {
		t.Errorf("RecommendedMethod = %q", rec.ExecutionPlan.RecommendedMethod)
	}
	if rec.ExecutionPlan.AlternativeMethod != plan.MethodSecureErase {
		t.Errorf("AlternativeMethod = %q", rec.ExecutionPlan.AlternativeMethod)
	}
	if rec.ExecutionPlan.SecureEraseSetting != 2 {
		t.Errorf("SecureEraseSetting = %d, want 2", rec.ExecutionPlan.SecureEraseSetting)
	}

	stored, err := eng.Store().Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stored.Phase != record.PhasePlanned {
		t.Errorf("phase = %s, want planned", stored.Phase)
	}
	if stored.DeviceInfo.NSZE != "0x74706db0" {
		t.Errorf("NSZE = %q, want hex rendering of 1953525168", stored.DeviceInfo.NSZE)
	}
}

func TestPhaseDurationsUseInjectedClock(t *testing.T) {
	// With a pinned clock every observed phase duration must be zero. A
	// wall-clock measurement against a 2025 start time would record hours.
	run := &fakeRunner{ddOutput: string(make([]byte, verify.SampleSize))}
	eng := newEngine(t, run, []bool{true, true})

	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	families, err := eng.deps.Metrics.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != "nvmewipe_phase_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if sum := m.GetHistogram().GetSampleSum(); sum != 0 {
				t.Errorf("phase %v duration sum = %f, want 0 under a pinned clock", m.GetLabel(), sum)
			}
		}
	}
}

type planCtxKey struct{}

func TestPlanThreadsContext(t *testing.T) {
	run := &fakeRunner{}
	eng := newEngine(t, run, nil)

	ctx := context.WithValue(context.Background(), planCtxKey{}, "run-ctx")
	if _, _, err := eng.Plan(ctx); err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if run.unameCtx == nil || run.unameCtx.Value(planCtxKey{}) != "run-ctx" {
		t.Error("system info collection did not receive the caller's context")
	}
}

func TestPlanIDCollision(t *testing.T) {
	// A pinned clock makes two runs in the same second collide.
	run := &fakeRunner{}
	eng := newEngine(t, run, nil)

	if _, _, err := eng.Plan(context.Background()); err != nil {
		t.Fatalf("first Plan: %v", err)
	}
	_, _, err := eng.Plan(context.Background())
	if !errors.Is(err, record.ErrRecordCollision) {
		t.Errorf("error = %v, want ErrRecordCollision", err)
	}
}
