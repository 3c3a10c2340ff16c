// Package workflow sequences the four phases of a wipe run: collect, plan,
// execute with fallback, verify and persist. Phases are strictly sequential;
// any failure before the destructive call aborts the run fail-closed, while
// failures after it are recorded, never discarded.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"nvme-wipe-engine/internal/config"
	"nvme-wipe-engine/internal/device"
	"nvme-wipe-engine/internal/execute"
	"nvme-wipe-engine/internal/monitor"
	"nvme-wipe-engine/internal/plan"
	"nvme-wipe-engine/internal/prompt"
	"nvme-wipe-engine/internal/record"
	"nvme-wipe-engine/internal/runner"
	"nvme-wipe-engine/internal/storage"
	"nvme-wipe-engine/internal/verify"
)

// Deps are the engine's collaborators. Everything external to the workflow
// comes in here; the engine keeps no globals.
type Deps struct {
	Runner   runner.Runner
	Prompter prompt.Prompter
	Metrics  *monitor.Metrics
	Tracer   *monitor.Tracer
	Archive  *storage.ArchiveWriter // optional compliance archive
	Now      func() time.Time
}

// Outcome summarizes a completed run for the CLI.
type Outcome struct {
	RecordID       string
	RecordPath     string
	Method         string
	Success        bool
	Classification verify.Classification
}

// Engine runs the wipe workflow for a single device, single run.
type Engine struct {
	cfg   *config.Config
	deps  Deps
	intro *device.Introspector
	store *record.Store
}

// New builds an Engine. Missing optional deps get safe defaults.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if deps.Runner == nil {
		deps.Runner = runner.New()
	}
	if deps.Prompter == nil {
		deps.Prompter = prompt.NewTermPrompter()
	}
	if deps.Metrics == nil {
		deps.Metrics = monitor.NewMetrics()
	}
	if deps.Tracer == nil {
		deps.Tracer = monitor.NewTracer()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	store, err := record.NewStore(cfg.Records.Dir)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:   cfg,
		deps:  deps,
		intro: device.NewIntrospector(deps.Runner),
		store: store,
	}, nil
}

// Store exposes the record store for read-only CLI commands.
func (e *Engine) Store() *record.Store { return e.store }

// Plan runs the collect and plan phases only, persisting a plan-phase
// record, and returns its id.
func (e *Engine) Plan(ctx context.Context) (string, *record.Record, error) {
	caps, p, warnings, err := e.collectAndPlan(ctx)
	if err != nil {
		return "", nil, err
	}

	id := record.NewID(e.deps.Now())
	rec := e.buildPlanRecord(ctx, caps, p, warnings)
	if err := e.store.CreatePlan(id, rec); err != nil {
		return "", nil, &WorkflowError{RunID: id, Phase: "plan", Err: err}
	}
	return id, rec, nil
}

// Run executes the full workflow. The returned Outcome is valid only when
// err is nil; the run terminates with a distinguishable success state only
// if the executor reached success.
func (e *Engine) Run(ctx context.Context) (*Outcome, error) {
	id, rec, err := e.Plan(ctx)
	if err != nil {
		e.recordErrorMetric(err)
		return nil, err
	}

	runLog := log.With().Str("record_id", id).Str("device", e.cfg.Device.Namespace).Logger()
	runLog.Info().
		Str("method", rec.ExecutionPlan.RecommendedMethod).
		Str("fallback", rec.ExecutionPlan.AlternativeMethod).
		Msg("plan persisted, entering execute phase")

	for _, w := range rec.SafetyWarnings {
		runLog.Warn().Str("warning", w).Msg("pre-erase safety warning")
	}

	execRes, ver, err := e.executeAndVerify(ctx, id, rec)
	if err != nil {
		e.recordErrorMetric(err)
		// Both-strategies failure still has results worth persisting;
		// everything earlier (including user cancellation) leaves the
		// plan-phase record as-is.
		if execRes != nil && len(execRes.Attempts) > 0 {
			if persistErr := e.store.AppendExecution(id, execRes, nil); persistErr != nil {
				runLog.Error().Err(persistErr).Msg("failed to persist failed execution")
			}
		}
		return nil, err
	}

	if err := e.persist(ctx, id, execRes, ver); err != nil {
		e.recordErrorMetric(err)
		return nil, err
	}

	e.deps.Metrics.RecordWipe(execRes.Strategy.Method, "success")
	e.archive(id, rec, execRes, ver)

	return &Outcome{
		RecordID:       id,
		RecordPath:     e.store.Path(id),
		Method:         execRes.Strategy.Method,
		Success:        execRes.Success,
		Classification: ver.Classification,
	}, nil
}

// collectAndPlan is the fail-closed front half: any failure here means the
// erase is never attempted on uncertain capability data.
func (e *Engine) collectAndPlan(ctx context.Context) (*device.Capabilities, *plan.Plan, []string, error) {
	ctx, span := e.deps.Tracer.StartSpan(ctx, "collect", monitor.AttrDevice.String(e.cfg.Device.Namespace))
	defer span.End()

	start := e.deps.Now()
	caps, err := e.intro.Inspect(ctx, e.cfg.Device.Controller, e.cfg.Device.Namespace)
	if err != nil {
		return nil, nil, nil, &WorkflowError{Phase: "collect", Err: err}
	}
	e.deps.Metrics.ObservePhase("collect", e.deps.Now().Sub(start))

	warnings := plan.SafetyCheck(ctx, e.deps.Runner, e.cfg.Device.Namespace)

	start = e.deps.Now()
	p, err := plan.Build(caps)
	if err != nil {
		return nil, nil, nil, &WorkflowError{Phase: "plan", Err: err}
	}
	e.deps.Metrics.ObservePhase("plan", e.deps.Now().Sub(start))

	return caps, p, warnings, nil
}

func (e *Engine) executeAndVerify(ctx context.Context, id string, rec *record.Record) (*execute.Result, *verify.Result, error) {
	ctx, span := e.deps.Tracer.StartSpan(ctx, "execute",
		monitor.AttrRunID.String(id),
		monitor.AttrDevice.String(e.cfg.Device.Namespace),
		monitor.AttrMethod.String(rec.ExecutionPlan.RecommendedMethod),
	)
	defer span.End()

	p := planFromRecord(rec)
	executor := execute.New(e.deps.Runner, e.deps.Prompter)

	e.deps.Metrics.WipeInFlight.Set(1)
	defer e.deps.Metrics.WipeInFlight.Set(0)

	start := e.deps.Now()
	execRes, err := executor.Execute(ctx, p, e.cfg.Device.Namespace)
	e.deps.Metrics.ObservePhase("execute", e.deps.Now().Sub(start))

	if err != nil {
		if execRes != nil && execRes.FellBack {
			e.deps.Metrics.FallbacksTotal.Inc()
		}
		if errors.Is(err, execute.ErrUserCancelled) {
			return nil, nil, &WorkflowError{RunID: id, Phase: "confirm", Err: err}
		}
		if execRes != nil {
			e.deps.Metrics.RecordWipe(execRes.Strategy.Method, "failed")
		}
		return execRes, nil, &WorkflowError{RunID: id, Phase: "execute", Err: err}
	}

	if execRes.FellBack {
		e.deps.Metrics.FallbacksTotal.Inc()
	}

	ctx, vspan := e.deps.Tracer.StartSpan(ctx, "verify", monitor.AttrRunID.String(id))
	defer vspan.End()

	start = e.deps.Now()
	verifier := verify.New(e.deps.Runner, e.intro)
	before := &device.Identity{
		Model:    rec.DeviceInfo.Model,
		Serial:   rec.DeviceInfo.Serial,
		Firmware: rec.DeviceInfo.Firmware,
	}
	ver := verifier.Verify(ctx, e.cfg.Device.Controller, e.cfg.Device.Namespace, before)
	e.deps.Metrics.ObservePhase("verify", e.deps.Now().Sub(start))
	e.deps.Metrics.NonZeroRows.Set(float64(ver.NonZeroRows))

	return execRes, ver, nil
}

func (e *Engine) persist(ctx context.Context, id string, execRes *execute.Result, ver *verify.Result) error {
	_, span := e.deps.Tracer.StartSpan(ctx, "persist", monitor.AttrRunID.String(id))
	defer span.End()

	if err := e.store.AppendExecution(id, execRes, ver); err != nil {
		return &WorkflowError{RunID: id, Phase: "persist", Err: err}
	}
	return nil
}

func (e *Engine) archive(id string, rec *record.Record, execRes *execute.Result, ver *verify.Result) {
	if e.deps.Archive == nil {
		return
	}
	now := time.Now()
	e.deps.Archive.Archive(&storage.WipeOperation{
		RecordID:           id,
		DevicePath:         rec.DevicePath,
		Model:              rec.DeviceInfo.Model,
		Serial:             rec.DeviceInfo.Serial,
		Method:             execRes.Strategy.Method,
		Phase:              string(record.PhaseVerified),
		Success:            execRes.Success,
		IOErrors:           execRes.IOErrors,
		Warnings:           execRes.Warnings,
		VerificationStatus: string(ver.Classification),
		Duration:           execRes.Duration,
		Technician:         e.cfg.Technician.Name,
		Hostname:           rec.SystemInfo.Hostname,
		CompletedAt:        &now,
	})
}

func (e *Engine) buildPlanRecord(ctx context.Context, caps *device.Capabilities, p *plan.Plan, warnings []string) *record.Record {
	primary := p.Primary()

	rec := &record.Record{
		Timestamp:        e.deps.Now().Format(time.RFC3339),
		DevicePath:       e.cfg.Device.Namespace,
		ControllerDevice: e.cfg.Device.Controller,
		NamespaceDevice:  e.cfg.Device.Namespace,
		DeviceInfo: record.DeviceInfo{
			Model:       caps.Identity.Model,
			Serial:      caps.Identity.Serial,
			Firmware:    caps.Identity.Firmware,
			Capacity:    caps.Capacity(),
			CapacityRaw: fmt.Sprintf("%#x", caps.NSZE),
			NSZE:        fmt.Sprintf("%#x", caps.NSZE),
			NUSE:        fmt.Sprintf("%#x", caps.NUSE),
			NCAP:        fmt.Sprintf("%#x", caps.NCAP),
		},
		Capabilities: record.CapabilityFields{
			OACS: fmt.Sprintf("%#x", caps.OACS),
			FNA:  fmt.Sprintf("%#x", caps.FNA),
			ONCS: fmt.Sprintf("%#x", caps.ONCS),
			MDTS: fmt.Sprintf("%#x", caps.MDTS),
		},
		SystemInfo: *device.CollectSystemInfo(ctx, e.deps.Runner),
		ExecutionPlan: record.ExecutionPlan{
			RecommendedCommand: primary.CommandLine(),
			RecommendedMethod:  primary.Method,
			SecureEraseSetting: primary.SES,
			NamespaceID:        p.NamespaceID,
		},
		BusinessDetails:   e.cfg.BusinessDetails(),
		TechnicianDetails: e.cfg.TechnicianDetails(),
		SafetyWarnings:    warnings,
	}

	if fb, ok := p.Fallback(); ok {
		rec.ExecutionPlan.AlternativeCommand = fb.CommandLine()
		rec.ExecutionPlan.AlternativeMethod = fb.Method
	}

	return rec
}

// planFromRecord rebuilds the executable plan from the persisted record so
// the execute phase runs exactly what was planned, even across process runs.
func planFromRecord(rec *record.Record) *plan.Plan {
	strategies := []plan.Strategy{
		plan.NewFormatStrategy(rec.NamespaceDevice, rec.ExecutionPlan.RecommendedMethod),
	}
	if rec.ExecutionPlan.AlternativeMethod != "" {
		strategies = append(strategies,
			plan.NewFormatStrategy(rec.NamespaceDevice, rec.ExecutionPlan.AlternativeMethod))
	}
	return &plan.Plan{
		Strategies:  strategies,
		NamespaceID: rec.ExecutionPlan.NamespaceID,
	}
}

func (e *Engine) recordErrorMetric(err error) {
	e.deps.Metrics.RecordError(errType(err))
}

func errType(err error) string {
	switch {
	case errors.Is(err, device.ErrDeviceUnreachable):
		return "device_unreachable"
	case errors.Is(err, plan.ErrNoEraseCapability):
		return "no_erase_capability"
	case errors.Is(err, execute.ErrUserCancelled):
		return "user_cancelled"
	case errors.Is(err, execute.ErrBothStrategiesFailed):
		return "both_strategies_failed"
	case errors.Is(err, execute.ErrStrategyFailed):
		return "strategy_failed"
	case errors.Is(err, record.ErrRecordCollision):
		return "record_collision"
	default:
		return "other"
	}
}
