// Package execute runs the destructive phase of the wipe workflow: a single
// erase attempt with one deterministic fallback, guarded by two explicit
// confirmations.
package execute

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"nvme-wipe-engine/internal/plan"
	"nvme-wipe-engine/internal/prompt"
	"nvme-wipe-engine/internal/runner"
)

// Sentinel errors for typed error checking.
var (
	ErrUserCancelled        = errors.New("operation cancelled by user")
	ErrStrategyFailed       = errors.New("erase strategy failed")
	ErrBothStrategiesFailed = errors.New("all erase strategies failed")
)

// State of the executor's strategy machine.
type State string

const (
	StatePending State = "pending"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

// TimeLayout is the timestamp resolution recorded for erase attempts.
const TimeLayout = "2006-01-02 15:04:05.000"

// Attempt records one strategy invocation.
type Attempt struct {
	Method    string `json:"method"`
	Command   string `json:"command"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	ExitCode  int    `json:"exit_code"`
	Output    string `json:"output"`
}

// Result is the outcome of the execute phase. Strategy is the plan entry
// that actually ran to completion (or the last one tried on total failure).
type Result struct {
	State    State         `json:"state"`
	Strategy plan.Strategy `json:"strategy"`
	Attempts []Attempt     `json:"attempts"`

	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Duration  string `json:"duration"`

	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
	Success  bool   `json:"success"`
	FellBack bool   `json:"fell_back"`

	// Advisory line counts over the captured output. They never change the
	// pass/fail outcome, which is exit status alone.
	IOErrors int `json:"io_errors"`
	Warnings int `json:"warnings"`
}

// Executor drives the erase state machine against a real device.
type Executor struct {
	run      runner.Runner
	prompter prompt.Prompter
}

// New returns an Executor.
func New(run runner.Runner, prompter prompt.Prompter) *Executor {
	return &Executor{run: run, prompter: prompter}
}

// Execute runs the plan's primary strategy after both confirmations are
// affirmed, falling back exactly once on a non-zero exit. No destructive
// call is issued before both confirmations; either declined returns
// ErrUserCancelled with the device untouched. When both strategies fail the
// returned Result carries the terminal failure alongside
// ErrBothStrategiesFailed.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, devicePath string) (*Result, error) {
	if err := e.confirm(devicePath); err != nil {
		return nil, err
	}

	res := &Result{State: StatePending}

	primary := p.Primary()
	log.Info().
		Str("device", devicePath).
		Str("method", primary.Method).
		Str("command", primary.CommandLine()).
		Msg("starting erase")

	res.State = StateRunning
	attempt, err := e.attempt(ctx, primary)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("%w: %s: %v", ErrStrategyFailed, primary.Method, err)
	}
	res.Attempts = append(res.Attempts, *attempt)

	if attempt.ExitCode == 0 {
		e.finish(res, primary, attempt)
		return res, nil
	}

	log.Warn().
		Str("method", primary.Method).
		Int("exit_code", attempt.ExitCode).
		Msg("primary strategy failed")

	fallback, ok := p.Fallback()
	if !ok {
		e.fail(res, primary, attempt)
		return res, fmt.Errorf("%w: %s exited %d", ErrBothStrategiesFailed, primary.Method, attempt.ExitCode)
	}

	log.Info().
		Str("method", fallback.Method).
		Str("command", fallback.CommandLine()).
		Msg("advancing to fallback strategy")

	res.FellBack = true
	fbAttempt, err := e.attempt(ctx, fallback)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("%w: fallback %s: %v", ErrBothStrategiesFailed, fallback.Method, err)
	}
	res.Attempts = append(res.Attempts, *fbAttempt)

	if fbAttempt.ExitCode == 0 {
		e.finish(res, fallback, fbAttempt)
		return res, nil
	}

	e.fail(res, fallback, fbAttempt)
	return res, fmt.Errorf("%w: fallback %s exited %d", ErrBothStrategiesFailed, fallback.Method, fbAttempt.ExitCode)
}

// confirm enforces the two-step confirmation barrier: a general warning
// first, then a second prompt naming the specific device.
func (e *Executor) confirm(devicePath string) error {
	ok, err := e.prompter.Confirm(
		"WARNING: this operation will permanently destroy all data on the selected device. Continue?")
	if err != nil || !ok {
		return ErrUserCancelled
	}

	ok, err = e.prompter.Confirm(
		fmt.Sprintf("Erase %s now? This cannot be undone.", devicePath))
	if err != nil || !ok {
		return ErrUserCancelled
	}

	return nil
}

func (e *Executor) attempt(ctx context.Context, s plan.Strategy) (*Attempt, error) {
	// The erase runs to natural completion; no timeout is imposed here.
	r, err := e.run.Run(ctx, s.Command, s.Args...)
	if err != nil {
		return nil, err
	}
	return &Attempt{
		Method:    s.Method,
		Command:   s.CommandLine(),
		StartTime: r.Start.Format(TimeLayout),
		EndTime:   r.End.Format(TimeLayout),
		ExitCode:  r.ExitCode,
		Output:    r.Output,
	}, nil
}

func (e *Executor) finish(res *Result, s plan.Strategy, a *Attempt) {
	e.seal(res, s, a)
	res.State = StateSuccess
	res.Success = true
	log.Info().
		Str("method", s.Method).
		Str("duration", res.Duration).
		Int("io_errors", res.IOErrors).
		Int("warnings", res.Warnings).
		Msg("erase completed")
}

func (e *Executor) fail(res *Result, s plan.Strategy, a *Attempt) {
	e.seal(res, s, a)
	res.State = StateFailed
	res.Success = false
}

// seal fills the result's summary fields from the final attempt.
func (e *Executor) seal(res *Result, s plan.Strategy, a *Attempt) {
	res.Strategy = s
	res.StartTime = a.StartTime
	res.EndTime = a.EndTime
	res.Duration = CalculateDuration(a.StartTime, a.EndTime)
	res.Output = a.Output
	res.ExitCode = a.ExitCode
	res.IOErrors, res.Warnings = CountDiagnostics(a.Output)
}
