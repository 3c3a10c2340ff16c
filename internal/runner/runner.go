package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Result captures a single external process invocation.
type Result struct {
	Command  string
	Args     []string
	Output   string // merged stdout+stderr
	ExitCode int
	Start    time.Time
	End      time.Time
}

// Duration returns the wall-clock time the process ran.
func (r *Result) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Success reports whether the process exited zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// String renders the invocation as it would appear on a command line,
// for logging and record purposes only. It is never fed back to a shell.
func (r *Result) String() string {
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + " " + strings.Join(r.Args, " ")
}

// Runner invokes external processes from an argument vector. Implementations
// must never interpret arguments through a shell.
type Runner interface {
	// Run executes name with args, blocking until the process exits.
	// A non-zero exit status is reported in Result.ExitCode with a nil
	// error; the error return is reserved for failures to start the
	// process at all (missing binary, permission denied).
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner runs real processes via os/exec.
type ExecRunner struct{}

// New returns an ExecRunner.
func New() *ExecRunner {
	return &ExecRunner{}
}

func (e *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cmd := exec.CommandContext(ctx, name, args...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	end := time.Now()

	res := &Result{
		Command: name,
		Args:    args,
		Output:  buf.String(),
		Start:   start,
		End:     end,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Process never ran (binary missing, permission denied).
			log.Error().Err(err).Str("command", name).Msg("process failed to start")
			return nil, err
		}
	}

	log.Debug().
		Str("command", res.String()).
		Int("exit_code", res.ExitCode).
		Dur("duration", res.Duration()).
		Msg("process completed")

	return res, nil
}
