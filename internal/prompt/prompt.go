// Package prompt is the interactive confirmation service. The executor only
// depends on the Prompter interface so tests substitute canned answers.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompter presents a yes/no question and returns the user's answer.
// A read failure or empty input counts as declined.
type Prompter interface {
	Confirm(message string) (bool, error)
}

// TermPrompter reads confirmations from a terminal.
type TermPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTermPrompter returns a Prompter on stdin/stderr. Prompts go to stderr
// so piped stdout stays machine-readable.
func NewTermPrompter() *TermPrompter {
	return &TermPrompter{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stderr,
	}
}

// NewPrompter builds a TermPrompter over explicit streams, for tests.
func NewPrompter(in io.Reader, out io.Writer) *TermPrompter {
	return &TermPrompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks message and requires an explicit "yes" (or "y") to affirm.
func (p *TermPrompter) Confirm(message string) (bool, error) {
	fmt.Fprintf(p.out, "%s [yes/no]: ", message)

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "yes", "y":
		return true, nil
	default:
		return false, nil
	}
}
