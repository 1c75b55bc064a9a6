package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muurk/remootio/internal/deviceconfig"
)

// RunnerConfig holds configuration for a device command execution
type RunnerConfig struct {
	Title   string            // Command title (e.g., "Add Device")
	Command string            // Full command (e.g., "remootio-cfg add")
	Params  map[string]string // Parameters to display in header
	Output  io.Writer         // Output writer (default: os.Stdout)
}

// Runner renders a bootstrap run: header, one line per finished step and a
// result box. Attach it to a Bootstrapper through OnStep.
type Runner struct {
	config   RunnerConfig
	header   *Header
	progress *Progress
	output   io.Writer
	width    int
	now      func() time.Time
}

// NewRunner creates a runner with one step per bootstrap stage
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()

	names := make([]string, len(deviceconfig.Steps))
	for i, s := range deviceconfig.Steps {
		names[i] = s.String()
	}

	return &Runner{
		config:   config,
		header:   NewHeader(config.Title, config.Command, config.Params).SetWidth(width),
		progress: NewProgress(names).SetWidth(width),
		output:   config.Output,
		width:    width,
		now:      time.Now,
	}
}

// Attach routes the bootstrapper's progress events to the runner
func (r *Runner) Attach(b *deviceconfig.Bootstrapper) {
	b.OnStep = r.OnStep
}

// OnStep updates the step list for a bootstrap event and prints the step
// line once it finished.
func (r *Runner) OnStep(ev deviceconfig.StepEvent) {
	number := stepNumber(ev.Step)
	if number == 0 {
		return
	}

	switch {
	case !ev.Done:
		r.progress.UpdateStep(number, StepRunning, "")
		return
	case ev.Err != nil:
		r.progress.UpdateStep(number, StepFailed, deviceconfig.GetShortErrorMessage(ev.Err))
	default:
		r.progress.UpdateStep(number, StepComplete, ev.Detail)
	}
	_, _ = fmt.Fprintln(r.output, r.progress.renderStepLine(r.progress.Steps[number-1]))
}

// Operation is the work performed under the runner. Returned details are
// shown in the success box.
type Operation func() ([]Detail, error)

// Run prints the header, executes op and prints the outcome
func (r *Runner) Run(op Operation) error {
	start := r.now()

	_, _ = fmt.Fprintln(r.output, r.header.Render())
	_, _ = fmt.Fprintln(r.output)

	details, err := op()
	duration := r.now().Sub(start).Round(time.Millisecond)
	r.progress.SkipPending()

	_, _ = fmt.Fprintln(r.output)
	if err != nil {
		result := NewDeviceErrorResult(r.config.Title+" failed", err).SetWidth(r.width)
		result.AddDetail("Duration", duration.String())
		_, _ = fmt.Fprintln(r.output, result.Render())
		return err
	}

	result := NewSuccessResult(r.config.Title+" complete", details...).SetWidth(r.width)
	result.AddDetail("Duration", duration.String())
	_, _ = fmt.Fprintln(r.output, result.Render())
	return nil
}

// Progress exposes the step list, mainly for tests
func (r *Runner) Progress() *Progress {
	return r.progress
}

func stepNumber(step deviceconfig.Step) int {
	for i, s := range deviceconfig.Steps {
		if s == step {
			return i + 1
		}
	}
	return 0
}
