// Package executor runs a fixed external program, such as ecs-cli, with
// captured output and context cancellation.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Result is the outcome of one run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExitError is returned when the program fails to start or exits non-zero.
// It carries the captured output so callers can report it.
type ExitError struct {
	Program  string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s %s: exit code %d: %v",
		e.Program, strings.Join(e.Args, " "), e.ExitCode, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Options configures a run.
type Options struct {
	CaptureStdout bool
	CaptureStderr bool

	// Output receives both streams as they are written, in addition to
	// capture.
	Output io.Writer

	// Timeout bounds the run. Zero means no limit beyond ctx.
	Timeout time.Duration

	WorkingDir string

	// Env is appended to the current process environment.
	Env map[string]string

	Logger *slog.Logger
}

// Option modifies Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{CaptureStdout: true, CaptureStderr: true}
}

// Program runs one executable with per-program default options.
type Program struct {
	name     string
	defaults Options
}

// NewProgram creates a Program. opts apply to every run and may be
// overridden per call.
func NewProgram(name string, opts ...Option) *Program {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Program{name: name, defaults: o}
}

// Name returns the executable name.
func (p *Program) Name() string {
	return p.name
}

func (p *Program) options(opts []Option) Options {
	o := p.defaults
	o.Env = make(map[string]string, len(p.defaults.Env))
	for k, v := range p.defaults.Env {
		o.Env[k] = v
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Execute runs the program with args. A non-zero exit or spawn failure
// returns both the Result and an *ExitError.
func (p *Program) Execute(ctx context.Context, args []string, opts ...Option) (*Result, error) {
	o := p.options(opts)
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.name, args...)
	cmd.Dir = o.WorkingDir
	if len(o.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range o.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = sink(o.CaptureStdout, &stdout, o.Output)
	cmd.Stderr = sink(o.CaptureStderr, &stderr, o.Output)

	if o.Logger != nil {
		o.Logger.DebugContext(ctx, "running command", "program", p.name, "args", args, "dir", o.WorkingDir)
	}

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
	}

	if o.Logger != nil {
		o.Logger.DebugContext(ctx, "command finished",
			"program", p.name,
			"exit_code", res.ExitCode,
			"duration", res.Duration)
	}

	if err != nil {
		return res, &ExitError{
			Program:  p.name,
			Args:     args,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}
	return res, nil
}

func sink(capture bool, buf *bytes.Buffer, output io.Writer) io.Writer {
	switch {
	case capture && output != nil:
		return io.MultiWriter(buf, output)
	case capture:
		return buf
	default:
		return output
	}
}

// WithCapture selects which streams are captured into the Result.
func WithCapture(stdout, stderr bool) Option {
	return func(o *Options) {
		o.CaptureStdout = stdout
		o.CaptureStderr = stderr
	}
}

// WithOutput streams both stdout and stderr to w while the program runs.
func WithOutput(w io.Writer) Option {
	return func(o *Options) {
		o.Output = w
	}
}

// WithTimeout bounds the run.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithWorkingDir sets the working directory.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}
		for k, v := range env {
			o.Env[k] = v
		}
	}
}

// WithLogger logs each run at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}
