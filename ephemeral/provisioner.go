package ephemeral

import (
	"log/slog"

	"github.com/trussworks/ephemeral-env/fs"
)

// Provisioner reconciles and removes environment resources.
//
// Thread Safety: a Provisioner holds no mutable state and may be shared.
// Concurrent operations on the same environment must be serialized by the
// caller, see Manager.
type Provisioner struct {
	lbs      LoadBalancers
	records  Records
	services Services

	runner    CommandRunner
	files     fs.Filesystem
	deployDir string
	taskRole  string

	logger *slog.Logger
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provisioner) {
		p.logger = logger
	}
}

// WithLauncher configures the service launcher: files holds the parameter
// template and output, runner runs ecs-cli and deployDir is its working
// directory.
func WithLauncher(files fs.Filesystem, runner CommandRunner, deployDir string) Option {
	return func(p *Provisioner) {
		p.files = files
		p.runner = runner
		p.deployDir = deployDir
	}
}

// WithTaskExecutionRole overrides the task execution role written into the
// rendered parameter document.
func WithTaskExecutionRole(role string) Option {
	return func(p *Provisioner) {
		if role != "" {
			p.taskRole = role
		}
	}
}

// New creates a Provisioner.
func New(lbs LoadBalancers, records Records, services Services, opts ...Option) *Provisioner {
	p := &Provisioner{
		lbs:      lbs,
		records:  records,
		services: services,
		taskRole: DefaultTaskExecution,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}
