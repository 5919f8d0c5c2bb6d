// Package cli holds the flag, environment and wiring code shared by the
// ephemeral and reviewbot commands.
package cli

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/trussworks/ephemeral-env/config"
	"github.com/trussworks/ephemeral-env/errors"
	billyfs "github.com/trussworks/ephemeral-env/fs/billy"
	"github.com/trussworks/ephemeral-env/logging"
	"github.com/trussworks/ephemeral-env/project"
	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
	"github.com/trussworks/ephemeral-env/services/aws/s3"
)

// Globals are the root command's persistent settings.
type Globals struct {
	ConfigPath string
	EnvFile    string
	LogLevel   string
	LogFormat  string

	Logger *slog.Logger
	Lookup config.LookupFunc
	Stderr io.Writer
}

// Bind registers the persistent flags on root and installs PreRun.
func (g *Globals) Bind(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&g.ConfigPath, "config", "", "path or s3:// URL of the CUE configuration (env EPHEMERAL_CONFIG, default ephemeral.cue)")
	flags.StringVar(&g.EnvFile, "env-file", ".env", "dotenv file loaded before reading the environment, ignored when absent")
	flags.StringVar(&g.LogLevel, "log-level", "", "log level debug|info|warn|error (env LOG_LEVEL)")
	flags.StringVar(&g.LogFormat, "log-format", "", "log format json|text|simple (env LOG_FORMAT)")
	root.PersistentPreRunE = g.PreRun
}

// PreRun loads the dotenv file and builds the logger. Variables already set
// in the environment win over the file.
func (g *Globals) PreRun(cmd *cobra.Command, _ []string) error {
	if g.EnvFile != "" {
		if err := godotenv.Load(g.EnvFile); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return errors.WrapWithContext(err, errors.CodeInvalidConfig,
				"failed to load env file", map[string]interface{}{"path": g.EnvFile})
		}
	}
	if g.Lookup == nil {
		g.Lookup = config.OSLookup
	}
	if g.Stderr == nil {
		g.Stderr = cmd.ErrOrStderr()
	}

	level := g.LogLevel
	if level == "" {
		level, _ = g.Lookup(config.EnvLogLevel)
	}
	format := g.LogFormat
	if format == "" {
		format, _ = g.Lookup(config.EnvLogFormat)
	}

	logger, err := logging.New(g.Stderr, level, format)
	if err != nil {
		return err
	}
	g.Logger = logger
	slog.SetDefault(logger)
	return nil
}

// Require returns the named variables or an error listing every missing
// one.
func (g *Globals) Require(names ...string) (map[string]string, error) {
	return config.RequireEnv(g.Lookup, names...)
}

// Optional returns a variable or def when unset.
func (g *Globals) Optional(name, def string) string {
	if v, ok := g.Lookup(name); ok && v != "" {
		return v
	}
	return def
}

// LoadRegistry reads the configuration, from a local file or an s3:// URL,
// and builds the project registry.
func (g *Globals) LoadRegistry(ctx context.Context) (*config.Config, *project.Registry, error) {
	path := g.ConfigPath
	if path == "" {
		path = g.Optional(config.EnvConfigFile, config.DefaultFile)
	}

	var cfg *config.Config
	var err error
	if s3.IsURL(path) {
		cfg, err = g.loadRemote(ctx, path)
	} else {
		cfg, err = loadLocal(ctx, path)
	}
	if err != nil {
		return nil, nil, err
	}

	registry, err := project.NewRegistry(cfg, g.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, registry, nil
}

func loadLocal(ctx context.Context, path string) (*config.Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid configuration path")
	}
	return config.Load(ctx, billyfs.NewOSFS(filepath.Dir(abs)), filepath.Base(abs))
}

// loadRemote reads the configuration from an s3:// URL in AWS_REGION.
func (g *Globals) loadRemote(ctx context.Context, url string) (*config.Config, error) {
	loc, err := s3.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid configuration url")
	}

	region, err := g.Require(config.EnvRegion)
	if err != nil {
		return nil, err
	}
	awsCfg, err := AWSConfig(ctx, region[config.EnvRegion])
	if err != nil {
		return nil, err
	}

	raw, err := s3.NewFromConfig(awsCfg, awsutil.WithLogger(g.Logger)).GetObject(ctx, loc)
	if err != nil {
		code := errors.CodeInvalidConfig
		if stderrors.Is(err, s3.ErrObjectNotFound) {
			code = errors.CodeNotFound
		}
		return nil, errors.WrapWithContext(err, code,
			"failed to read configuration", map[string]interface{}{"path": url})
	}
	return config.Parse(raw, loc.String())
}

// AWSConfig loads the SDK configuration for region with the throttling
// retryer.
func AWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsutil.LoadConfig(ctx, region, awsutil.DefaultRetryer())
	if err != nil {
		return aws.Config{}, errors.WrapWithContext(err, errors.CodeInvalidConfig,
			"failed to load aws configuration", map[string]interface{}{"region": region})
	}
	return cfg, nil
}

// SelectProjects returns the named project, or every project when name is
// empty.
func SelectProjects(registry *project.Registry, name string) ([]*project.Project, error) {
	if name == "" {
		return registry.Projects(), nil
	}
	p, ok := registry.Get(name)
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "unknown project %q", name)
	}
	return []*project.Project{p}, nil
}
