// Package cli implements the cloudfs command-line front-end.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gobeaver/cloudfs"
	"github.com/gobeaver/cloudfs/backends"
	"github.com/gobeaver/cloudfs/internal/metrics"
)

// App wires the command tree to a backend registry. The zero value runs
// against the standard backends and the process's stdout and stderr.
type App struct {
	// NewRegistry builds the registry from the backend settings.
	// Defaults to backends.NewRegistry.
	NewRegistry func(*cloudfs.Config) *cloudfs.Registry

	Out io.Writer
	Err io.Writer

	configPath  string
	cwdFlag     string
	outputFlag  string
	metricsFlag bool

	cfg        Config
	backendCfg *cloudfs.Config
	logger     *zap.Logger
	session    *cloudfs.Session
	promReg    *prometheus.Registry
	pipeline   *metrics.Pipeline
}

// Execute runs the command named by args and releases every backend the
// run opened.
func (a *App) Execute(ctx context.Context, args []string) error {
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.Err == nil {
		a.Err = os.Stderr
	}

	cmd := a.Command()
	cmd.SetArgs(args)
	cmd.SetOut(a.Out)
	cmd.SetErr(a.Err)

	err := cmd.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

// Command builds the cobra command tree.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "cloudfs",
		Short: "Browse, copy and compare files across storage backends",
		Long: `cloudfs exposes local disk, S3, Azure Blob Storage, Google Cloud Storage
and SFTP as one virtual filesystem. Paths start with the backend id:
/local/tmp/, /aws/bucket/key, /az/container/blob, /gcs/bucket/object, /sftp/dir/.
A trailing "/" marks a directory.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to configuration file")
	flags.StringVar(&a.cwdFlag, "cwd", "", "Working directory for relative paths")
	flags.StringVarP(&a.outputFlag, "output", "o", "", "Output format: text or yaml")
	flags.BoolVar(&a.metricsFlag, "metrics", false, "Print pipeline metrics to stderr when done")

	root.AddCommand(
		a.listCommand(),
		a.copyCommand(),
		a.compareCommand(),
		a.backendsCommand(),
	)
	return root
}

func (a *App) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("cwd") {
		cfg.Cwd = a.cwdFlag
	}
	if flags.Changed("output") {
		cfg.Output = a.outputFlag
	}
	if flags.Changed("metrics") {
		cfg.Metrics = a.metricsFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.backendCfg, err = cloudfs.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load backend configuration: %w", err)
	}

	newRegistry := a.NewRegistry
	if newRegistry == nil {
		newRegistry = backends.NewRegistry
	}
	a.session = cloudfs.NewSession(newRegistry(a.backendCfg))
	a.session.ChangeDirectory(cfg.Cwd)

	a.promReg = prometheus.NewRegistry()
	a.pipeline, err = metrics.New(a.promReg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	a.logger.Debug("cloudfs ready",
		zap.String("cwd", a.session.WorkingDirectory()),
		zap.Strings("backends", a.session.Registry().IDs()))
	return nil
}

// close dumps metrics when requested and closes the registry.
func (a *App) close() error {
	var errs []error
	if a.cfg.Metrics && a.promReg != nil {
		errs = append(errs, a.dumpMetrics())
	}
	if a.session != nil {
		errs = append(errs, a.session.Registry().Close())
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *App) dumpMetrics() error {
	families, err := a.promReg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(a.Err, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func (a *App) printer() *printer {
	return &printer{w: a.Out, format: a.cfg.Output}
}

// pipelineOptions returns the options shared by cp and compare.
func (a *App) pipelineOptions() []cloudfs.Option {
	opts := []cloudfs.Option{
		cloudfs.WithLogger(a.logger),
		cloudfs.WithMetrics(a.pipeline),
		cloudfs.WithProgress(func(p cloudfs.Progress) {
			a.logger.Debug("progress",
				zap.String("path", p.Path),
				zap.Int64("processed", p.Processed),
				zap.Int64("discovered", p.Discovered),
				zap.Bool("discovery_done", p.DiscoveryDone))
		}),
	}
	return append(opts, a.backendCfg.PipelineOptions()...)
}

// resolve turns raw into a concrete path and its backend.
func (a *App) resolve(ctx context.Context, raw string) (cloudfs.VirtualPath, cloudfs.Backend, error) {
	vp, err := a.session.ResolvePath(raw)
	if err != nil {
		return cloudfs.VirtualPath{}, nil, err
	}
	b, err := a.session.Backend(ctx, vp)
	if err != nil {
		return cloudfs.VirtualPath{}, nil, err
	}
	return vp, b, nil
}
