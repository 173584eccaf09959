package internal

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goplus/pkgsmith/internal/build"
	"github.com/goplus/pkgsmith/internal/catalog"
	"github.com/goplus/pkgsmith/internal/config"
	"github.com/goplus/pkgsmith/internal/env"
	"github.com/goplus/pkgsmith/internal/errors"
	"github.com/goplus/pkgsmith/internal/fetch"
	"github.com/goplus/pkgsmith/internal/logging"
	"github.com/goplus/pkgsmith/internal/metrics"
	"github.com/goplus/pkgsmith/internal/publish"
	"github.com/goplus/pkgsmith/internal/vcs"
	"github.com/goplus/pkgsmith/pkgs/buildsys"
)

var (
	configPath string
	logLevel   string
	workDir    string
)

var rootCmd = &cobra.Command{
	Use:   "pkgsmith",
	Short: "pkgsmith builds and packages native dependencies",
	Long: `pkgsmith fetches a native library, builds it with its own build system for a
target platform and lays the result out as a package with consumption metadata.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Configuration file (default $PKGSMITH_CONFIG or <UserConfigDir>/pkgsmith/config.toml)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&workDir, "work-dir", "", "Work directory holding sources, builds and packages")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Configuration("%v", err)
	})
}

// session is what the commands of one invocation share.
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	catalog *catalog.Catalog
}

var sess session

func setup(cmd *cobra.Command, args []string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if workDir != "" {
		cfg.WorkDir = workDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger.Debug("configuration", zap.Stringer("config", cfg))

	opts := []catalog.Option{
		catalog.WithDirs(cfg.RecipeDirs...),
		catalog.WithVCS(gitVCS(cfg)),
		catalog.WithLogger(logger),
	}
	if cfg.RecipeRepo != "" {
		dir, err := env.RecipeRepoDir(cfg.WorkDir)
		if err != nil {
			return err
		}
		opts = append(opts, catalog.WithRepo(cfg.RecipeRepo, cfg.RecipeRepoRef, dir))
	}
	sess = session{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		catalog: catalog.New(opts...),
	}
	return nil
}

func gitVCS(cfg *config.Config) vcs.VCS {
	return vcs.NewGitVCS(vcs.WithGitPath(cfg.Tools.Git))
}

func (s *session) fetcher() *fetch.Fetcher {
	return fetch.New(fetch.WithVCS(gitVCS(s.cfg)), fetch.WithLogger(s.logger))
}

// builder returns a Builder for the session. Tool output goes to stderr
// when verbose is set; it is captured either way.
func (s *session) builder(verbose bool) (*build.Builder, error) {
	pub, err := publish.New(s.cfg.Generators, s.logger)
	if err != nil {
		return nil, err
	}
	runner := &buildsys.Runner{Logger: s.logger}
	if verbose {
		runner.Output = os.Stderr
	}
	return build.NewBuilder(s.cfg.WorkDir,
		build.WithFetcher(s.fetcher()),
		build.WithSystems(build.Systems(runner, s.cfg.Tools, s.cfg.CMake)),
		build.WithPublisher(pub),
		build.WithMetrics(s.metrics),
		build.WithLogger(s.logger),
		build.WithStrictPlatforms(s.cfg.StrictPlatforms),
		build.WithJobs(s.cfg.Jobs),
	), nil
}

// close writes the metrics text file and flushes the logger.
func (s *session) close() {
	if s.logger == nil {
		return
	}
	if path := s.cfg.Metrics.Textfile; path != "" {
		if err := s.metrics.WriteTextfile(path); err != nil {
			s.logger.Warn("write metrics", zap.String("path", path), zap.Error(err))
		}
	}
	_ = s.logger.Sync()
}

// Execute runs the command line and returns the process exit code. SIGINT
// and SIGTERM cancel the running command, killing any build tool it runs.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	sess.close()
	if err != nil {
		report(os.Stderr, err)
		return exitCode(err)
	}
	return 0
}
