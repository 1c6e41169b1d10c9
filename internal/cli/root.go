// Package cli implements ragdexctl, the offline admin tool that works
// directly on the configured index directory.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/app"
	"github.com/kailas-cloud/ragdex/internal/config"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/version"
)

// runtime is the state shared by subcommands for one invocation.
type runtime struct {
	configPath string
	env        string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
	app    *app.App
}

// NewRootCommand builds the ragdexctl command tree.
func NewRootCommand() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "ragdexctl",
		Short: "Administer a ragdex index",
		Long: `ragdexctl ingests, deletes and searches documents and checks the
catalog/index invariant directly on the configured index, without the HTTP
server. Do not run it against an index a live server is writing to.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&rt.configPath, "config", "c", "", "path to a config file (default: config/<ENV>.yaml)")
	root.PersistentFlags().StringVar(&rt.env, "env", "", "config environment (default: $ENV or local)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newIngestCmd(rt),
		newDeleteCmd(rt),
		newSearchCmd(rt),
		newCheckCmd(rt),
		newStatsCmd(rt),
		newDocsCmd(rt),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	_ = godotenv.Load()

	root := NewRootCommand()
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// open loads configuration and assembles the service. Callers must call
// close afterwards.
func (rt *runtime) open(ctx context.Context) error {
	cfg, err := rt.loadConfig()
	if err != nil {
		return err
	}
	rt.cfg = cfg

	level := ""
	if rt.verbose {
		level = "debug"
	}
	rt.logger, err = logpkg.NewLogger("cli", level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	rt.app, err = app.New(ctx, cfg, rt.logger)
	if err != nil {
		return err
	}
	return nil
}

func (rt *runtime) loadConfig() (config.Config, error) {
	if rt.configPath != "" {
		return config.LoadFile(rt.configPath)
	}
	env := rt.env
	if env == "" {
		env = config.GetEnv()
	}
	return config.Load(env)
}

func (rt *runtime) close() {
	if rt.app != nil {
		rt.app.Close()
		rt.app = nil
	}
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
}

// withApp wraps a RunE body with open and close.
func (rt *runtime) withApp(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := rt.open(ctx); err != nil {
			return err
		}
		defer rt.close()
		return run(cmd, args)
	}
}

var errInconsistent = errors.New("index is inconsistent")
