package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"plansync/internal/application"
	"plansync/internal/application/commands"
	"plansync/internal/bootstrap"
	"plansync/internal/config"
	"plansync/internal/domain"
	"plansync/internal/logging"
)

var (
	repoDir  string
	logLevel string
	jsonLogs bool

	runtime *bootstrap.Runtime
	logger  zerolog.Logger
)

// exitError carries a process exit code for an operation whose report
// was already printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:   "plansync",
	Short: "Sync release plans between git and the planning service",
	Long: `plansync keeps a release plan in two places at once: the planning
service, which stays the system of record, and a markdown document in
this git repository that you edit like any other file.

Each team/release pair gets a tracking branch mirroring the service and
a working branch for your edits. pull brings remote changes in, push
sends your commits out, and every operation is recorded in an audit log.

Examples:
  plansync init core/r1
  plansync edit core/r1
  plansync push core/r1
  plansync log core/r1`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		cfg, err := config.Load(repoDir)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		format := logging.Console
		if jsonLogs {
			format = logging.JSON
		}
		logger = logging.Init("plansync", format, cfg.LogLevel)

		runtime, err = bootstrap.Open(cfg, logger)
		return err
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if runtime != nil {
		if cerr := runtime.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("shutdown")
		}
	}
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&repoDir, "repo", "C", ".", "path to the git repository")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "write logs as JSON lines")
}

// GetRuntime returns the wired engine
func GetRuntime() *bootstrap.Runtime {
	return runtime
}

// report prints res and maps its outcome to an exit code: conflicts
// exit 2, rejections and failures exit 1.
func report(cmd *cobra.Command, res *application.Result, err error) error {
	if res == nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), commands.FormatResult(res))
	if err != nil {
		logger.Debug().Err(err).Str("audit", res.AuditID).Msg("operation failed")
	}

	switch {
	case res.Succeeded() && err == nil:
		return nil
	case res.Outcome == domain.OutcomeConflict:
		return &exitError{code: 2}
	default:
		return &exitError{code: 1}
	}
}
