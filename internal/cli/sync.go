package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dl-alexandre/dirsync/internal/auth"
	"github.com/dl-alexandre/dirsync/internal/backend"
	"github.com/dl-alexandre/dirsync/internal/backend/ftp"
	"github.com/dl-alexandre/dirsync/internal/config"
	"github.com/dl-alexandre/dirsync/internal/errors"
	"github.com/dl-alexandre/dirsync/internal/logging"
	"github.com/dl-alexandre/dirsync/internal/resolver"
	syncengine "github.com/dl-alexandre/dirsync/internal/sync"
	"github.com/dl-alexandre/dirsync/internal/sync/diff"
)

var planCmd = &cobra.Command{
	Use:   "plan [flags] DIRLEFT DIRRIGHT",
	Short: "Show the operations a run would apply",
	Long:  "Scan both directories and print the plan without changing anything. Same as --dry-run.",
	Args:  dirArgs,
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	return runPass(cmd, args, "sync", false)
}

func runPlan(cmd *cobra.Command, args []string) error {
	return runPass(cmd, args, "plan", true)
}

// runPass parses the configuration, opens both backends and runs one
// synchronization pass, printing the plan or the summary.
func runPass(cmd *cobra.Command, args []string, command string, planOnly bool) error {
	cfg, err := setupRun(cmd, args)
	if err != nil {
		return err
	}
	dryRun := cfg.DryRun || planOnly

	out := NewOutputWriter(cfg.Output, cfg.Quiet, cfg.Debug)
	out.SetWriters(cmd.OutOrStdout(), cmd.ErrOrStderr())
	for _, w := range cfg.Warnings() {
		out.AddWarning(w.Code, w.Message, w.Severity)
		logger.Warn(w.Message)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithTraceID(ctx, traceID)

	mode := diff.ParseMode(cfg.Mirroring)
	logger.Info("Arguments parsed",
		logging.F("left", displayPath(cfg.Left)),
		logging.F("right", displayPath(cfg.Right)),
		logging.F("mode", string(mode)),
		logging.F("preserve_dirright", cfg.PreserveDirRight),
		logging.F("dry_run", dryRun),
	)
	if logFile := cfg.LogFilePath(); logFile != "" {
		logger.Info("Logging to file", logging.F("path", logFile))
	} else {
		logger.Info("Log file disabled")
	}

	left, right, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	eng := syncengine.NewEngine(left, right, syncengine.Options{
		Mode:             mode,
		PreserveDirRight: cfg.PreserveDirRight,
		DryRun:           dryRun,
		Exclude:          cfg.ExcludeMatcher(),
	}, logger)
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("Closing backends failed", logging.F("error", err.Error()))
		}
	}()

	plan, err := eng.Plan(ctx)
	if err != nil {
		return err
	}
	if dryRun {
		return out.WriteSuccess(command, newPlanView(plan))
	}

	if plan.IsEmpty() {
		logger.Info("Nothing to do")
		return out.WriteSuccess(command, newSummaryView(syncengine.Result{Plan: plan}))
	}

	logger.Info("Applying changes")
	result, err := eng.Apply(ctx, plan)
	if err != nil {
		return err
	}
	logger.Info("Synchronization complete",
		logging.F("copied_to_left", result.Summary.Side(diff.SideLeft).FilesCopied),
		logging.F("copied_to_right", result.Summary.Side(diff.SideRight).FilesCopied),
		logging.F("bytes", humanize.Bytes(result.Summary.Side(diff.SideLeft).BytesCopied+result.Summary.Side(diff.SideRight).BytesCopied)),
	)
	return out.WriteSuccess(command, newSummaryView(result))
}

// openBackends resolves both directories; on failure nothing stays open.
func openBackends(ctx context.Context, cfg *config.Config) (backend.Backend, backend.Backend, error) {
	ftpOpts := ftp.Options{
		Timeout:      cfg.FTPTimeout,
		CacheSize:    cfg.StatCacheSize,
		UseTreeCache: cfg.FTPTreeCache,
		Logger:       logger,
	}
	if cfg.Keyring {
		mgr := auth.NewManager(getConfigDir())
		if warning := mgr.GetStorageWarning(); warning != "" {
			logger.Debug(warning)
		}
		ftpOpts.Passwords = mgr.Password
	}
	router := resolver.NewRouter(resolver.Options{FTP: ftpOpts, Logger: logger})

	left, err := router.Resolve(ctx, cfg.Left)
	if err != nil {
		return nil, nil, errors.Classify("connect", displayPath(cfg.Left), err, logger)
	}
	right, err := router.Resolve(ctx, cfg.Right)
	if err != nil {
		_ = left.Close()
		return nil, nil, errors.Classify("connect", displayPath(cfg.Right), err, logger)
	}
	logger.Info("Backends ready",
		logging.F("left", string(left.Kind())),
		logging.F("right", string(right.Kind())),
	)
	return left, right, nil
}

func displayPath(p string) string {
	return ftp.RedactURL(p)
}
