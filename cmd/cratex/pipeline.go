package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hypnoticwarchief/cratex/internal/config"
	"github.com/hypnoticwarchief/cratex/internal/dashboard"
)

func newStatusCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the pipeline status",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if watch {
				return a.controller.Run(ctx, nil)
			}
			snap := a.controller.Poll(ctx)
			a.view.RenderSummary(snap.Status)
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling until interrupted")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var (
		workers   int
		batchSize int
		fanOut    bool
		commit    bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Start a dry run over the library",
		Long: `Start a dry run over the library at path (or the current library path).
The run is followed until it completes and the proposed moves are printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}

			cfg := a.cfg.DryRunDefaults()
			if workers > 0 {
				cfg.Workers = workers
			}
			if batchSize > 0 {
				cfg.BatchSize = batchSize
			}
			if fanOut {
				enabled := true
				cfg.SmartFanOut = &enabled
			}

			if err := a.controller.Analyze(ctx, path, &cfg); err != nil {
				return reported(err)
			}
			if err := a.follow(ctx); err != nil {
				return err
			}
			if !commit {
				return nil
			}
			if err := a.controller.Commit(ctx); err != nil {
				return reported(err)
			}
			return a.follow(ctx)
		}),
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel workers (1-64)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Files per worker batch")
	cmd.Flags().BoolVar(&fanOut, "fan-out", false, "Log worker fan-out even when disabled in config")
	cmd.Flags().BoolVar(&commit, "execute", false, "Commit the proposed moves once the dry run completes")
	return cmd
}

func newExecuteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "execute",
		Short: "Commit the proposed moves",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.controller.Commit(ctx); err != nil {
				return reported(err)
			}
			return a.follow(ctx)
		}),
	}
}

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Undo the last sort",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.controller.Rollback(ctx); err != nil {
				return reported(err)
			}
			a.controller.Poll(ctx)
			return nil
		}),
	}
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return the pipeline to idle",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if err := a.controller.Reset(ctx); err != nil {
				return reported(err)
			}
			a.view.Notify(dashboard.Notification{Message: "Pipeline reset.", Kind: dashboard.KindInfo})
			return nil
		}),
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and undo past sorts",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sorts",
		Args:  cobra.NoArgs,
		RunE: withApp(func(_ context.Context, a *app, _ []string) error {
			a.view.RenderHistory(a.status.History())
			return nil
		}),
	}

	rollbackCmd := &cobra.Command{
		Use:   "rollback <id>",
		Short: "Undo one recorded sort",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if err := a.status.RollbackHistory(ctx, args[0]); err != nil {
				a.view.ShowError(err)
				return reported(err)
			}
			a.view.Notify(dashboard.Notification{
				Message: fmt.Sprintf("Rolled back %s.", args[0]),
				Kind:    dashboard.KindSuccess,
			})
			return nil
		}),
	}

	cmd.AddCommand(listCmd, rollbackCmd)
	return cmd
}

func newConfigCmd() *cobra.Command {
	var sample bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective pipeline configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sample {
				fmt.Fprint(cmd.OutOrStdout(), config.SampleConfig())
				return nil
			}
			return withApp(func(ctx context.Context, a *app, _ []string) error {
				cfg := a.status.GetConfig(ctx)
				a.view.RenderConfig(cfg, !a.status.IsSimulated())
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&sample, "sample", false, "Print a commented sample configuration file")
	return cmd
}

func newAnalysisCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analysis",
		Short: "Print the library analysis report",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			a.view.RenderAnalysis(a.status.LibraryAnalysis(ctx))
			return nil
		}),
	}
}
