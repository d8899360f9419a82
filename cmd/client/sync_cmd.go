package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openmined/syftsync/internal/identity"
	"github.com/openmined/syftsync/internal/syncer"
	"github.com/spf13/cobra"
)

// sync commands never fail the caller's workflow; problems are printed as advisories
type syncRun func(ctx context.Context, out io.Writer, s *syncer.Syncer, projectID string) error

func withSyncer(run syncRun) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		projectID, err := resolveProject(cfg)
		if err != nil {
			return fmt.Errorf("project id: %w", err)
		}

		s, err := syncer.New(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		slog.Debug("sync command", "cmd", cmd.Name(), "project", projectID, "config", cfg)
		return run(cmd.Context(), cmd.OutOrStdout(), s, projectID)
	}
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Lock the project and download newer files",
		Args:  cobra.NoArgs,
		RunE: withSyncer(func(ctx context.Context, out io.Writer, s *syncer.Syncer, projectID string) error {
			res := s.Pull(ctx, projectID)
			printAdvisory(out, res.Synced, res.Message)
			printTransfers(out, res.Files)
			return nil
		}),
	}
}

func newPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload newer files and release the project lock",
		Args:  cobra.NoArgs,
		RunE: withSyncer(func(ctx context.Context, out io.Writer, s *syncer.Syncer, projectID string) error {
			res := s.Push(ctx, projectID)
			printAdvisory(out, res.Pushed, res.Message)
			printTransfers(out, res.Files)
			return nil
		}),
	}
}

func newSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Pull, hold the lock until interrupted, then push",
		Args:  cobra.NoArgs,
		RunE: withSyncer(func(ctx context.Context, out io.Writer, s *syncer.Syncer, projectID string) error {
			pulled := s.Pull(ctx, projectID)
			printAdvisory(out, pulled.Synced, pulled.Message)
			printTransfers(out, pulled.Files)

			fmt.Fprintf(out, "%s editing %s, press Ctrl+C to push and exit\n", cyan("»"), s.ProjectDir(projectID))
			waitForSignal(ctx)

			// the command context is already cancelled at this point
			res := s.Push(context.WithoutCancel(ctx), projectID)
			printAdvisory(out, res.Pushed, res.Message)
			printTransfers(out, res.Files)
			return nil
		}),
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync configuration and coordinator reachability",
		Args:  cobra.NoArgs,
		RunE: withSyncer(func(ctx context.Context, out io.Writer, s *syncer.Syncer, projectID string) error {
			st := s.Status(ctx, projectID)
			fmt.Fprintf(out, "%-14s %v\n", "enabled", st.Enabled)
			fmt.Fprintf(out, "%-14s %s\n", "project", st.ProjectID)
			fmt.Fprintf(out, "%-14s %s\n", "directory", s.ProjectDir(projectID))
			if st.Enabled {
				fmt.Fprintf(out, "%-14s %s\n", "client", st.ClientID)
				fmt.Fprintf(out, "%-14s %v\n", "reachable", st.Reachable)
				fmt.Fprintf(out, "%-14s %v\n", "auth required", st.AuthRequired)
			}
			printAdvisory(out, !st.Enabled || st.Reachable, st.Message)
			return nil
		}),
	}
}

func newIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Print this machine's client id and the current project id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			projectID, err := resolveProject(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %s\n", "client", identity.GetClientID(cfg.DataDir))
			fmt.Fprintf(out, "%-8s %s\n", "project", projectID)
			return nil
		},
	}
}

func waitForSignal(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
}
