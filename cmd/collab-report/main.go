package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kuhlman-labs/collab-report/internal/audit"
	"github.com/kuhlman-labs/collab-report/internal/config"
	"github.com/kuhlman-labs/collab-report/internal/github"
	"github.com/kuhlman-labs/collab-report/internal/logging"
	"github.com/kuhlman-labs/collab-report/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collab-report [flags]",
		Short: "Report repository collaborators of a GitHub organization",
		Long: "Collect every collaborator of every repository in a GitHub organization with " +
			"their permission, SSO identity, organization role and recent contributions, " +
			"and commit the result as CSV (and optionally JSON) to a repository.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to load config: %v\n", err)
				return err
			}

			logger, _ := logging.WithRunID(logging.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging))
			slog.SetDefault(logger)

			if err := run(cmd.Context(), cfg, logger, cmd.OutOrStdout()); err != nil {
				logger.Error("Collaborator report failed", "error", err)
				return err
			}
			return nil
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// run collects, renders and persists one report, then prints the summary
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	variant, err := audit.ParseVariant(cfg.Report.Variant)
	if err != nil {
		return err
	}

	retry := github.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Fetch.MaxAttempts

	client, err := github.NewClient(github.ClientConfig{
		BaseURL:           cfg.GitHub.BaseURL,
		Token:             cfg.GitHub.Token,
		AppID:             cfg.GitHub.AppID,
		AppPrivateKey:     cfg.GitHub.AppPrivateKey,
		AppInstallationID: cfg.GitHub.AppInstallationID,
		Timeout:           cfg.GitHub.Timeout,
		PageDelay:         cfg.Fetch.PageDelay,
		RetryConfig:       retry,
		Logger:            logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	sink, err := newSink(cfg, client)
	if err != nil {
		return err
	}

	collector := audit.NewCollector(client, audit.Options{
		Organization: cfg.Report.Organization,
		Permission:   cfg.Report.Permission,
		Affiliation:  cfg.Report.Affiliation,
		Variant:      variant,
		Days:         cfg.Report.Days,
	}, logger)

	result, err := collector.Run(ctx)
	if err != nil {
		return err
	}

	files, err := report.Render(result, report.RenderOptions{
		Affiliation: cfg.Report.Affiliation,
		Permission:  cfg.Report.Permission,
		JSON:        cfg.Report.JSON,
	})
	if err != nil {
		return err
	}

	published, err := report.Emit(ctx, sink, files, logger)
	if err != nil {
		return err
	}

	report.WriteSummary(stdout, result, published)
	if path := os.Getenv("GITHUB_STEP_SUMMARY"); path != "" {
		if err := report.WriteStepSummary(path, result, published); err != nil {
			logger.Warn("Failed to write step summary", "error", err)
		}
	}
	return nil
}

// newSink picks the local directory writer for dry runs, otherwise the repository publisher
func newSink(cfg *config.Config, client *github.Client) (report.Sink, error) {
	if cfg.Output.Dir != "" {
		return report.NewDirWriter(cfg.Output.Dir), nil
	}
	return report.NewPublisher(client, cfg.Report.TargetRepository, cfg.Report.Branch, github.CommitIdentity{
		Name:  cfg.Report.CommitterName,
		Email: cfg.Report.CommitterEmail,
	})
}
