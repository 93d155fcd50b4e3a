package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Gustavofrb/relatorio-mensal/internal/cli"
	"github.com/Gustavofrb/relatorio-mensal/internal/config"
	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/insights"
	"github.com/Gustavofrb/relatorio-mensal/internal/log"
	"github.com/Gustavofrb/relatorio-mensal/internal/period"
	"github.com/Gustavofrb/relatorio-mensal/internal/services"
)

var (
	monthFlag  string
	sourceFlag string
	dirFlag    string
	skipNotify bool
)

var rootCmd = &cobra.Command{
	Use:           "fechamento",
	Short:         "Monthly closing of the short-term rental portfolio",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect, transform, load and report one month",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, cfg, err := bootstrap()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		month, err := period.Resolve(monthFlag, cfg.DefaultMonth, time.Now())
		if err != nil {
			return err
		}

		comps, err := cli.NewFactory(logger).Build(ctx, cfg, cli.Options{
			Source: cli.SourceKind(sourceFlag),
			Dir:    dirFlag,
			Broker: true,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := comps.Cleanup(); err != nil {
				logger.Warn("Cleanup failed", "error", err)
			}
		}()

		opts := []services.RunOption{services.WithTrigger(core.TriggerCLI)}
		if skipNotify {
			opts = append(opts, services.WithoutNotifications())
		}
		report, err := comps.Closing.Run(ctx, month.String(), opts...)
		if err != nil {
			return fmt.Errorf("closing %s failed: %w", month, err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, cfg, err := bootstrap()
		if err != nil {
			return err
		}
		store, err := cli.OpenStore(cmd.Context(), logger, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.VerifySchema(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date at %s\n", cfg.SQLiteDBPath)
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the stored summary of a month",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, cfg, err := bootstrap()
		if err != nil {
			return err
		}
		month, err := period.Resolve(monthFlag, cfg.DefaultMonth, time.Now())
		if err != nil {
			return err
		}
		store, err := cli.OpenStore(cmd.Context(), logger, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		rows, err := store.ListMonthlySummary(cmd.Context(), month.String())
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("no summary stored for %s", month)
		}
		return printSummary(cmd, month.String(), rows)
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify the guest feedback of a month and list recurring issues",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger, cfg, err := bootstrap()
		if err != nil {
			return err
		}
		month, err := period.Resolve(monthFlag, cfg.DefaultMonth, time.Now())
		if err != nil {
			return err
		}

		col, err := cli.NewFactory(logger).NewCollector(cfg, cli.Options{
			Source: cli.SourceKind(sourceFlag),
			Dir:    dirFlag,
		})
		if err != nil {
			return err
		}
		classifier, kind, err := services.NewClassifier(services.ClassifierConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.LLMModel,
		})
		if err != nil {
			return err
		}

		raw, err := col.Collect(cmd.Context(), month)
		if err != nil {
			return err
		}
		classified, err := classifier.Classify(cmd.Context(), raw.Feedback)
		if err != nil {
			return err
		}
		return printIssues(cmd, month.String(), string(kind), classified)
	},
}

func bootstrap() (*log.Logger, *config.Config, error) {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		return nil, nil, err
	}
	return logger, cfg, nil
}

func printSummary(cmd *cobra.Command, month string, rows []core.MonthlySummary) error {
	out := cmd.OutOrStdout()
	stats := core.ComputeStats(rows)
	rating := "n/a"
	if stats.AvgRating != nil {
		rating = fmt.Sprintf("%.2f", *stats.AvgRating)
	}

	fmt.Fprintf(out, "Fechamento %s\n", month)
	fmt.Fprintf(out, "  properties:    %d\n", stats.TotalProperties)
	fmt.Fprintf(out, "  reservations:  %d\n", stats.TotalReservations)
	fmt.Fprintf(out, "  gross revenue: %s\n", core.FormatBRL(stats.TotalRevenue))
	fmt.Fprintf(out, "  net revenue:   %s\n", core.FormatBRL(stats.NetRevenue))
	fmt.Fprintf(out, "  occupancy:     %.1f%%\n", stats.AvgOccupancy)
	fmt.Fprintf(out, "  rating:        %s\n\n", rating)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROPERTY\tGROSS\tNET\tOCCUPANCY\tINSIGHT")
	for _, r := range rows {
		in := insights.PropertyInsight(r)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f%%\t%s\n",
			r.PropertyID, core.FormatBRL(r.GrossRevenue), core.FormatBRL(r.NetRevenue), r.OccupancyRate*100, in.Kind)
	}
	return tw.Flush()
}

func printIssues(cmd *cobra.Command, month, kind string, classified []core.ClassifiedFeedback) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d feedback entries for %s classified with %s\n", len(classified), month, kind)

	issues := insights.RecurringIssues(classified)
	if len(issues) == 0 {
		fmt.Fprintln(out, "no recurring issues")
		return nil
	}
	ids := make([]string, 0, len(issues))
	for id := range issues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(out, "  %s: %s\n", id, strings.Join(issues[id], ", "))
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{runCmd, summaryCmd, classifyCmd} {
		c.Flags().StringVar(&monthFlag, "month", "", "Month to close (YYYY-MM, default is the previous month)")
	}
	for _, c := range []*cobra.Command{runCmd, classifyCmd} {
		c.Flags().StringVar(&sourceFlag, "source", string(cli.SourceAPI), "Where to collect from (api|dir)")
		c.Flags().StringVar(&dirFlag, "dir", "", "Directory with the raw files when --source=dir")
	}
	runCmd.Flags().BoolVar(&skipNotify, "skip-notify", false, "Do not send notifications")

	rootCmd.AddCommand(runCmd, migrateCmd, summaryCmd, classifyCmd)
}

func main() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
