package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/username/school-status/internal/build"
	"github.com/username/school-status/internal/calendar"
	"github.com/username/school-status/internal/config"
	"github.com/username/school-status/internal/daemon"
	"github.com/username/school-status/internal/server"
	"github.com/username/school-status/internal/validate"
	"go.uber.org/zap"
)

func validateCmd() *cobra.Command {
	var asJSON bool
	var types []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check every calendar document and report all violations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp()
			if err != nil {
				return err
			}

			violations := runValidation(cmd.Context(), a.validator, types)
			return printViolations(cmd.OutOrStdout(), violations, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print violations as JSON")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Only validate these calendar types (globals are skipped)")

	return cmd
}

func runValidation(ctx context.Context, engine *validate.Engine, types []string) []validate.Violation {
	if len(types) == 0 {
		return engine.ValidateAll(ctx)
	}

	p := pool.NewWithResults[[]validate.Violation]()
	for _, t := range types {
		p.Go(func() []validate.Violation {
			return engine.ValidateCalendarType(ctx, calendar.CalendarType(t))
		})
	}

	var violations []validate.Violation
	for _, group := range p.Wait() {
		violations = append(violations, group...)
	}
	return violations
}

func printViolations(w io.Writer, violations []validate.Violation, asJSON bool) error {
	if len(violations) == 0 {
		fmt.Fprintln(w, "OK")
		return nil
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(violations); err != nil {
			return fmt.Errorf("failed to encode violations: %w", err)
		}
	} else {
		for _, v := range violations {
			fmt.Fprintln(w, v.String())
		}
	}

	return fmt.Errorf("%d violation(s) found", len(violations))
}

func buildCmd() *cobra.Command {
	targets := make([]string, 0, len(build.Targets()))
	for _, t := range build.Targets() {
		targets = append(targets, string(t))
	}

	cmd := &cobra.Command{
		Use:       "build [" + strings.Join(targets, "|") + "]",
		Short:     "Write the static API documents and calendar exports",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: targets,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := build.TargetAll
			if len(args) == 1 {
				t, err := build.ParseTarget(args[0])
				if err != nil {
					return err
				}
				target = t
			}

			a, err := initializeApp()
			if err != nil {
				return err
			}

			if err := a.builder.Build(cmd.Context(), target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Built %s into %s\n", target, a.cfg.Output.Root)
			return nil
		},
	}

	return cmd
}

func dayCmd() *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "day <date>",
		Short: "Print the resolved schedule of one date as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cts, err := parseTypes(types)
			if err != nil {
				return err
			}

			a, err := initializeApp()
			if err != nil {
				return err
			}

			day, err := a.aggregator.ResolveDay(cmd.Context(), args[0], cts...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), day)
		},
	}

	cmd.Flags().StringSliceVar(&types, "type", nil, "Calendar types to resolve (default all)")

	return cmd
}

func rangeCmd() *cobra.Command {
	var types []string

	cmd := &cobra.Command{
		Use:   "range <start> <end>",
		Short: "Print the resolved schedules of every date in an inclusive range as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cts, err := parseTypes(types)
			if err != nil {
				return err
			}

			a, err := initializeApp()
			if err != nil {
				return err
			}

			days, err := a.aggregator.ResolveRange(cmd.Context(), args[0], args[1], cts...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), days)
		},
	}

	cmd.Flags().StringSliceVar(&types, "type", nil, "Calendar types to resolve (default all)")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <type> <year>",
		Short: "Print the iCalendar export of a calendar type and year",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, err := calendar.ParseCalendarType(args[0])
			if err != nil {
				return err
			}
			year, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid year '%s': %w", args[1], err)
			}

			a, err := initializeApp()
			if err != nil {
				return err
			}

			return a.exporter.Write(cmd.Context(), cmd.OutOrStdout(), ct, year)
		},
	}

	return cmd
}

func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live resolutions and the generated site over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp()
			if err != nil {
				return err
			}

			addr := a.cfg.Server.GetListen()
			if listen != "" {
				addr = listen
			}

			h := server.NewHandler(a.aggregator, a.resolver, a.exporter, logger)
			srv := server.New(addr, server.Routes(h, a.cfg.Output.Root), a.cfg.Server.GetShutdownTimeout(), logger)

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides server.listen)")

	return cmd
}

func daemonCmd() *cobra.Command {
	var serve bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Rebuild everything on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := initializeApp()
			if err != nil {
				return err
			}

			d, err := daemon.NewDaemon(a.builder, a.cfg.Daemon.GetSchedule(), a.cfg.Daemon.RunOnStart, a.loc, logger)
			if err != nil {
				return err
			}

			if !serve {
				return d.Start(cmd.Context())
			}

			// run the HTTP server next to the scheduler
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			h := server.NewHandler(a.aggregator, a.resolver, a.exporter, logger)
			srv := server.New(a.cfg.Server.GetListen(), server.Routes(h, a.cfg.Output.Root), a.cfg.Server.GetShutdownTimeout(), logger)

			p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
			p.Go(func(ctx context.Context) error { return d.Run(ctx) })
			p.Go(func(ctx context.Context) error { return srv.Run(ctx) })
			return p.Wait()
		},
	}

	cmd.Flags().BoolVar(&serve, "serve", false, "Also run the HTTP server")

	return cmd
}

func initConfigCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(args[0], force); err != nil {
				return err
			}
			logger.Info("Default config written", zap.String("path", args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func parseTypes(types []string) ([]calendar.CalendarType, error) {
	cts := make([]calendar.CalendarType, 0, len(types))
	for _, t := range types {
		ct, err := calendar.ParseCalendarType(t)
		if err != nil {
			return nil, err
		}
		cts = append(cts, ct)
	}
	return cts, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
