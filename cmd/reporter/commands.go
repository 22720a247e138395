package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"reporter/internal/app"
)

func newRunCommand(g *globalFlags) *cobra.Command {
	var (
		agentID string
		serial  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every enabled agent, or one with --agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			sch := s.rt.Scheduler("")
			if err := sch.Load(ctx); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if agentID != "" {
				res := sch.ExecuteByID(ctx, agentID)
				renderResult(out, res)
				if !res.Success {
					return errFailed
				}
				return nil
			}

			if ok, errs := sch.ValidateAll(); !ok {
				for _, id := range slices.Sorted(maps.Keys(errs)) {
					fmt.Fprintf(out, "%s %v\n", idColumn.Render(id), errs[id])
				}
				fmt.Fprintln(out, failStyle.Render("configuration is invalid; nothing executed"))
				return errFailed
			}
			results := sch.ExecuteAll(ctx, !serial)
			if len(results) == 0 {
				renderFailures(out, sch.Failures())
				fmt.Fprintln(out, warnStyle.Render("no agents executed"))
				return errFailed
			}
			renderResults(out, results)
			renderFailures(out, sch.Failures())
			for _, r := range results {
				if !r.Success {
					return errFailed
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&agentID, "agent", "a", "", "run only this agent id")
	cmd.Flags().BoolVar(&serial, "serial", false, "run agents one at a time with a gap between them")
	return cmd
}

func newListCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the agents defined in the task file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			sch := s.rt.Scheduler("")
			if err := sch.Load(cmd.Context()); err != nil {
				return err
			}
			renderAgents(cmd.OutOrStdout(), sch.Source(), sch.List(), sch.Failures())
			return nil
		},
	}
}

func newValidateCommand(g *globalFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the task file, or every task file with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			var paths []string
			if all {
				if paths, err = discover(s.rt); err != nil {
					return err
				}
			} else {
				// materialize the example file when the source is missing
				sch := s.rt.Scheduler("")
				if err := sch.Load(ctx); err != nil {
					return err
				}
				paths = []string{sch.Source()}
			}

			checks := make([]app.FileCheck, 0, len(paths))
			ok := true
			for _, p := range paths {
				c := s.rt.CheckFile(ctx, p)
				ok = ok && c.OK()
				checks = append(checks, c)
			}
			renderChecks(cmd.OutOrStdout(), checks)
			if !ok {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "validate every task file in --config-dir")
	return cmd
}

func newTypesCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "Show the registered agent types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()
			renderTypes(cmd.OutOrStdout(), s.rt.Registry().Describe())
			return nil
		},
	}
}

func newTickCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run the tasks due this minute once (for system cron)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			rep, err := app.New(s.rt).Tick(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), rep)
			if !rep.OK() {
				return errFailed
			}
			return nil
		},
	}
}

func newDueCommand(g *globalFlags) *cobra.Command {
	var (
		at   string
		next int
	)
	cmd := &cobra.Command{
		Use:   "due",
		Short: "Show which tasks are due, without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			now := time.Now()
			if at != "" {
				if now, err = parseAt(at, s.rt.Location()); err != nil {
					return err
				}
			}
			sel, err := s.rt.Selector().Select(cmd.Context(), now)
			if err != nil {
				return err
			}
			renderSelection(cmd.OutOrStdout(), sel)
			if next > 0 {
				renderUpcoming(cmd.OutOrStdout(), upcoming(sel.Files, now, s.rt.Location(), next))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", `evaluate at this time ("2006-01-02 15:04" in --tz, or RFC 3339)`)
	cmd.Flags().IntVar(&next, "next", 0, "also list the next N fire times of every scheduled task")
	return cmd
}

func newServeCommand(g *globalFlags) *cobra.Command {
	var shutdown time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run due tasks every minute until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			a := app.New(s.rt)
			if err := a.Start(ctx); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
			case <-a.Done():
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), shutdown)
			defer cancel()
			if err := a.Stop(stopCtx); err != nil {
				return err
			}
			return a.Err()
		},
	}
	cmd.Flags().DurationVar(&shutdown, "shutdown-timeout", 30*time.Second, "how long to wait for a running tick on shutdown")
	return cmd
}
