package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"launchdeck/internal/audit"
	"launchdeck/internal/config"
	"launchdeck/internal/launchd"
	"launchdeck/internal/manager"
	"launchdeck/internal/procs"
	"launchdeck/internal/schedule"
	"launchdeck/internal/watch"
)

type app struct {
	cfgPath  string
	logLevel string

	cfg config.Config
	log zerolog.Logger
	mgr *manager.Manager
	aud *audit.Log
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "launchdeck",
		Short:         "Manage recurring launchd jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.aud.Close()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", defaultConfigPath(), "path to config yaml")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override configured log level")

	root.AddCommand(
		a.listCmd(),
		a.jobsCmd(),
		a.showCmd(),
		a.createCmd(),
		a.actionCmd("load", "Load a job into launchd", a.withMgr((*manager.Manager).Load)),
		a.actionCmd("unload", "Unload a job (idempotent)", a.withMgr((*manager.Manager).Unload)),
		a.actionCmd("restart", "Unload then load a job", a.withMgr((*manager.Manager).Restart)),
		a.actionCmd("run", "Kickstart a job now", a.withMgr((*manager.Manager).Kickstart)),
		a.actionCmd("remove", "Unload a job and delete its definition", a.withMgr((*manager.Manager).Remove)),
		a.watchCmd(),
		a.psCmd(),
	)
	return root
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.config/launchdeck/config.yaml"
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.log = newLogger(level)

	if home, err := os.UserHomeDir(); err == nil {
		aud, err := audit.Open(home + "/.local/state/launchdeck/audit.jsonl")
		if err != nil {
			a.log.Debug().Err(err).Msg("audit log unavailable")
		} else {
			a.aud = aud
		}
	}

	mgr, err := manager.New(cfg, manager.Options{Audit: a.aud}, a.log)
	if err != nil {
		return err
	}
	a.mgr = mgr
	return nil
}

func (a *app) withMgr(fn func(*manager.Manager, context.Context, string) error) func(context.Context, string) error {
	return func(ctx context.Context, label string) error {
		return fn(a.mgr, ctx, label)
	}
}

func (a *app) actionCmd(name, short string, fn func(context.Context, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <label>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return fn(cmd.Context(), args[0])
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List managed jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			views, err := a.mgr.ListManagedAgents(cmd.Context())
			if err != nil {
				return err
			}
			printViews(views)
			return nil
		},
	}
}

func (a *app) jobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List every known job, including ones without a definition file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			views, err := a.mgr.ListAllJobs(cmd.Context())
			if err != nil {
				return err
			}
			printViews(views)
			return nil
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <label>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.mgr.Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printJob(os.Stdout, v)
			return nil
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	var (
		label     string
		command   string
		argsLine  string
		runAtLoad bool
		every     time.Duration
		at        string
		weekdays  string
		doLoad    bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create or update a job definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := &launchd.Draft{
				Label:     label,
				Command:   command,
				ArgsLine:  argsLine,
				RunAtLoad: runAtLoad,
				Mode:      schedule.KindManual,
			}
			switch {
			case every > 0 && at != "":
				return fmt.Errorf("--every and --at are mutually exclusive")
			case every > 0:
				d.Mode = schedule.KindInterval
				d.IntervalSeconds = int(every / time.Second)
			case at != "":
				hour, minute, err := parseHHMM(at)
				if err != nil {
					return err
				}
				days, err := parseWeekdays(weekdays)
				if err != nil {
					return err
				}
				d.Mode = schedule.KindCalendar
				d.Hour, d.Minute, d.Weekdays = hour, minute, days
			}

			def, err := a.mgr.CreateOrUpdate(cmd.Context(), d)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (%s)\n", def.Label, def.Path, schedule.Describe(def.Schedule))

			if doLoad {
				return a.mgr.Restart(cmd.Context(), def.Label)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "job label (reverse-domain, e.g. com.example.backup)")
	cmd.Flags().StringVar(&command, "command", "", "executable path")
	cmd.Flags().StringVar(&argsLine, "args", "", "arguments (shell-style quoting)")
	cmd.Flags().BoolVar(&runAtLoad, "run-at-load", false, "run once when loaded")
	cmd.Flags().DurationVar(&every, "every", 0, "interval schedule, e.g. 5m, 2h")
	cmd.Flags().StringVar(&at, "at", "", "calendar time HH:MM")
	cmd.Flags().StringVar(&weekdays, "weekdays", "", "comma-separated weekdays 0-6 (0=Sun), empty = daily")
	cmd.Flags().BoolVar(&doLoad, "load", false, "load (or reload) the job after writing")
	_ = cmd.MarkFlagRequired("label")
	_ = cmd.MarkFlagRequired("command")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Continuously show managed jobs, refreshing on change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			interval, err := a.cfg.PollIntervalDuration(5 * time.Second)
			if err != nil {
				return err
			}

			var dirs []string
			dirs = append(dirs, a.mgr.UserDir())
			if a.cfg.IncludeSystem {
				dirs = append(dirs, "/Library/LaunchAgents", "/Library/LaunchDaemons")
			}
			kick, err := watch.Dirs(cmd.Context(), dirs, a.log)
			if err != nil {
				return err
			}

			p := &watch.Poller{
				Interval: interval,
				Log:      a.log,
				Kick:     kick,
				Fn: func(ctx context.Context) error {
					views, err := a.mgr.ListManagedAgents(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("\n%s\n", time.Now().Format(time.TimeOnly))
					printViews(views)
					return nil
				},
			}
			p.Run(cmd.Context())
			return nil
		},
	}
}

func (a *app) psCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ps [filter]",
		Short: "Show running processes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := procs.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				rows = procs.Filter(rows, args[0])
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PID\tNAME\tRSS\tCOMMAND")
			for _, r := range rows {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.PID, r.Name, r.RSS, r.Cmdline)
			}
			return w.Flush()
		},
	}
}

func printJob(out io.Writer, v launchd.JobView) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Label:\t%s\n", v.Label)
	fmt.Fprintf(w, "State:\t%s\n", v.State)
	fmt.Fprintf(w, "Scope:\t%s\n", v.Scope)
	if v.Path != "" {
		fmt.Fprintf(w, "Path:\t%s\n", v.Path)
	}
	if v.Live != nil && v.Live.PID != nil {
		fmt.Fprintf(w, "PID:\t%d\n", *v.Live.PID)
	}
	if v.Live != nil && v.Live.PID == nil && v.Live.LastExit != nil {
		fmt.Fprintf(w, "Last exit:\t%d\n", *v.Live.LastExit)
	}
	if d := v.Definition; d != nil {
		fmt.Fprintf(w, "Program:\t%s\n", d.Program)
		if len(d.Arguments) > 0 {
			fmt.Fprintf(w, "Arguments:\t%s\n", strings.Join(d.Arguments, " "))
		}
		fmt.Fprintf(w, "Run at load:\t%t\n", d.RunAtLoad)
		fmt.Fprintf(w, "Schedule:\t%s\n", schedule.Describe(d.Schedule))
		if t, ok := schedule.Next(d.Schedule, time.Now()); ok {
			fmt.Fprintf(w, "Next run:\t%s\n", t.Format("Mon 2 Jan 15:04"))
		}
	}
	_ = w.Flush()
}

func printViews(views []launchd.JobView) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tSTATE\tSCHEDULE\tNEXT RUN\tPROGRAM")
	now := time.Now()
	for _, v := range views {
		sched, next, program := "-", "-", "-"
		if v.Definition != nil {
			sched = schedule.Describe(v.Definition.Schedule)
			if t, ok := schedule.Next(v.Definition.Schedule, now); ok {
				next = t.Format("Mon 15:04")
			}
			program = v.Definition.Program
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.Label, v.State, sched, next, program)
	}
	_ = w.Flush()
}

func parseHHMM(s string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	return hour, minute, nil
}

func parseWeekdays(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, d)
	}
	return days, nil
}
