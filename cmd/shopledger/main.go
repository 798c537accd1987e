package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/shopledger/internal/analysis"
	"github.com/joshharrison/shopledger/internal/config"
	"github.com/joshharrison/shopledger/internal/history"
	"github.com/joshharrison/shopledger/internal/model"
	"github.com/joshharrison/shopledger/internal/narrative"
	"github.com/joshharrison/shopledger/internal/pgstore"
	"github.com/joshharrison/shopledger/internal/portfolio"
	"github.com/joshharrison/shopledger/internal/reporter"
	"github.com/joshharrison/shopledger/internal/resource"
	"github.com/joshharrison/shopledger/internal/snapshot"
	"github.com/joshharrison/shopledger/internal/ui"
	"github.com/joshharrison/shopledger/internal/viewer"
	"github.com/joshharrison/shopledger/internal/watch"
)

var (
	flagSnapshot string
	flagProject  string
	flagDB       string
	flagConfig   string
	flagJSON     bool
	flagFormat   string
	flagNow      string
	flagCapacity float64
	flagMonth    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shopledger",
		Short: "Schedule, earned value, cost and resource analysis for shop projects",
		Long: `Shopledger reads a project's phases, cost ledger and resource bookings from
a JSON snapshot or the shop database, then reports the critical path schedule,
earned value health, cost roll-ups and resource utilization.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&flagSnapshot, "snapshot", "", "Project snapshot JSON file")
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "", "Project id (required with --db)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "PostgreSQL URL (default database.url / DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ./shopledger.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format (text, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&flagNow, "now", "", "As-of date for earned value (YYYY-MM-DD, default today)")

	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(evmCmd())
	rootCmd.AddCommand(costsCmd())
	rootCmd.AddCommand(utilizationCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(portfolioCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintf(os.Stderr, "\n🛑 %s\n", ui.Yellow("Received interrupt, stopping..."))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// analysisOptions turns config and flags into analysis options.
func analysisOptions(cfg *config.Config) (analysis.Options, error) {
	opts := analysis.Options{
		DefaultDuration: cfg.Schedule.DefaultDurationDays,
		CapacityHours:   cfg.Resource.CapacityHours,
	}
	if flagCapacity > 0 {
		opts.CapacityHours = flagCapacity
	}

	if flagNow != "" {
		now, err := parseDay(flagNow)
		if err != nil {
			return opts, fmt.Errorf("parse --now: %w", err)
		}
		opts.Now = now
	}

	if flagMonth != "" {
		ref := opts.Now
		if ref.IsZero() {
			ref = time.Now()
		}
		if flagMonth != "current" {
			m, err := time.Parse("2006-01", flagMonth)
			if err != nil {
				return opts, fmt.Errorf("parse --month (want YYYY-MM or current): %w", err)
			}
			ref = m
		}
		w := resource.MonthWindow(ref)
		opts.Window = &w
	}

	return opts, nil
}

func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// loadSnapshot reads the project from --snapshot, or from the database.
func loadSnapshot(ctx context.Context, cfg *config.Config) (*model.Snapshot, error) {
	if flagSnapshot != "" {
		return snapshot.FileSource{Path: flagSnapshot}.Load(ctx, flagProject)
	}

	url := flagDB
	if url == "" {
		url = cfg.Database.URL
	}
	if url == "" {
		return nil, fmt.Errorf("no input: pass --snapshot, or --db / DATABASE_URL with --project")
	}
	if flagProject == "" {
		return nil, fmt.Errorf("--project is required when reading from the database")
	}

	store, err := pgstore.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.Load(ctx, flagProject)
}

// buildReport is shared logic for every analysis command.
func buildReport(ctx context.Context) (*analysis.Report, *config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}

	opts, err := analysisOptions(cfg)
	if err != nil {
		return nil, nil, err
	}

	snap, err := loadSnapshot(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	rpt, err := analysis.Build(snap, opts)
	if err != nil {
		return nil, nil, err
	}
	return rpt, cfg, nil
}

// outputFormat resolves --json and --format into one value.
func outputFormat() string {
	if flagJSON {
		return "json"
	}
	return strings.ToLower(flagFormat)
}

// sectionCmd builds a command that renders one section of the report.
func sectionCmd(use, short string, data func(*analysis.Report) interface{}, render func(*reporter.Reporter, io.Writer)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			rpt, _, err := buildReport(ctx)
			if err != nil {
				return err
			}

			switch outputFormat() {
			case "json":
				return outputJSON(data(rpt))
			case "yaml":
				return outputYAML(data(rpt))
			case "text":
				r := reporter.New(rpt)
				r.PrintHeader(os.Stdout)
				render(r, os.Stdout)
				return nil
			default:
				return fmt.Errorf("unknown format %q (want text, json or yaml)", flagFormat)
			}
		},
	}
}

func scheduleCmd() *cobra.Command {
	cmd := sectionCmd("schedule", "Critical path schedule: ES/EF/LS/LF, slack and waves",
		func(r *analysis.Report) interface{} { return r.Schedule },
		(*reporter.Reporter).PrintSchedule)

	var flagDot bool
	text := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) error {
		if !flagDot {
			return text(c, args)
		}
		ctx, cancel := signalContext()
		defer cancel()
		rpt, _, err := buildReport(ctx)
		if err != nil {
			return err
		}
		printDOT(os.Stdout, rpt)
		return nil
	}
	cmd.Flags().BoolVar(&flagDot, "dot", false, "Print the phase graph in Graphviz DOT format")
	return cmd
}

func evmCmd() *cobra.Command {
	return sectionCmd("evm", "Earned value metrics and budget health",
		func(r *analysis.Report) interface{} { return r.EarnedValue },
		(*reporter.Reporter).PrintEVM)
}

func costsCmd() *cobra.Command {
	return sectionCmd("costs", "Cost ledger totals by category and phase",
		func(r *analysis.Report) interface{} { return r.Costs },
		(*reporter.Reporter).PrintCosts)
}

func utilizationCmd() *cobra.Command {
	cmd := sectionCmd("utilization", "Planned resource hours against monthly capacity",
		func(r *analysis.Report) interface{} { return r.Utilization },
		(*reporter.Reporter).PrintUtilization)

	cmd.Flags().Float64Var(&flagCapacity, "capacity", 0, "Monthly capacity hours per resource (default resource.capacity_hours)")
	cmd.Flags().StringVar(&flagMonth, "month", "", "Only count assignments scheduled in this month (YYYY-MM or current)")
	return cmd
}

func reportCmd() *cobra.Command {
	var (
		flagWatch     bool
		flagNarrate   bool
		flagRisks     bool
		flagNoHistory bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Full project report: schedule, earned value, costs and utilization",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			once := func() error {
				rpt, cfg, err := buildReport(ctx)
				if err != nil {
					return err
				}
				if err := printFullReport(rpt); err != nil {
					return err
				}
				if !flagNoHistory {
					if err := recordHistory(rpt); err != nil {
						log.Printf("warning: %v", err)
					}
				}
				if flagNarrate || flagRisks {
					return narrate(ctx, cfg, rpt, flagNarrate, flagRisks)
				}
				return nil
			}

			if !flagWatch {
				return once()
			}

			if flagSnapshot == "" {
				return fmt.Errorf("--watch needs --snapshot")
			}
			fmt.Fprintf(os.Stderr, "👀 %s %s\n", ui.BoldCyan("Watching"), flagSnapshot)
			return watch.Run(ctx, flagSnapshot, watch.DefaultDebounce, func() error {
				if outputFormat() == "text" {
					fmt.Print("\033[H\033[2J")
				}
				return once()
			})
		},
	}

	cmd.Flags().BoolVar(&flagWatch, "watch", false, "Re-run the report whenever the snapshot file changes")
	cmd.Flags().BoolVar(&flagNarrate, "narrate", false, "Append a Claude-written status note")
	cmd.Flags().BoolVar(&flagRisks, "risks", false, "Append a Claude-assessed risk list")
	cmd.Flags().BoolVar(&flagNoHistory, "no-history", false, "Do not record this run in .shopledger/history.json")
	cmd.Flags().Float64Var(&flagCapacity, "capacity", 0, "Monthly capacity hours per resource")
	cmd.Flags().StringVar(&flagMonth, "month", "", "Only count assignments scheduled in this month (YYYY-MM or current)")

	return cmd
}

// recordHistory stores the run and, for text output, prints the change since
// the previous one.
func recordHistory(rpt *analysis.Report) error {
	store, err := history.Open(history.DefaultPath())
	if err != nil {
		return err
	}

	cur := history.FromReport(rpt, time.Now())
	if prev := store.Last(rpt.ProjectID); prev != nil && outputFormat() == "text" {
		reporter.PrintTrend(os.Stdout, history.Compare(*prev, cur))
	}
	return store.Record(cur)
}

func historyCmd() *cobra.Command {
	var flagClear bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded report runs for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := flagProject
			if projectID == "" && flagSnapshot != "" {
				snap, err := snapshot.FileSource{Path: flagSnapshot}.Load(context.Background(), "")
				if err != nil {
					return err
				}
				projectID = snap.Project.ID
			}
			if projectID == "" {
				return fmt.Errorf("pass --project or --snapshot")
			}

			store, err := history.Open(history.DefaultPath())
			if err != nil {
				return err
			}

			if flagClear {
				if err := store.Clear(projectID); err != nil {
					return err
				}
				fmt.Printf("🧹 Cleared history for %s\n", ui.BoldMagenta(projectID))
				return nil
			}

			entries := store.Entries(projectID)
			switch outputFormat() {
			case "json":
				return outputJSON(entries)
			case "yaml":
				return outputYAML(entries)
			default:
				reporter.PrintHistory(os.Stdout, projectID, entries)
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&flagClear, "clear", false, "Delete the project's recorded runs")
	return cmd
}

func portfolioCmd() *cobra.Command {
	var (
		flagProjects []string
		flagAll      bool
		flagParallel int
	)

	cmd := &cobra.Command{
		Use:   "portfolio [SNAPSHOT...]",
		Short: "Analyse many projects at once and total their earned value",
		Long: `Analyse every snapshot file given as an argument, or the projects named with
--projects (or all of them with --all-projects) from the shop database.
A project that fails to load or analyse is reported and does not stop the rest.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			opts, err := analysisOptions(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			var jobs []portfolio.Job
			for _, path := range args {
				jobs = append(jobs, portfolio.Job{Name: path, Source: snapshot.FileSource{Path: path}})
			}

			if len(flagProjects) > 0 || flagAll {
				url := flagDB
				if url == "" {
					url = cfg.Database.URL
				}
				store, err := pgstore.Open(ctx, url)
				if err != nil {
					return err
				}
				defer store.Close()

				ids := flagProjects
				if flagAll {
					if ids, err = store.ProjectIDs(ctx); err != nil {
						return err
					}
				}
				for _, id := range ids {
					jobs = append(jobs, portfolio.Job{Name: id, ProjectID: id, Source: store})
				}
			}

			if len(jobs) == 0 {
				return fmt.Errorf("no projects: pass snapshot files, --projects or --all-projects")
			}

			parallel := cfg.Portfolio.MaxParallel
			if flagParallel > 0 {
				parallel = flagParallel
			}

			results, runErr := portfolio.Run(ctx, jobs, portfolio.Config{MaxParallel: parallel, Options: opts})
			totals := portfolio.Summarise(results)

			out := struct {
				Projects []portfolio.Result `json:"projects" yaml:"projects"`
				Totals   portfolio.Totals   `json:"totals" yaml:"totals"`
			}{results, totals}

			switch outputFormat() {
			case "json":
				err = outputJSON(out)
			case "yaml":
				err = outputYAML(out)
			default:
				reporter.PrintPortfolio(os.Stdout, results, totals)
			}
			if err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if totals.Failed > 0 {
				return fmt.Errorf("%d of %d projects failed", totals.Failed, len(jobs))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&flagProjects, "projects", nil, "Project ids to load from the database")
	cmd.Flags().BoolVar(&flagAll, "all-projects", false, "Analyse every project in the database")
	cmd.Flags().IntVar(&flagParallel, "parallel", 0, "Projects analysed at once (default portfolio.max_parallel)")
	cmd.Flags().Float64Var(&flagCapacity, "capacity", 0, "Monthly capacity hours per resource")
	cmd.Flags().StringVar(&flagMonth, "month", "", "Only count assignments scheduled in this month (YYYY-MM or current)")
	return cmd
}

func printFullReport(rpt *analysis.Report) error {
	switch outputFormat() {
	case "json":
		return outputJSON(rpt)
	case "yaml":
		return outputYAML(rpt)
	case "text":
		reporter.New(rpt).PrintReport(os.Stdout)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", flagFormat)
	}
}

func narrate(ctx context.Context, cfg *config.Config, rpt *analysis.Report, note, risks bool) error {
	client, err := narrative.NewClient(cfg.Narrative.APIKey, cfg.Narrative.Model)
	if err != nil {
		return err
	}

	if note {
		fmt.Fprintf(os.Stderr, "🤖 %s\n", ui.Dim("Asking Claude for a status note..."))
		text, err := client.SummariseProject(ctx, rpt)
		if err != nil {
			return fmt.Errorf("narrative: %w", err)
		}
		ui.Heading(os.Stdout, "📝", "Status Note")
		fmt.Println(text)
		fmt.Println()
	}

	if risks {
		fmt.Fprintf(os.Stderr, "🤖 %s\n", ui.Dim("Asking Claude for a risk assessment..."))
		result, err := client.Risks(ctx, rpt)
		if err != nil {
			return fmt.Errorf("risks: %w", err)
		}
		if outputFormat() == "json" {
			return outputJSON(result)
		}
		ui.Heading(os.Stdout, "🚩", "Risks")
		sort.SliceStable(result.Risks, func(a, b int) bool {
			return severityRank(result.Risks[a].Severity) > severityRank(result.Risks[b].Severity)
		})
		for _, r := range result.Risks {
			subject := ""
			if r.Subject != "" {
				subject = ui.BoldMagenta(r.Subject) + " "
			}
			fmt.Printf("  %s %-9s %s%s\n", severityIcon(r.Severity), ui.Dim(r.Area), subject, r.Reason)
		}
		if result.Summary != "" {
			fmt.Printf("\n%s\n", result.Summary)
		}
	}
	return nil
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 3
	case "medium":
		return 2
	case "low":
		return 1
	}
	return 0
}

func severityIcon(s string) string {
	switch s {
	case "high":
		return ui.BoldRed("▲")
	case "medium":
		return ui.Yellow("■")
	default:
		return ui.Dim("●")
	}
}

func serveCmd() *cobra.Command {
	var flagPort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP viewer: POST /snapshot, GET /report, GET /graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			opts, err := analysisOptions(cfg)
			if err != nil {
				return err
			}

			port := cfg.Viewer.Port
			if flagPort != 0 {
				port = flagPort
			}
			if viewer.IsPortOpen(fmt.Sprintf("localhost:%d", port)) {
				return fmt.Errorf("port %d already in use", port)
			}

			ctx, cancel := signalContext()
			defer cancel()

			addr, err := viewer.Start(port, opts)
			if err != nil {
				return err
			}
			fmt.Printf("🖥️  %s on %s\n", ui.BoldCyan("Viewer listening"), addr)

			// Preload when a project source is given
			if flagSnapshot != "" || flagProject != "" {
				snap, err := loadSnapshot(ctx, cfg)
				if err != nil {
					return fmt.Errorf("load snapshot: %w", err)
				}
				if err := viewer.PostSnapshot(addr, snap); err != nil {
					return err
				}
				fmt.Printf("✅ Loaded project %s\n", ui.BoldMagenta(snap.Project.ID))
			}

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().IntVar(&flagPort, "port", 0, "Listen port (default viewer.port)")
	return cmd
}

// --- Output helpers ---

func outputJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func outputYAML(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func printDOT(w io.Writer, rpt *analysis.Report) {
	fmt.Fprintln(w, "digraph shopledger {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box, style=rounded];")
	fmt.Fprintln(w)

	critical := make(map[string]bool)
	for _, p := range rpt.Schedule.Phases {
		label := fmt.Sprintf("%s\\n%s\\n%dd slack %d", p.PhaseID, p.Name, p.Duration, p.Slack)
		attrs := fmt.Sprintf(`label="%s"`, strings.ReplaceAll(label, `"`, `\"`))
		if p.IsMilestone {
			attrs += ", shape=diamond"
		}
		if p.IsCritical {
			critical[p.PhaseID] = true
			attrs += `, style="rounded,bold", color=red`
		}
		fmt.Fprintf(w, "  %q [%s];\n", p.PhaseID, attrs)
	}

	fmt.Fprintln(w)

	for _, p := range rpt.Schedule.Phases {
		pred, ok := rpt.Schedule.Deps.Predecessors[p.PhaseID]
		if !ok {
			continue
		}
		style := ""
		if critical[pred] && critical[p.PhaseID] {
			style = ` [color=red, penwidth=2]`
		}
		fmt.Fprintf(w, "  %q -> %q%s;\n", pred, p.PhaseID, style)
	}

	fmt.Fprintln(w, "}")
}
