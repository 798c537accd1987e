package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/joshharrison/shopledger/internal/analysis"
	"github.com/joshharrison/shopledger/internal/evm"
	"github.com/joshharrison/shopledger/internal/history"
	"github.com/joshharrison/shopledger/internal/portfolio"
	"github.com/joshharrison/shopledger/internal/ui"
)

// Reporter renders an analysis report for the terminal or as structured data.
type Reporter struct {
	Report *analysis.Report
}

// New creates a new Reporter.
func New(rpt *analysis.Report) *Reporter {
	return &Reporter{Report: rpt}
}

// PrintHeader writes the project line shared by every view.
func (r *Reporter) PrintHeader(w io.Writer) {
	name := r.Report.ProjectName
	if name == "" {
		name = r.Report.ProjectID
	}
	fmt.Fprintf(w, "%s %s %s\n\n",
		ui.BoldCyan("🏗  "+name),
		ui.Dim("("+r.Report.ProjectID+")"),
		ui.Dim("as of "+r.Report.AsOf.Format("2006-01-02")))
}

// PrintSchedule writes the phase timeline grouped by wave, then the critical path.
func (r *Reporter) PrintSchedule(w io.Writer) {
	s := r.Report.Schedule
	ui.Heading(w, "📅", "Schedule")
	fmt.Fprintf(w, "Duration:  %s\n", ui.Bold(fmt.Sprintf("%d days", s.ProjectDuration)))
	fmt.Fprintf(w, "Phases:    %d in %d waves\n\n", len(s.Phases), len(s.Waves))

	for _, wave := range s.Waves {
		marker := ""
		if wave.IsCritical {
			marker = " " + ui.BoldYellow("⚡")
		}
		fmt.Fprintf(w, "  🌊 %s %d %s%s\n", ui.BoldWhite("WAVE"), wave.Index+1,
			ui.Dim(fmt.Sprintf("(day %d)", wave.Start)), marker)
		for _, id := range wave.PhaseIDs {
			if row, ok := r.Report.Phase(id); ok {
				printPhase(w, row)
			}
		}
		fmt.Fprintln(w)
	}

	if len(s.CriticalPath) == 0 {
		return
	}
	if len(s.Chains) > 1 {
		for i, chain := range s.Chains {
			fmt.Fprintf(w, "Critical %d: %s\n", i+1, ui.BoldYellow("⚡ "+strings.Join(chain, " → ")))
		}
	} else {
		fmt.Fprintf(w, "Critical:  %s\n", ui.BoldYellow("⚡ "+strings.Join(s.CriticalPath, " → ")))
	}
	fmt.Fprintln(w)
}

func printPhase(w io.Writer, row analysis.PhaseRow) {
	critical := " "
	if row.IsCritical {
		critical = ui.BoldYellow("⚡")
	}

	title := row.Name
	if title == "" {
		title = row.PhaseID
	}
	if row.IsMilestone {
		title = "◆ " + title
	}
	title = truncate(title, 36)

	slack := ui.Dim(fmt.Sprintf("slack %d", row.Slack))
	if row.Slack == 0 {
		slack = ui.Yellow("slack 0")
	}

	fmt.Fprintf(w, "    %s %-10s %-36s %s  %s  %s  %s\n",
		ui.StatusIcon(row.Status), ui.BoldMagenta(row.PhaseID), title, critical,
		ui.Dim(fmt.Sprintf("[%d→%d]", row.EarliestStart, row.EarliestFinish)),
		slack,
		ui.Dim(fmt.Sprintf("%.0f%%", row.PercentComplete)))
}

// PrintEVM writes the earned value indicators and the budget summary.
func (r *Reporter) PrintEVM(w io.Writer) {
	ev := r.Report.EarnedValue
	ui.Heading(w, "📈", "Earned Value")
	fmt.Fprintf(w, "Progress:  %.1f%% complete, %.1f%% of schedule elapsed\n", ev.PercentComplete, ev.PercentScheduled)
	fmt.Fprintf(w, "BAC %s   PV %s   EV %s   AC %s\n", money(ev.BAC), money(ev.PV), money(ev.EV), money(ev.AC))
	fmt.Fprintf(w, "SV  %s   CV %s\n", ui.Signed(ev.SV, money(ev.SV)), ui.Signed(ev.CV, money(ev.CV)))
	fmt.Fprintf(w, "SPI %.2f  %s\n", ev.SPI, ui.Health(string(ev.ScheduleHealth)))
	fmt.Fprintf(w, "CPI %.2f  %s\n", ev.CPI, ui.Health(string(ev.CostHealth)))
	fmt.Fprintf(w, "EAC %s   ETC %s   VAC %s\n", money(ev.EAC), money(ev.ETC), ui.Signed(ev.VAC, money(ev.VAC)))

	tcpi := fmt.Sprintf("%.2f", ev.TCPI)
	if ev.RecoveryDifficult {
		tcpi = ui.BoldRed(tcpi) + " " + ui.Red(fmt.Sprintf("(recovery difficult above %.1f)", evm.DifficultTCPILimit))
	}
	fmt.Fprintf(w, "TCPI %s\n\n", tcpi)

	b := ev.Budget
	fmt.Fprintf(w, "%s\n", ui.Bold("Budget"))
	fmt.Fprintf(w, "  Original %s   Approved %s   Current %s\n", money(b.Original), money(b.Approved), money(b.Current))
	fmt.Fprintf(w, "  Committed %s   Spent %s (%.1f%%)   Contingency %s\n", money(b.Committed), money(b.Spent), b.PercentSpent, money(b.Contingency))
	remaining := ui.Signed(b.Remaining, money(b.Remaining))
	if b.OverBudget {
		remaining += " " + ui.BoldRed("OVER BUDGET")
	}
	fmt.Fprintf(w, "  Remaining %s\n\n", remaining)
}

// PrintCosts writes the cost ledger totals by category and by phase.
func (r *Reporter) PrintCosts(w io.Writer) {
	c := r.Report.Costs
	ui.Heading(w, "💰", "Costs")
	if len(c.Categories) == 0 {
		fmt.Fprintf(w, "%s\n\n", ui.Dim("No cost items."))
		return
	}

	fmt.Fprintf(w, "  %-20s %14s %14s %14s %14s\n", ui.Bold("Category"), "Budgeted", "Committed", "Spent", "Variance")
	for _, name := range c.Categories {
		b := c.ByCategory[name]
		printBucket(w, name, b.Budgeted, b.Committed, b.Spent, b.Variance)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %-20s %14s %14s %14s %14s\n", ui.Bold("Phase"), "Budgeted", "Committed", "Spent", "Variance")
	for _, id := range c.PhaseIDs {
		b := c.ByPhase[id]
		printBucket(w, id, b.Budgeted, b.Committed, b.Spent, b.Variance)
	}

	fmt.Fprintf(w, "  %s\n", ui.Cyan(strings.Repeat("─", 78)))
	printBucket(w, "Total", c.Grand.Budgeted, c.Grand.Committed, c.Grand.Spent, c.Grand.Variance)
	fmt.Fprintln(w)
}

func printBucket(w io.Writer, name string, budgeted, committed, spent, variance decimal.Decimal) {
	name = truncate(name, 20)
	v := fmt.Sprintf("%14s", variance.StringFixed(2))
	fmt.Fprintf(w, "  %-20s %14s %14s %14s %s\n", name,
		budgeted.StringFixed(2), committed.StringFixed(2), spent.StringFixed(2),
		ui.Signed(float64(variance.Sign()), v))
}

// PrintUtilization writes planned hours per resource against capacity.
func (r *Reporter) PrintUtilization(w io.Writer) {
	ui.Heading(w, "👷", "Resource Utilization")
	cfg := r.Report.Config
	scope := "all assignments"
	if cfg.Window != nil {
		scope = cfg.Window.From.Format("2006-01-02") + " to " + cfg.Window.To.Format("2006-01-02")
	}
	fmt.Fprintf(w, "Capacity:  %.0fh per resource, %s\n\n", cfg.CapacityHours, ui.Dim(scope))

	if len(r.Report.Utilization) == 0 {
		fmt.Fprintf(w, "%s\n\n", ui.Dim("No resource assignments."))
		return
	}

	for _, rec := range r.Report.Utilization {
		flag := ""
		if rec.IsOverallocated {
			flag = " " + ui.BoldRed("⚠ overallocated")
		}
		fmt.Fprintf(w, "  %-10s %-14s %8.1fh  %s  %s%s\n",
			ui.Dim(rec.ResourceType), ui.BoldMagenta(rec.ResourceID), rec.TotalPlannedHours,
			ui.Utilization(rec.UtilizationPercent),
			ui.Dim(fmt.Sprintf("(%d assignments, %d projects)", rec.Assignments, len(rec.Projects))),
			flag)
	}
	fmt.Fprintln(w)
}

// PrintReport writes every section to the given writer. The output is also
// returned as a string for reuse (e.g. as context for narrative summaries).
func (r *Reporter) PrintReport(w io.Writer) string {
	var b strings.Builder
	mw := io.MultiWriter(w, &b)

	r.PrintHeader(mw)
	r.PrintSchedule(mw)
	r.PrintEVM(mw)
	r.PrintCosts(mw)
	r.PrintUtilization(mw)

	return b.String()
}

// PrintTrend writes the change since the previous recorded run.
func PrintTrend(w io.Writer, d history.Delta) {
	ui.Heading(w, "🔁", "Since "+d.Since.Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "Duration:  %s\n", ui.Signed(float64(-d.DurationDays), fmt.Sprintf("%+d days", d.DurationDays)))
	fmt.Fprintf(w, "Progress:  %s\n", ui.Signed(d.PercentComplete, fmt.Sprintf("%+.1f%%", d.PercentComplete)))
	fmt.Fprintf(w, "SPI %s   CPI %s\n",
		ui.Signed(d.SPI, fmt.Sprintf("%+.2f", d.SPI)),
		ui.Signed(d.CPI, fmt.Sprintf("%+.2f", d.CPI)))
	fmt.Fprintf(w, "EAC %s\n", ui.Signed(-d.EAC, fmt.Sprintf("%+.2f", d.EAC)))
	if d.CriticalChanged {
		fmt.Fprintf(w, "%s\n", ui.BoldYellow("⚡ critical path changed"))
	}
	fmt.Fprintln(w)
}

// PrintHistory writes a project's recorded runs, oldest first.
func PrintHistory(w io.Writer, projectID string, entries []history.Entry) {
	ui.Heading(w, "🗂", "History "+projectID)
	if len(entries) == 0 {
		fmt.Fprintf(w, "%s\n\n", ui.Dim("No recorded runs."))
		return
	}
	fmt.Fprintf(w, "  %-16s %-10s %6s %8s %6s %6s %14s\n", "Recorded", "As of", "Days", "Done", "SPI", "CPI", "EAC")
	for _, e := range entries {
		fmt.Fprintf(w, "  %-16s %-10s %6d %7.1f%% %6.2f %6.2f %14s\n",
			e.RecordedAt.Format("2006-01-02 15:04"), e.AsOf.Format("2006-01-02"),
			e.ProjectDuration, e.PercentComplete, e.SPI, e.CPI, money(e.EAC))
	}
	fmt.Fprintln(w)
}

// PrintPortfolio writes one line per project followed by the portfolio totals.
func PrintPortfolio(w io.Writer, results []portfolio.Result, t portfolio.Totals) {
	ui.Heading(w, "📚", "Portfolio")
	fmt.Fprintf(w, "  %-24s %6s %8s %6s %6s %14s\n", "Project", "Days", "Done", "SPI", "CPI", "EAC")
	for _, res := range results {
		if res.Status != portfolio.StatusCompleted {
			fmt.Fprintf(w, "  %-24s %s %s\n", res.Name, ui.Red(string(res.Status)), ui.Dim(res.Error))
			continue
		}
		ev := res.Report.EarnedValue
		fmt.Fprintf(w, "  %-24s %6d %7.1f%% %6.2f %6.2f %14s",
			res.Name, res.Report.Schedule.ProjectDuration, ev.PercentComplete, ev.SPI, ev.CPI, money(ev.EAC))
		if n := len(res.Report.Overallocated()); n > 0 {
			fmt.Fprintf(w, "  %s", ui.Yellow(fmt.Sprintf("⚠ %d overallocated", n)))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s %d analysed, %d failed\n", ui.Bold("Projects"), t.Projects, t.Failed)
	fmt.Fprintf(w, "  BAC %s   EV %s   AC %s   EAC %s\n", money(t.BAC), money(t.EV), money(t.AC), money(t.EAC))
	fmt.Fprintf(w, "  Portfolio CPI %.2f %s\n", t.CPI, ui.Health(string(evm.Rate(t.CPI))))
	fmt.Fprintf(w, "  Behind on schedule %d   behind on cost %d\n\n", t.ScheduleBehind, t.CostBehind)
}

// JSON returns the machine-readable report.
func (r *Reporter) JSON() ([]byte, error) {
	return json.MarshalIndent(r.Report, "", "  ")
}

// YAML returns the report as YAML.
func (r *Reporter) YAML() ([]byte, error) {
	return yaml.Marshal(r.Report)
}

// truncate shortens s to at most limit runes, ending in "...".
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
