package dashboard

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/hypnoticwarchief/cratex/pkg/models"
)

// Themes stored under the theme preference
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBlue  = "\x1b[34m"
)

// maxTableRows caps the proposed changes table
const maxTableRows = 15

// ShouldColorize reports whether w is an interactive terminal
func ShouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// TerminalView renders snapshots as a log stream with a progress bar per stage
type TerminalView struct {
	out      io.Writer
	colorize bool
	theme    string

	mu        sync.Mutex
	stage     models.PipelineStage
	bar       *progressbar.ProgressBar
	logsShown int
	online    *bool
}

// NewTerminalView creates a view writing to out. Colors are enabled only on a terminal.
func NewTerminalView(out io.Writer, theme string) *TerminalView {
	if theme != ThemeLight {
		theme = ThemeDark
	}
	return &TerminalView{
		out:      out,
		colorize: ShouldColorize(out),
		theme:    theme,
	}
}

// Render prints new log lines and advances the stage progress bar
func (v *TerminalView) Render(s Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.online == nil || *v.online != s.Online {
		online := s.Online
		v.online = &online
		mode := "simulation"
		if online {
			mode = "backend"
		}
		v.println(v.paint(ansiBlue, fmt.Sprintf("== CrateX (%s) ==", mode)))
	}

	// Reset clears the log, so start over
	if len(s.Status.Logs) < v.logsShown {
		v.logsShown = 0
	}

	if s.Status.CurrentStage != v.stage {
		v.finishBar()
		v.stage = s.Status.CurrentStage
		if s.Status.IsRunning && v.stage.IsActive() {
			v.bar = progressbar.NewOptions(100,
				progressbar.OptionSetWriter(v.out),
				progressbar.OptionSetDescription(string(v.stage)),
				progressbar.OptionSetWidth(30),
				progressbar.OptionEnableColorCodes(v.colorize),
				progressbar.OptionSetPredictTime(false),
			)
		}
	}

	for _, line := range s.Status.Logs[v.logsShown:] {
		v.println(line)
	}
	v.logsShown = len(s.Status.Logs)

	if v.bar != nil {
		_ = v.bar.Set(int(s.Status.Progress))
	}
}

// Notify prints a notification line
func (v *TerminalView) Notify(n Notification) {
	v.mu.Lock()
	defer v.mu.Unlock()

	marker, color := "[i]", ansiBlue
	if n.Kind == KindSuccess {
		marker, color = "[✓]", ansiGreen
	}
	line := marker + " " + n.Message
	if n.URL != "" {
		line += " " + n.URL
	}
	v.println(v.paint(color, line))
}

// ShowError prints a command failure
func (v *TerminalView) ShowError(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.println(v.paint(ansiRed, "[!] "+err.Error()))
}

func (v *TerminalView) finishBar() {
	if v.bar == nil {
		return
	}
	_ = v.bar.Finish()
	fmt.Fprintln(v.out)
	v.bar = nil
}

func (v *TerminalView) println(line string) {
	if v.bar != nil {
		// keep log lines off the bar's line
		_ = v.bar.Clear()
	}
	fmt.Fprintln(v.out, line)
}

func (v *TerminalView) paint(color, s string) string {
	if !v.colorize {
		return s
	}
	return color + s + ansiReset
}

// tableStyle picks the table style for the theme
func (v *TerminalView) tableStyle() table.Style {
	switch {
	case v.colorize && v.theme == ThemeLight:
		return table.StyleColoredBright
	case v.colorize:
		return table.StyleColoredDark
	case v.theme == ThemeLight:
		return table.StyleLight
	default:
		return table.StyleRounded
	}
}

// RenderSummary prints the stats and the first proposed changes
func (v *TerminalView) RenderSummary(st models.PipelineStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()

	stats := []Row{
		{"Stage", string(st.CurrentStage)},
		{"Files Scanned", fmt.Sprintf("%d", st.Stats.PlannedMoves)},
		{"Skipped", fmt.Sprintf("%d", st.Stats.SkippedFiles)},
		{"AI Confidence", fmt.Sprintf("%.0f%%", st.Stats.AvgConfidence*100)},
	}
	fmt.Fprintln(v.out, RenderTable(v.tableStyle(), []string{"Metric", "Value"}, stats, []Align{AlignLeft, AlignRight}))

	if len(st.ProposedChanges) == 0 {
		return
	}
	rows := make([]Row, 0, maxTableRows)
	for i, op := range st.ProposedChanges {
		if i == maxTableRows {
			break
		}
		rows = append(rows, Row{op.Filename, op.Destination, op.Reason, string(op.Status)})
	}
	fmt.Fprintln(v.out, RenderTable(v.tableStyle(), []string{"File", "Destination", "Reason", "Status"}, rows, nil))
	if extra := len(st.ProposedChanges) - maxTableRows; extra > 0 {
		fmt.Fprintf(v.out, "... and %d more\n", extra)
	}
}

// RenderHistory prints the history items
func (v *TerminalView) RenderHistory(items []models.HistoryItem) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(items) == 0 {
		fmt.Fprintln(v.out, "No history yet.")
		return
	}
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, Row{it.ID, FormatMillis(it.Timestamp), it.Description, fmt.Sprintf("%d", it.FileCount), string(it.Status)})
	}
	fmt.Fprintln(v.out, RenderTable(v.tableStyle(), []string{"ID", "When", "Description", "Files", "Status"}, rows,
		[]Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft}))
}

// RenderAnalysis prints a library report
func (v *TerminalView) RenderAnalysis(a models.LibraryAnalysis) {
	v.mu.Lock()
	defer v.mu.Unlock()

	fmt.Fprintf(v.out, "%d tracks, %.1f GB, health %d/100, %d duplicates\n", a.TotalTracks, a.TotalSizeGB, a.HealthScore, a.Duplicates)

	genres := make([]Row, 0, len(a.GenreDistribution))
	for _, g := range a.GenreDistribution {
		genres = append(genres, Row{g.Name, fmt.Sprintf("%d", g.Count), fmt.Sprintf("%d%%", g.Percentage)})
	}
	fmt.Fprintln(v.out, RenderTable(v.tableStyle(), []string{"Genre", "Tracks", "Share"}, genres, []Align{AlignLeft, AlignRight, AlignRight}))

	folders := make([]Row, 0, len(a.SmartFolders))
	for _, f := range a.SmartFolders {
		folders = append(folders, Row{f.Name, fmt.Sprintf("%d", f.Count), f.Description})
	}
	fmt.Fprintln(v.out, RenderTable(v.tableStyle(), []string{"Smart Folder", "Tracks", "Rule"}, folders, []Align{AlignLeft, AlignRight, AlignLeft}))
}

// FormatMillis renders a unix millisecond timestamp
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

// RenderConfig prints the effective pipeline configuration
func (v *TerminalView) RenderConfig(cfg models.ConfigResponse, online bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	source := "simulation"
	if online {
		source = "backend"
	}
	key := "missing"
	if cfg.HasGeminiKey {
		key = "configured"
	}
	rows := []Row{
		{"Source", source},
		{"Library Path", cfg.CWD},
		{"Min Confidence", fmt.Sprintf("%.2f", cfg.DefaultMinConfidence)},
		{"Model", string(cfg.PreferredModel)},
		{"API Key", key},
	}
	fmt.Fprintln(v.out, RenderTable(v.tableStyle(), []string{"Setting", "Value"}, rows, nil))
}
