package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/StockAnalyzerAI/config"
	"github.com/dyike/StockAnalyzerAI/consts"
	"github.com/dyike/StockAnalyzerAI/internal/crew"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(80)

	reportStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(1, 2).
			Width(80)

	noteStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#6B7280"))

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)
)

const disclaimer = "Please remember: Under no circumstances should you take the results as an investment or disinvestment recommendation.!"

type section struct {
	title string
	body  string
}

// reportSections orders a crew result the way it is presented: the
// newsletter first, then the price and news analyst reports.
func reportSections(result *crew.Result) []section {
	sections := []section{{title: "Result of your research", body: result.FinalOutput}}
	titles := []string{
		"Result of the " + consts.Agent_StockPriceAnalyst + " Agent",
		"Result of the " + consts.Agent_StockNewsAnalyst + " Agent",
	}
	for i, title := range titles {
		if i < len(result.TasksOutputs) {
			sections = append(sections, section{title: title, body: result.TasksOutputs[i].ExportedOutput})
		}
	}
	return sections
}

func DisplayWelcomeBanner(w io.Writer) {
	fmt.Fprintln(w, titleStyle.Render("📈 Stock Analyzer AI"))
}

func DisplayResult(w io.Writer, ticker string, result *crew.Result) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Research for %s", ticker)))
	for _, s := range reportSections(result) {
		fmt.Fprintln(w, titleStyle.Render(s.title))
		fmt.Fprintln(w, reportStyle.Render(strings.TrimSpace(s.body)))
	}
	fmt.Fprintln(w, noteStyle.Render(disclaimer))
}

// newsletterMarkdown is the document saved to the results directory.
func newsletterMarkdown(ticker, start, end string, result *crew.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s research %s to %s\n\n", ticker, start, end)
	for _, s := range reportSections(result) {
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", s.title, strings.TrimSpace(s.body))
	}
	fmt.Fprintf(&sb, "_%s_\n", disclaimer)
	return sb.String()
}

func DisplayConfig(w io.Writer, cfg *config.Config, path string) {
	fmt.Fprintln(w, headerStyle.Render("📋 Current Stock Analyzer AI Configuration"))
	fmt.Fprintf(w, "Config File:          %s\n", path)
	fmt.Fprintf(w, "Project Directory:    %s\n", cfg.ProjectDir)
	fmt.Fprintf(w, "Results Directory:    %s\n", cfg.ResultsDir)
	fmt.Fprintf(w, "History Database:     %s\n", cfg.HistoryDB)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "LLM Provider:         %s\n", cfg.LLMProvider)
	fmt.Fprintf(w, "Model:                %s\n", cfg.Model)
	fmt.Fprintf(w, "Manager Model:        %s\n", cfg.ManagerModel)
	fmt.Fprintf(w, "Backend URL:          %s\n", cfg.BackendURL)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Market Data:          %s\n", cfg.MarketDataProvider)
	fmt.Fprintf(w, "News Region:          %s\n", cfg.NewsRegion)
	fmt.Fprintf(w, "News Max Results:     %d\n", cfg.NewsMaxResults)
	fmt.Fprintf(w, "Listen Address:       %s\n", cfg.ListenAddr)
	fmt.Fprintf(w, "Verbose:              %t\n", cfg.Verbose)
	fmt.Fprintf(w, "Eino Debug:           %t\n", cfg.EinoDebugEnabled)
	if cfg.EinoDebugEnabled {
		fmt.Fprintf(w, "Eino Debug Port:      %d\n", cfg.EinoDebugPort)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Schedule:             %s\n", cfg.ScheduleCron)
	fmt.Fprintf(w, "Watchlist:            %s\n", strings.Join(cfg.ScheduleTickers, ", "))
	fmt.Fprintf(w, "Lookback Days:        %d\n", cfg.ScheduleLookback)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "🔌 API Configuration:")
	fmt.Fprintf(w, "OpenAI API:           %s\n", configured(cfg.OpenAIAPIKey != ""))
	fmt.Fprintf(w, "DeepSeek API:         %s\n", configured(cfg.DeepSeekAPIKey != ""))
	fmt.Fprintf(w, "Longport API:         %s\n",
		configured(cfg.LongportAppKey != "" && cfg.LongportAppSecret != "" && cfg.LongportAccessToken != ""))
}

func configured(ok bool) string {
	if ok {
		return "✅ Configured"
	}
	return "❌ Not configured"
}
