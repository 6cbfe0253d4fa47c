package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"peakload/internal/search"
	"peakload/internal/stats"
)

// --- Console styles ---

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00")).Bold(true)
)

// formatPercentile renders gated percentiles as N/A instead of the sentinel.
func formatPercentile(v float64) string {
	if v == stats.PercentileUnavailable {
		return "N/A"
	}
	return fmt.Sprintf("%.3fs", v)
}

// PrintRunSummary writes a human-readable summary of one run.
func PrintRunSummary(w io.Writer, rs *stats.RunStats) {
	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("LOAD TEST RESULTS"))
	fmt.Fprintf(w, "Test duration   : %.2fs\n", rs.TestDuration)
	fmt.Fprintf(w, "Concurrent users: %d\n", rs.ConcurrentUsers)
	fmt.Fprintf(w, "Total requests  : %d\n", rs.TotalRequests)
	fmt.Fprintf(w, "Requests/second : %s\n", valueStyle.Render(fmt.Sprintf("%.2f", rs.RequestsPerSecond)))
	fmt.Fprintf(w, "Success rate    : %.4f%%\n", rs.OverallSuccessRate*100)
	fmt.Fprintf(w, "Error rate      : %.4f%%\n", (1-rs.OverallSuccessRate)*100)

	// Stable ordering for humans and for diffable output
	names := make([]string, 0, len(rs.Endpoints))
	for name := range rs.Endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		es := rs.Endpoints[name]
		fmt.Fprintf(w, "\n%s\n", subtleStyle.Render("--- "+name+" ---"))
		fmt.Fprintf(w, "Requests     : %d\n", es.RequestCount)
		fmt.Fprintf(w, "HTTP success : %.2f%%\n", es.HTTPSuccessRate*100)
		fmt.Fprintf(w, "Biz success  : %.2f%%\n", es.BusinessSuccessRate*100)
		if es.ErrorCount > 0 {
			fmt.Fprintf(w, "Errors       : %s\n", errorStyle.Render(strconv.Itoa(es.ErrorCount)))
		} else {
			fmt.Fprintf(w, "Errors       : 0\n")
		}
		fmt.Fprintf(w, "Latency      : %.3fs / %.3fs / %.3fs (min/avg/max)\n",
			es.MinResponseTime, es.AvgResponseTime, es.MaxResponseTime)
		fmt.Fprintf(w, "Percentiles  : p50 %s, p95 %s, p99 %s\n",
			formatPercentile(es.P50ResponseTime),
			formatPercentile(es.P95ResponseTime),
			formatPercentile(es.P99ResponseTime))
	}
}

// PrintSearchSummary writes the throughput search verdict and audit table.
func PrintSearchSummary(w io.Writer, res *search.Result, sla search.SLA) {
	fmt.Fprintf(w, "\n%s\n", titleStyle.Render("MAXIMUM THROUGHPUT RESULTS"))
	fmt.Fprintf(w, "Success target  : %.4f%%\n", sla.TargetSuccessRate()*100)
	fmt.Fprintf(w, "Max users       : %s\n", valueStyle.Render(strconv.Itoa(res.MaxConcurrency)))
	fmt.Fprintf(w, "Max RPS         : %s\n", valueStyle.Render(fmt.Sprintf("%.2f", res.MaxRPS)))

	if res.SLACompliant {
		fmt.Fprintf(w, "SLA             : %s\n", successStyle.Render("PASSED"))
	} else {
		fmt.Fprintf(w, "SLA             : %s\n", warnStyle.Render("NOT MET (best-effort recommendation)"))
	}
	if res.Confirmation != nil {
		fmt.Fprintf(w, "Confirmation    : %.4f%% success at %.2f rps\n",
			res.Confirmation.OverallSuccessRate*100, res.Confirmation.RequestsPerSecond)
	}

	fmt.Fprintf(w, "\n%s\n", subtleStyle.Render("--- Trials ---"))
	fmt.Fprintf(w, "%8s %12s %10s %10s %6s\n", "users", "success", "errors", "rps", "sla")
	for _, tr := range res.Trials {
		verdict := "pass"
		if !tr.SLAMet {
			verdict = "fail"
		}
		fmt.Fprintf(w, "%8d %11.4f%% %9.4f%% %10.2f %6s\n",
			tr.Concurrency, tr.SuccessRate*100, tr.ErrorRate*100, tr.RequestsPerSecond, verdict)
	}
}

// WriteJSON dumps any result document with stable field names.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// WriteTrialsCSV exports the audit trail for spreadsheet consumption.
func WriteTrialsCSV(path string, trials []search.Trial) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"concurrency", "success_rate", "error_rate", "requests_per_second", "sla_met"}); err != nil {
		return err
	}
	for _, tr := range trials {
		record := []string{
			strconv.Itoa(tr.Concurrency),
			strconv.FormatFloat(tr.SuccessRate, 'f', 6, 64),
			strconv.FormatFloat(tr.ErrorRate, 'f', 6, 64),
			strconv.FormatFloat(tr.RequestsPerSecond, 'f', 2, 64),
			strconv.FormatBool(tr.SLAMet),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}
