package cli

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/seuros/raporta/internal/database"
	"github.com/seuros/raporta/internal/reports"
	"github.com/seuros/raporta/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run reports from the command line",
	Long: `Run funnel, attribution, channel, and stats reports directly
against the configured database.`,
}

var reportFunnelCmd = &cobra.Command{
	Use:   "funnel",
	Short: "Run a funnel report",
	Long: `Run an ordered funnel over the filtered window.

Steps are given in order as --step flags. A step is a URL path by default;
prefix with "event:" to match a custom event. Values may carry * wildcards.

Examples:
  raporta report funnel --website example.com --step /pricing --step /signup --window 60 --range 30d
  raporta report funnel --website example.com --step "/docs/*" --step event:signup --window 1440 --range 7d`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReportFunnel(reportWebsite, reportSteps, reportWindow, reportRange, reportFrom, reportTo, reportFormat)
	},
}

var reportAttributionCmd = &cobra.Command{
	Use:   "attribution",
	Short: "Run an attribution report",
	Long: `Attribute conversions to marketing touchpoints.

Examples:
  raporta report attribution --website example.com --step event:purchase --model first-click --range 30d
  raporta report attribution --website example.com --step /thank-you --model last-click --currency USD --range 90d`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReportAttribution(reportWebsite, reportStep, reportModel, reportCurrency, reportRange, reportFrom, reportTo, reportFormat)
	},
}

var reportChannelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Run a marketing channel breakdown",
	Long: `Classify traffic into marketing channels over the filtered window.

Examples:
  raporta report channels --website example.com --range 7d`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReportChannels(reportWebsite, reportRange, reportFrom, reportTo, reportFormat)
	},
}

var reportStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show website stats for a window",
	Long: `Show pageviews, visitors, visits, bounces, and total time.

Examples:
  raporta report stats --website example.com --range 24h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReportStats(reportWebsite, reportRange, reportFrom, reportTo, reportFormat)
	},
}

// Command flags
var (
	reportWebsite  string
	reportSteps    []string
	reportStep     string
	reportWindow   int
	reportModel    string
	reportCurrency string
	reportRange    string
	reportFrom     string
	reportTo       string
	reportFormat   string
)

// Swappable for tests.
var (
	fetchFunnel = func(ctx context.Context, websiteID uuid.UUID, spec reports.FunnelSpec, filter reports.FilterSpec) ([]reports.FunnelStep, error) {
		return reportEngine().RunFunnel(ctx, websiteID, spec, filter)
	}
	fetchAttribution = func(ctx context.Context, websiteID uuid.UUID, spec reports.AttributionSpec, filter reports.FilterSpec) (*reports.AttributionResult, error) {
		return reportEngine().RunAttribution(ctx, websiteID, spec, filter)
	}
	fetchChannels = func(ctx context.Context, websiteID uuid.UUID, filter reports.FilterSpec) ([]reports.ChannelMetric, error) {
		return reportEngine().ChannelBreakdown(ctx, websiteID, filter)
	}
	fetchStats = func(ctx context.Context, websiteID uuid.UUID, filter reports.FilterSpec) (*reports.WebsiteStats, error) {
		return reportEngine().Stats(ctx, websiteID, filter)
	}
)

func reportEngine() *reports.Engine {
	return reports.NewEngine(store.New(database.DB, "pgx"), 4)
}

func validateFormat(format string) error {
	switch format {
	case "table", "csv", "json":
		return nil
	default:
		return fmt.Errorf("invalid format %q (use table, csv, or json)", format)
	}
}

// parseStep reads a step flag value: "event:signup" matches a custom event,
// anything else a URL path.
func parseStep(value string) reports.FunnelStepSpec {
	if rest, ok := strings.CutPrefix(value, "event:"); ok {
		return reports.FunnelStepSpec{Type: reports.StepTypeEvent, Value: rest}
	}
	return reports.FunnelStepSpec{Type: reports.StepTypePath, Value: strings.TrimPrefix(value, "path:")}
}

// buildFilter assembles the report window from the flag values. Dates accept
// RFC3339 or plain YYYY-MM-DD.
func buildFilter(rangeName, from, to string) (reports.FilterSpec, error) {
	filter := reports.FilterSpec{Range: rangeName}

	parse := func(value string) (time.Time, error) {
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t, nil
		}
		return time.Parse("2006-01-02", value)
	}

	if from != "" {
		t, err := parse(from)
		if err != nil {
			return filter, fmt.Errorf("invalid --from date %q: %w", from, err)
		}
		filter.StartDate = t
	}
	if to != "" {
		t, err := parse(to)
		if err != nil {
			return filter, fmt.Errorf("invalid --to date %q: %w", to, err)
		}
		filter.EndDate = t
	}

	return filter, nil
}

func resolveReportWebsite(ctx context.Context, domain string) (uuid.UUID, error) {
	website, err := fetchWebsiteByDomain(ctx, domain)
	if err != nil {
		return uuid.Nil, fmt.Errorf("website not found: %w", err)
	}
	return website.WebsiteID, nil
}

func runReportFunnel(domain string, steps []string, window int, rangeName, from, to, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if len(steps) == 0 {
		return fmt.Errorf("at least one --step is required")
	}

	spec := reports.FunnelSpec{Window: window}
	for _, step := range steps {
		spec.Steps = append(spec.Steps, parseStep(step))
	}

	filter, err := buildFilter(rangeName, from, to)
	if err != nil {
		return err
	}

	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	websiteID, err := resolveReportWebsite(ctx, domain)
	if err != nil {
		return err
	}

	result, err := fetchFunnel(ctx, websiteID, spec, filter)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return outputJSON(result)
	case "csv":
		w := csv.NewWriter(os.Stdout)
		if err := w.Write([]string{"step", "type", "value", "visitors", "dropped", "dropoff", "remaining"}); err != nil {
			return err
		}
		for _, step := range result {
			record := []string{
				strconv.Itoa(step.Step),
				step.Type,
				step.Value,
				strconv.FormatInt(step.Visitors, 10),
				strconv.FormatInt(step.Dropped, 10),
				strconv.FormatFloat(step.Dropoff, 'f', 4, 64),
				strconv.FormatFloat(step.Remaining, 'f', 4, 64),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	default:
		fmt.Printf("\nFunnel for %s\n\n", domain)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "STEP\tVALUE\tVISITORS\tDROPPED\tDROPOFF\tREMAINING")
		for _, step := range result {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.1f%%\t%.1f%%\n",
				step.Step, step.Value, step.Visitors, step.Dropped,
				step.Dropoff*100, step.Remaining*100)
		}
		return w.Flush()
	}
}

func runReportAttribution(domain, step, model, currency, rangeName, from, to, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if step == "" {
		return fmt.Errorf("--step is required")
	}

	spec := reports.AttributionSpec{
		Step:     parseStep(step),
		Model:    model,
		Currency: currency,
	}

	filter, err := buildFilter(rangeName, from, to)
	if err != nil {
		return err
	}

	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	websiteID, err := resolveReportWebsite(ctx, domain)
	if err != nil {
		return err
	}

	result, err := fetchAttribution(ctx, websiteID, spec, filter)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return outputJSON(result)
	case "csv":
		w := csv.NewWriter(os.Stdout)
		if err := w.Write([]string{"breakdown", "name", "value"}); err != nil {
			return err
		}
		sections := []struct {
			name string
			rows []reports.NameValue
		}{
			{"referrer", result.Referrer},
			{"paid_ads", result.PaidAds},
			{"utm_source", result.UTMSource},
			{"utm_medium", result.UTMMedium},
			{"utm_campaign", result.UTMCampaign},
			{"utm_content", result.UTMContent},
			{"utm_term", result.UTMTerm},
		}
		for _, section := range sections {
			for _, row := range section.rows {
				record := []string{section.name, row.Name, strconv.FormatFloat(row.Value, 'f', -1, 64)}
				if err := w.Write(record); err != nil {
					return err
				}
			}
		}
		w.Flush()
		return w.Error()
	default:
		fmt.Printf("\nAttribution for %s (%s)\n\n", domain, model)
		fmt.Printf("Pageviews: %d  Visitors: %d  Visits: %d\n",
			result.Total.Pageviews, result.Total.Visitors, result.Total.Visits)

		printSection := func(title string, rows []reports.NameValue) {
			if len(rows) == 0 {
				return
			}
			fmt.Printf("\n%s:\n", title)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, row := range rows {
				_, _ = fmt.Fprintf(w, "  %s\t%.0f\n", row.Name, row.Value)
			}
			_ = w.Flush()
		}

		printSection("Referrers", result.Referrer)
		printSection("Paid Ads", result.PaidAds)
		printSection("UTM Source", result.UTMSource)
		printSection("UTM Medium", result.UTMMedium)
		printSection("UTM Campaign", result.UTMCampaign)
		printSection("UTM Content", result.UTMContent)
		printSection("UTM Term", result.UTMTerm)
		fmt.Println()
		return nil
	}
}

func runReportChannels(domain, rangeName, from, to, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	filter, err := buildFilter(rangeName, from, to)
	if err != nil {
		return err
	}

	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	websiteID, err := resolveReportWebsite(ctx, domain)
	if err != nil {
		return err
	}

	result, err := fetchChannels(ctx, websiteID, filter)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return outputJSON(result)
	case "csv":
		w := csv.NewWriter(os.Stdout)
		if err := w.Write([]string{"channel", "visitors", "visits", "pageviews"}); err != nil {
			return err
		}
		for _, row := range result {
			record := []string{
				row.Channel,
				strconv.FormatInt(row.Visitors, 10),
				strconv.FormatInt(row.Visits, 10),
				strconv.FormatInt(row.Pageviews, 10),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	default:
		fmt.Printf("\nChannels for %s\n\n", domain)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CHANNEL\tVISITORS\tVISITS\tPAGEVIEWS")
		for _, row := range result {
			_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", row.Channel, row.Visitors, row.Visits, row.Pageviews)
		}
		return w.Flush()
	}
}

func runReportStats(domain, rangeName, from, to, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	filter, err := buildFilter(rangeName, from, to)
	if err != nil {
		return err
	}

	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	websiteID, err := resolveReportWebsite(ctx, domain)
	if err != nil {
		return err
	}

	stats, err := fetchStats(ctx, websiteID, filter)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return outputJSON(stats)
	case "csv":
		w := csv.NewWriter(os.Stdout)
		if err := w.Write([]string{"pageviews", "visitors", "visits", "bounces", "totaltime"}); err != nil {
			return err
		}
		record := []string{
			strconv.FormatInt(stats.Pageviews, 10),
			strconv.FormatInt(stats.Visitors, 10),
			strconv.FormatInt(stats.Visits, 10),
			strconv.FormatInt(stats.Bounces, 10),
			strconv.FormatFloat(stats.TotalTime, 'f', 1, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	default:
		fmt.Printf("\nStats for %s\n\n", domain)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Pageviews:\t%d\n", stats.Pageviews)
		_, _ = fmt.Fprintf(w, "Visitors:\t%d\n", stats.Visitors)
		_, _ = fmt.Fprintf(w, "Visits:\t%d\n", stats.Visits)
		_, _ = fmt.Fprintf(w, "Bounces:\t%d\n", stats.Bounces)
		_, _ = fmt.Fprintf(w, "Total Time:\t%.1fs\n", stats.TotalTime)
		return w.Flush()
	}
}

func init() {
	for _, cmd := range []*cobra.Command{reportFunnelCmd, reportAttributionCmd, reportChannelsCmd, reportStatsCmd} {
		cmd.Flags().StringVarP(&reportWebsite, "website", "w", "", "Website domain (required)")
		_ = cmd.MarkFlagRequired("website")
		cmd.Flags().StringVarP(&reportRange, "range", "r", "", "Named range (24h, 7d, 30d, 90d, today)")
		cmd.Flags().StringVar(&reportFrom, "from", "", "Start date (RFC3339 or YYYY-MM-DD)")
		cmd.Flags().StringVar(&reportTo, "to", "", "End date (RFC3339 or YYYY-MM-DD)")
		cmd.Flags().StringVarP(&reportFormat, "format", "f", "table", "Output format (table, csv, json)")
	}

	reportFunnelCmd.Flags().StringArrayVar(&reportSteps, "step", nil, "Funnel step, in order (path or event:name)")
	reportFunnelCmd.Flags().IntVar(&reportWindow, "window", 60, "Minutes allowed between consecutive steps")

	reportAttributionCmd.Flags().StringVar(&reportStep, "step", "", "Conversion step (path or event:name)")
	reportAttributionCmd.Flags().StringVarP(&reportModel, "model", "m", "first-click", "Attribution model (first-click, last-click)")
	reportAttributionCmd.Flags().StringVar(&reportCurrency, "currency", "", "Sum revenue in this currency instead of counting sessions")

	reportCmd.AddCommand(reportFunnelCmd)
	reportCmd.AddCommand(reportAttributionCmd)
	reportCmd.AddCommand(reportChannelsCmd)
	reportCmd.AddCommand(reportStatsCmd)

	RootCmd.AddCommand(reportCmd)
}
