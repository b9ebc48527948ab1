package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/seuros/raporta/internal/models"
)

var websiteCmd = &cobra.Command{
	Use:   "website",
	Short: "Manage tracked websites",
}

var websiteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked websites",
	Long: `List every tracked website.

Examples:
  raporta website list
  raporta website list --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWebsiteList(websiteListFormat)
	},
}

var websiteAddCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "Register a website",
	Long: `Register a website for reporting.

Examples:
  raporta website add example.com
  raporta website add example.com --name "Example Shop"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWebsiteAdd(args[0], websiteName)
	},
}

var websiteRemoveCmd = &cobra.Command{
	Use:   "remove <domain>",
	Short: "Remove a website",
	Long: `Soft-delete a website. Its events stay in the database but it no
longer appears in listings and its API keys stop resolving.

Examples:
  raporta website remove example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWebsiteRemove(args[0])
	},
}

var websiteShowCmd = &cobra.Command{
	Use:   "show <domain>",
	Short: "Show details of a website",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWebsiteShow(args[0], websiteListFormat)
	},
}

// Command flags
var (
	websiteName       string
	websiteListFormat string
)

// Swappable for tests.
var (
	listWebsitesFn       = models.ListWebsites
	createWebsiteFn      = models.CreateWebsite
	deleteWebsiteFn      = models.DeleteWebsite
	fetchWebsiteByDomain = models.GetWebsiteByDomain
)

var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?$`)

func validateDomain(domain string) error {
	if domain == "" {
		return fmt.Errorf("domain must not be empty")
	}
	if len(domain) > 253 {
		return fmt.Errorf("domain too long: %d characters", len(domain))
	}
	if !domainPattern.MatchString(domain) {
		return fmt.Errorf("invalid domain format: %s", domain)
	}
	return nil
}

func runWebsiteList(format string) error {
	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	websites, err := listWebsitesFn(ctx)
	if err != nil {
		return fmt.Errorf("failed to list websites: %w", err)
	}

	switch format {
	case "table":
		return outputWebsiteTable(websites)
	case "csv":
		return outputWebsiteCSV(websites)
	case "json":
		return outputJSON(websites)
	default:
		return fmt.Errorf("invalid format %q (use table, csv, or json)", format)
	}
}

func runWebsiteAdd(domain, name string) error {
	if err := validateDomain(domain); err != nil {
		return err
	}

	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var namePtr *string
	if name != "" {
		namePtr = &name
	}

	website, err := createWebsiteFn(ctx, domain, namePtr)
	if err != nil {
		return fmt.Errorf("failed to create website: %w", err)
	}

	fmt.Println("Website registered successfully")
	fmt.Printf("Website ID: %s\n", website.WebsiteID)
	fmt.Printf("Domain:     %s\n", website.Domain)
	return nil
}

func runWebsiteRemove(domain string) error {
	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	website, err := fetchWebsiteByDomain(ctx, domain)
	if err != nil {
		return fmt.Errorf("website not found: %w", err)
	}

	if err := deleteWebsiteFn(ctx, website.WebsiteID); err != nil {
		return fmt.Errorf("failed to remove website: %w", err)
	}

	fmt.Printf("Website %s removed\n", domain)
	return nil
}

func runWebsiteShow(domain, format string) error {
	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	website, err := fetchWebsiteByDomain(ctx, domain)
	if err != nil {
		return fmt.Errorf("website not found: %w", err)
	}

	if format == "json" {
		return outputJSON(website)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Website ID:\t%s\n", website.WebsiteID)
	_, _ = fmt.Fprintf(w, "Domain:\t%s\n", website.Domain)
	if website.Name != nil {
		_, _ = fmt.Fprintf(w, "Name:\t%s\n", *website.Name)
	} else {
		_, _ = fmt.Fprintf(w, "Name:\t(none)\n")
	}
	_, _ = fmt.Fprintf(w, "Created:\t%s\n", website.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "Updated:\t%s\n", website.UpdatedAt.Format(time.RFC3339))
	return w.Flush()
}

func outputWebsiteTable(websites []*models.Website) error {
	if len(websites) == 0 {
		fmt.Println("No websites registered")
		fmt.Println()
		fmt.Println("Add one with: raporta website add <domain>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOMAIN\tNAME\tWEBSITE ID\tCREATED")
	_, _ = fmt.Fprintln(w, "------\t----\t----------\t-------")
	for _, site := range websites {
		name := "-"
		if site.Name != nil {
			name = *site.Name
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			site.Domain, name, site.WebsiteID, site.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func outputWebsiteCSV(websites []*models.Website) error {
	w := csv.NewWriter(os.Stdout)
	if err := w.Write([]string{"domain", "name", "website_id", "created_at"}); err != nil {
		return err
	}
	for _, site := range websites {
		name := ""
		if site.Name != nil {
			name = *site.Name
		}
		record := []string{site.Domain, name, site.WebsiteID.String(), site.CreatedAt.Format(time.RFC3339)}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	websiteAddCmd.Flags().StringVarP(&websiteName, "name", "n", "", "Friendly name for the website")
	websiteListCmd.Flags().StringVarP(&websiteListFormat, "format", "f", "table", "Output format (table, csv, json)")
	websiteShowCmd.Flags().StringVarP(&websiteListFormat, "format", "f", "table", "Output format (table, json)")

	websiteCmd.AddCommand(websiteListCmd)
	websiteCmd.AddCommand(websiteAddCmd)
	websiteCmd.AddCommand(websiteRemoveCmd)
	websiteCmd.AddCommand(websiteShowCmd)

	RootCmd.AddCommand(websiteCmd)
}
