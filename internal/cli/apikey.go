package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/seuros/raporta/internal/models"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys for the reporting API",
	Long: `Manage API keys for the reporting API.

API keys let clients query reports over HTTP. Every key carries the stats
scope; add the export scope to allow raw event listing.`,
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create <website-domain>",
	Short: "Create a new API key for a website",
	Long: `Create a new API key for querying reports.

The full API key is displayed ONCE on creation. Save it securely - it cannot be retrieved later.

Examples:
  raporta apikey create example.com
  raporta apikey create example.com --name "Marketing Dashboard"
  raporta apikey create example.com --scopes stats,export`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPIKeyCreate(args[0])
	},
}

var apikeyListCmd = &cobra.Command{
	Use:   "list <website-domain>",
	Short: "List API keys for a website",
	Long: `List all API keys for a website, including revoked keys.

Examples:
  raporta apikey list example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPIKeyList(args[0])
	},
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id-or-prefix>",
	Short: "Revoke an API key",
	Long: `Revoke an API key by its ID or prefix.

Revoked keys immediately stop working. This action cannot be undone.

Examples:
  raporta apikey revoke raporta_live_abc
  raporta apikey revoke 550e8400-e29b-41d4-a716-446655440000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPIKeyRevoke(args[0])
	},
}

var apikeyShowCmd = &cobra.Command{
	Use:   "show <key-id-or-prefix>",
	Short: "Show details of an API key",
	Long: `Display detailed information about an API key.

Examples:
  raporta apikey show raporta_live_abc
  raporta apikey show 550e8400-e29b-41d4-a716-446655440000`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAPIKeyShow(args[0])
	},
}

// Command flags
var (
	apikeyName   string
	apikeyScopes string
)

func runAPIKeyCreate(websiteDomain string) error {
	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	website, err := fetchWebsiteByDomain(ctx, websiteDomain)
	if err != nil {
		return fmt.Errorf("website not found: %w", err)
	}

	var namePtr *string
	if apikeyName != "" {
		namePtr = &apikeyName
	}

	scopes := []string{models.ScopeStats}
	if apikeyScopes != "" {
		scopes = scopes[:0]
		for _, scope := range strings.Split(apikeyScopes, ",") {
			if scope = strings.TrimSpace(scope); scope != "" {
				scopes = append(scopes, scope)
			}
		}
	}

	result, err := models.GenerateAPIKeyWithScopes(website.WebsiteID, namePtr, scopes)
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	fmt.Println()
	fmt.Println("API Key created successfully!")
	fmt.Println()
	fmt.Println("============================================================")
	fmt.Println("IMPORTANT: Save this key now. It will NOT be shown again.")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Printf("API Key: %s\n", result.FullKey)
	fmt.Println()
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Key ID:     %s\n", result.APIKey.KeyID)
	fmt.Printf("Website:    %s (%s)\n", website.Domain, website.WebsiteID)
	if result.APIKey.Name != nil {
		fmt.Printf("Name:       %s\n", *result.APIKey.Name)
	}
	fmt.Printf("Scopes:     %s\n", strings.Join(result.APIKey.Scopes, ", "))
	fmt.Printf("Created:    %s\n", result.APIKey.CreatedAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Usage example:")
	fmt.Println()
	fmt.Printf("  curl -X POST https://your-raporta-host/api/websites/%s/reports/stats \\\n", website.WebsiteID)
	fmt.Printf("    -H \"Authorization: Bearer %s\" \\\n", result.FullKey)
	fmt.Printf("    -H \"Content-Type: application/json\" \\\n")
	fmt.Printf("    -d '{\"filter\": {\"range\": \"7d\"}}'\n")
	fmt.Println()

	return nil
}

func runAPIKeyList(websiteDomain string) error {
	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	website, err := fetchWebsiteByDomain(ctx, websiteDomain)
	if err != nil {
		return fmt.Errorf("website not found: %w", err)
	}

	keys, err := models.ListAPIKeys(website.WebsiteID)
	if err != nil {
		return fmt.Errorf("failed to list API keys: %w", err)
	}

	if len(keys) == 0 {
		fmt.Printf("No API keys found for website '%s'\n", websiteDomain)
		fmt.Println()
		fmt.Println("Create one with: raporta apikey create", websiteDomain)
		return nil
	}

	fmt.Printf("\nAPI Keys for %s (%d total)\n\n", websiteDomain, len(keys))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PREFIX\tNAME\tSCOPES\tSTATUS\tLAST USED\tCREATED")
	_, _ = fmt.Fprintln(w, "------\t----\t------\t------\t---------\t-------")

	for _, key := range keys {
		name := "-"
		if key.Name != nil {
			name = *key.Name
		}

		status := "active"
		if key.RevokedAt != nil {
			status = "revoked"
		} else if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
			status = "expired"
		}

		lastUsed := "never"
		if key.LastUsedAt != nil {
			lastUsed = key.LastUsedAt.Format("2006-01-02 15:04")
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			key.KeyPrefix,
			name,
			strings.Join(key.Scopes, ","),
			status,
			lastUsed,
			key.CreatedAt.Format("2006-01-02 15:04"),
		)
	}

	_ = w.Flush()
	fmt.Println()

	return nil
}

func runAPIKeyRevoke(keyIDOrPrefix string) error {
	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	// Try parsing as UUID first
	if keyID, err := uuid.Parse(keyIDOrPrefix); err == nil {
		if err := models.RevokeAPIKey(keyID); err != nil {
			return fmt.Errorf("failed to revoke API key: %w", err)
		}
		fmt.Printf("API key %s revoked successfully\n", keyID)
		return nil
	}

	if err := models.RevokeAPIKeyByPrefix(keyIDOrPrefix); err != nil {
		return fmt.Errorf("failed to revoke API key with prefix '%s': %w", keyIDOrPrefix, err)
	}

	fmt.Printf("API key with prefix '%s' revoked successfully\n", keyIDOrPrefix)
	return nil
}

func runAPIKeyShow(keyIDOrPrefix string) error {
	closer, err := ensureDatabase()
	if err != nil {
		return err
	}
	defer closer()

	var key *models.APIKey

	if keyID, parseErr := uuid.Parse(keyIDOrPrefix); parseErr == nil {
		key, err = models.GetAPIKeyByID(keyID)
	} else {
		key, err = models.GetAPIKeyByPrefix(keyIDOrPrefix)
	}

	if err != nil {
		return fmt.Errorf("API key not found: %w", err)
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "Key ID:\t%s\n", key.KeyID)
	_, _ = fmt.Fprintf(w, "Prefix:\t%s\n", key.KeyPrefix)
	_, _ = fmt.Fprintf(w, "Website ID:\t%s\n", key.WebsiteID)

	if key.Name != nil {
		_, _ = fmt.Fprintf(w, "Name:\t%s\n", *key.Name)
	} else {
		_, _ = fmt.Fprintf(w, "Name:\t(none)\n")
	}

	_, _ = fmt.Fprintf(w, "Scopes:\t%s\n", strings.Join(key.Scopes, ", "))

	status := "active"
	if key.RevokedAt != nil {
		status = fmt.Sprintf("revoked (%s)", key.RevokedAt.Format(time.RFC3339))
	} else if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
		status = fmt.Sprintf("expired (%s)", key.ExpiresAt.Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", status)

	_, _ = fmt.Fprintf(w, "Created:\t%s\n", key.CreatedAt.Format(time.RFC3339))

	if key.LastUsedAt != nil {
		_, _ = fmt.Fprintf(w, "Last Used:\t%s\n", key.LastUsedAt.Format(time.RFC3339))
	} else {
		_, _ = fmt.Fprintf(w, "Last Used:\tnever\n")
	}

	if key.ExpiresAt != nil {
		_, _ = fmt.Fprintf(w, "Expires:\t%s\n", key.ExpiresAt.Format(time.RFC3339))
	}

	_ = w.Flush()
	fmt.Println()

	return nil
}

func init() {
	apikeyCreateCmd.Flags().StringVarP(&apikeyName, "name", "n", "", "Friendly name for the API key (e.g., 'Marketing Dashboard')")
	apikeyCreateCmd.Flags().StringVar(&apikeyScopes, "scopes", "", "Comma-separated scopes (stats, export)")

	apikeyCmd.AddCommand(apikeyCreateCmd)
	apikeyCmd.AddCommand(apikeyListCmd)
	apikeyCmd.AddCommand(apikeyRevokeCmd)
	apikeyCmd.AddCommand(apikeyShowCmd)

	RootCmd.AddCommand(apikeyCmd)
}
