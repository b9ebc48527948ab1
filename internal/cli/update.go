package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seuros/raporta/internal/selfupdate"
)

var updateCheckOnly bool

// Swappable for tests.
var (
	checkLatestRelease = selfupdate.CheckLatest
	applyUpdate        = selfupdate.Apply
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update raporta to the latest release",
	Long: `Download and install the latest raporta release from GitHub,
replacing the current executable.

Examples:
  raporta update
  raporta update --check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpdate(Version, updateCheckOnly)
	},
}

func runUpdate(currentVersion string, checkOnly bool) error {
	if currentVersion == "dev" {
		return fmt.Errorf("cannot self-update a development build")
	}

	if checkOnly {
		rel, newer, err := checkLatestRelease(currentVersion)
		if err != nil {
			return err
		}
		if !newer {
			fmt.Printf("raporta %s is up to date\n", currentVersion)
			return nil
		}
		fmt.Printf("New version available: %s (current: %s)\n", rel.Version, currentVersion)
		fmt.Println("Run 'raporta update' to install it.")
		return nil
	}

	rel, updated, err := applyUpdate(currentVersion)
	if err != nil {
		return err
	}
	if !updated {
		fmt.Printf("raporta %s is up to date\n", currentVersion)
		return nil
	}

	fmt.Printf("Updated to %s\n", rel.Version)
	if rel.Notes != "" {
		fmt.Println()
		fmt.Println(rel.Notes)
	}
	return nil
}

func init() {
	updateCmd.Flags().BoolVar(&updateCheckOnly, "check", false, "Only check for a newer release")

	RootCmd.AddCommand(updateCmd)
}
