// Package selfupdate upgrades the raporta binary in place from GitHub
// releases.
package selfupdate

import (
	"fmt"
	"strings"

	"github.com/blang/semver"
	gh "github.com/rhysd/go-github-selfupdate/selfupdate"
)

const repoSlug = "seuros/raporta"

// Release describes a published release relevant to the running binary.
type Release struct {
	Version semver.Version
	URL     string
	Notes   string
}

// CheckLatest reports the newest published release and whether it is newer
// than the running version.
func CheckLatest(currentVersion string) (*Release, bool, error) {
	current, err := parseVersion(currentVersion)
	if err != nil {
		return nil, false, err
	}

	latest, found, err := gh.DetectLatest(repoSlug)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check releases: %w", err)
	}
	if !found {
		return nil, false, fmt.Errorf("no releases found for %s", repoSlug)
	}

	rel := &Release{
		Version: latest.Version,
		URL:     latest.AssetURL,
		Notes:   latest.ReleaseNotes,
	}
	return rel, latest.Version.GT(current), nil
}

// Apply replaces the running executable with the latest release. The second
// return value reports whether an update was actually applied.
func Apply(currentVersion string) (*Release, bool, error) {
	current, err := parseVersion(currentVersion)
	if err != nil {
		return nil, false, err
	}

	latest, err := gh.UpdateSelf(current, repoSlug)
	if err != nil {
		return nil, false, fmt.Errorf("update failed: %w", err)
	}

	rel := &Release{
		Version: latest.Version,
		URL:     latest.AssetURL,
		Notes:   latest.ReleaseNotes,
	}
	return rel, latest.Version.GT(current), nil
}

func parseVersion(v string) (semver.Version, error) {
	parsed, err := semver.Parse(strings.TrimPrefix(v, "v"))
	if err != nil {
		return semver.Version{}, fmt.Errorf("invalid version %q: %w", v, err)
	}
	return parsed, nil
}
