package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	defaultUpdateRequestTimeout = 15 * time.Second
	defaultReleaseQueryURL      = "https://git.skobk.in/api/v1/repos/skobkin/meshhttp/releases?draft=false&pre-release=false&limit=5"
)

// ReleaseInfo is one published release.
type ReleaseInfo struct {
	Version     string    `json:"version"`
	HTMLURL     string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// UpdateReport is the result of one release check.
type UpdateReport struct {
	CurrentVersion  string      `json:"current_version"`
	Latest          ReleaseInfo `json:"latest"`
	UpdateAvailable bool        `json:"update_available"`
	CheckedAt       time.Time   `json:"checked_at"`
}

type UpdateCheckerConfig struct {
	CurrentVersion string
	Endpoint       string
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// UpdateChecker asks the release API whether a newer build exists.
type UpdateChecker struct {
	currentVersion string
	endpoint       string
	client         *http.Client
	logger         *slog.Logger
}

type forgejoRelease struct {
	TagName     string    `json:"tag_name"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
}

func NewUpdateChecker(cfg UpdateCheckerConfig) *UpdateChecker {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultReleaseQueryURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultUpdateRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	current := strings.TrimSpace(cfg.CurrentVersion)
	if current == "" {
		current = BuildVersion()
	}

	return &UpdateChecker{
		currentVersion: current,
		endpoint:       endpoint,
		client:         client,
		logger:         logger,
	}
}

func (c *UpdateChecker) Check(ctx context.Context) (UpdateReport, error) {
	releases, err := c.fetchReleases(ctx)
	if err != nil {
		return UpdateReport{}, err
	}
	if len(releases) == 0 {
		return UpdateReport{}, fmt.Errorf("release API response is empty")
	}

	latest := releases[0]
	report := UpdateReport{
		CurrentVersion:  c.currentVersion,
		Latest:          latest,
		UpdateAvailable: isReleaseNewer(c.currentVersion, latest.Version),
		CheckedAt:       time.Now().UTC(),
	}
	c.logger.Debug("update check completed", "current_version", report.CurrentVersion, "latest_version", latest.Version, "update_available", report.UpdateAvailable)

	return report, nil
}

func (c *UpdateChecker) fetchReleases(ctx context.Context) ([]ReleaseInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create releases request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request releases: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
			return nil, fmt.Errorf("request releases: unexpected status %d: %s", resp.StatusCode, trimmed)
		}

		return nil, fmt.Errorf("request releases: unexpected status %d", resp.StatusCode)
	}

	var payload []forgejoRelease
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode releases response: %w", err)
	}

	releases := make([]ReleaseInfo, 0, len(payload))
	for _, item := range payload {
		version := strings.TrimSpace(item.TagName)
		if version == "" {
			continue
		}
		releases = append(releases, ReleaseInfo{
			Version:     version,
			HTMLURL:     strings.TrimSpace(item.HTMLURL),
			PublishedAt: item.PublishedAt,
		})
	}

	return releases, nil
}

// isReleaseNewer treats a non-semver current build (like "dev") as older
// than any valid release.
func isReleaseNewer(currentVersion string, latestVersion string) bool {
	current := normalizeSemver(currentVersion)
	latest := normalizeSemver(latestVersion)

	if !semver.IsValid(latest) {
		return false
	}
	if !semver.IsValid(current) {
		return true
	}

	return semver.Compare(current, latest) < 0
}

func normalizeSemver(version string) string {
	trimmed := strings.TrimSpace(version)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "v") {
		return "v" + trimmed
	}

	return trimmed
}
