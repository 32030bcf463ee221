// Package updater keeps the waypoint binary current against GitHub
// releases. CheckVersion is a best-effort, non-blocking lookup used at
// server start; SelfUpdate downloads the release tarball for the
// running OS/arch and swaps the executable atomically.
//
// Releases ship .tar.gz assets only, so extraction handles nothing
// else. Windows in-place replacement is not supported.
package updater

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	githubRepo = "waypoint-tools/waypoint"
	binaryName = "waypoint"

	apiTimeout = 10 * time.Second
)

// Test seams: the release endpoint and HTTP client are swapped for an
// httptest server in tests.
var (
	releaseEndpoint = "https://api.github.com/repos/" + githubRepo + "/releases/latest"
	httpClient      = &http.Client{Timeout: apiTimeout}
)

// ReleaseInfo is the subset of the GitHub release payload waypoint reads.
type ReleaseInfo struct {
	TagName string  `json:"tag_name"`
	HTMLURL string  `json:"html_url"`
	Assets  []Asset `json:"assets"`
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// UpdateResult reports the outcome of a version check.
type UpdateResult struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	ReleaseURL      string
}

// CheckVersion compares the running version against the latest GitHub
// release. It never fails: any network or decode problem yields a
// result with UpdateAvailable false, because a missing update notice
// must not degrade the server.
func CheckVersion(currentVersion string) *UpdateResult {
	result := &UpdateResult{CurrentVersion: strings.TrimPrefix(currentVersion, "v")}

	release, err := fetchLatest(currentVersion)
	if err != nil {
		return result
	}

	result.LatestVersion = strings.TrimPrefix(release.TagName, "v")
	result.ReleaseURL = release.HTMLURL

	cur, okCur := parseVersion(result.CurrentVersion)
	latest, okLatest := parseVersion(result.LatestVersion)
	result.UpdateAvailable = okCur && okLatest && cur.less(latest)
	return result
}

// SelfUpdate downloads the latest release for this OS/arch and replaces
// the running executable. The swap is atomic: the new binary lands in a
// temp file next to the executable and is renamed over it, so a failed
// download never leaves a half-written binary.
func SelfUpdate(currentVersion string) error {
	release, err := fetchLatest(currentVersion)
	if err != nil {
		return err
	}

	cur, okCur := parseVersion(strings.TrimPrefix(currentVersion, "v"))
	latest, okLatest := parseVersion(strings.TrimPrefix(release.TagName, "v"))
	if !okLatest {
		return fmt.Errorf("release tag %q is not a version", release.TagName)
	}
	if okCur && !cur.less(latest) {
		return fmt.Errorf("already at latest version (%s)", currentVersion)
	}
	if !okCur {
		// Dev builds have no comparable version; never clobber them.
		return fmt.Errorf("cannot update a %q build — install a released binary first", currentVersion)
	}

	asset, ok := assetFor(release, runtime.GOOS, runtime.GOARCH)
	if !ok {
		return fmt.Errorf("release %s has no %s/%s asset", release.TagName, runtime.GOOS, runtime.GOARCH)
	}

	resp, err := httpClient.Get(asset.BrowserDownloadURL)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", asset.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: status %d", asset.Name, resp.StatusCode)
	}

	binary, err := extractBinary(resp.Body)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", asset.Name, err)
	}

	return install(binary)
}

// fetchLatest retrieves the latest release metadata from the GitHub API.
func fetchLatest(currentVersion string) (*ReleaseInfo, error) {
	req, err := http.NewRequest(http.MethodGet, releaseEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", binaryName+"/"+currentVersion)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release API returned status %d", resp.StatusCode)
	}

	var release ReleaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release payload: %w", err)
	}
	return &release, nil
}

// assetFor picks the release tarball for an OS/arch pair. Matching is by
// substring rather than an exact template so asset naming can evolve
// (version placement, separators) without stranding older binaries.
func assetFor(release *ReleaseInfo, goos, goarch string) (Asset, bool) {
	for _, asset := range release.Assets {
		name := strings.ToLower(asset.Name)
		if !strings.HasSuffix(name, ".tar.gz") {
			continue
		}
		if strings.Contains(name, goos) && strings.Contains(name, goarch) {
			return asset, true
		}
	}
	return Asset{}, false
}

// extractBinary streams a .tar.gz archive and returns the waypoint
// binary's bytes. Other archive members (README, LICENSE) are skipped.
func extractBinary(r io.Reader) ([]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("archive has no %q entry", binaryName)
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != binaryName {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading %s entry: %w", binaryName, err)
		}
		return data, nil
	}
}

// install writes the new binary next to the running executable and
// renames it into place. Same-directory temp keeps the rename atomic
// even when TMPDIR is on a different filesystem.
func install(binary []byte) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(execPath), binaryName+".update-*")
	if err != nil {
		return fmt.Errorf("creating staging file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(binary); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing staging file: %w", err)
	}
	if err := tmp.Chmod(0o755); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("marking staging file executable: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing staging file: %w", err)
	}
	if err := os.Rename(tmpName, execPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", execPath, err)
	}
	return nil
}

// version is a parsed major.minor.patch triple. Pre-release suffixes
// and build metadata are not used in waypoint tags and are rejected.
type version struct {
	major, minor, patch int
}

// parseVersion accepts "1", "1.2" and "1.2.3"; missing parts are zero.
// Anything non-numeric ("dev", "abc123") is not a version.
func parseVersion(s string) (version, bool) {
	if s == "" {
		return version{}, false
	}
	parts := strings.SplitN(s, ".", 4)
	if len(parts) > 3 {
		return version{}, false
	}
	nums := [3]int{}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return version{}, false
		}
		nums[i] = n
	}
	return version{major: nums[0], minor: nums[1], patch: nums[2]}, true
}

func (v version) less(other version) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}
