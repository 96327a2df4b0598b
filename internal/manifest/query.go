// Package manifest asks the update server whether a newer package exists.
package manifest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"costrict-updater/internal/config"
	"costrict-updater/internal/digest"
	"costrict-updater/internal/logger"
	"costrict-updater/internal/models"
	"costrict-updater/internal/rpc"
)

const maxManifestSize = 1 << 20

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
}

/**
 * Create manifest query client
 * @param {config.UpdaterConfig} cfg - ManifestURL, UserAgent and QueryTimeout are used
 * @param {*http.Client} hc - HTTP client, nil creates one with cfg.QueryTimeout
 * @description
 * - With cfg.ManifestSocket set, requests go through that unix socket
 */
func NewClient(cfg config.UpdaterConfig, hc *http.Client) *Client {
	cfg.Correct()
	if hc == nil && cfg.ManifestSocket != "" {
		hc = rpc.NewHTTPClient(&rpc.HTTPConfig{Network: "unix", Address: cfg.ManifestSocket, Timeout: cfg.QueryTimeout})
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.QueryTimeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.ManifestURL, "/"),
		userAgent: cfg.UserAgent,
		http:      hc,
	}
}

/**
 * Query the upgrade information of a package
 * @param {context.Context} ctx - Request context
 * @param {string} packageName - Package name
 * @param {string} currentVersion - Version the client runs now
 * @returns {models.UpgradeResult} Raw server answer
 * @returns {error} ErrNetwork on transport failure or non-200 status, ErrPackageInfoFormat on bad JSON
 */
func (c *Client) Query(ctx context.Context, packageName, currentVersion string) (models.UpgradeResult, error) {
	var res models.UpgradeResult
	u := c.baseURL + "/" + url.PathEscape(packageName) + "/" + url.PathEscape(currentVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return res, models.WrapError(models.ErrNetwork, err, "GET %s", u)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return res, models.WrapError(models.ErrNetwork, err, "GET %s", u)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return res, models.NewError(models.ErrNetwork, "GET %s: status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return res, models.WrapError(models.ErrNetwork, err, "GET %s", u)
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return res, models.WrapError(models.ErrPackageInfoFormat, err, "%s", u)
	}
	logger.Debugf("Query '%s' %s: has_new_version=%v version=%s",
		packageName, currentVersion, res.HasNewVersion, res.PackageVersion)
	return res, nil
}

/**
 * Query and convert the answer into a validated descriptor
 * @returns {*models.PackageDescriptor} nil when no newer version exists
 */
func (c *Client) Check(ctx context.Context, packageName, currentVersion string) (*models.PackageDescriptor, error) {
	res, err := c.Query(ctx, packageName, currentVersion)
	if err != nil {
		return nil, err
	}
	if !res.HasNewVersion {
		return nil, nil
	}
	desc, err := res.Descriptor(digest.Supported)
	if err != nil {
		return nil, err
	}
	return &desc, nil
}
