package services

import (
	"errors"
	"testing"

	"costrict-updater/internal/config"
	"costrict-updater/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policy(t *testing.T, target string, force *bool, title *string, matches ...string) config.UpgradePolicy {
	t.Helper()
	p := config.UpgradePolicy{Matches: matches, Target: target, Force: force, Title: title}
	for _, m := range matches {
		r, err := utils.ParseVersionRange(m)
		require.NoError(t, err)
		p.Ranges = append(p.Ranges, r)
	}
	return p
}

func newManifestService(t *testing.T) *ManifestService {
	yes := true
	urgent := "Urgent fix"
	return NewManifestService(map[string]config.PackageConfig{
		"app": {
			Package: "app",
			Versions: map[string]config.PackageInfo{
				"1.3.0": {URL: "http://h/packages/app-1.3.0.zip", Size: 100, Format: "zip",
					Hash: map[string]string{"sha256": "aa"}, Title: "1.3.0", Description: "notes"},
				"2.0.0": {URL: "http://h/packages/app-2.0.0.zip", Size: 200, Format: "zip"},
			},
			Policies: []config.UpgradePolicy{
				policy(t, "1.3.0", &yes, &urgent, "[1.0,1.1)"),
				policy(t, "1.3.0", nil, nil, "[1.1,1.3)", "0.9"),
				policy(t, "2.0.0", nil, nil, "[1.0,2.0)"),
				policy(t, "9.9.9", nil, nil, "[3.0,]"),
			},
		},
	})
}

func TestProcessFirstMatchingPolicyWins(t *testing.T) {
	t.Parallel()
	svc := newManifestService(t)

	res, err := svc.Process("app", "1.0.5")
	require.NoError(t, err)
	assert.True(t, res.HasNewVersion)
	assert.Equal(t, "1.3.0", res.PackageVersion)
	assert.True(t, res.ForceUpdate)
	assert.Equal(t, "Urgent fix", res.UpdateTitle)
	assert.Equal(t, "notes", res.UpdateDescription)
	assert.Equal(t, map[string]string{"sha256": "aa"}, res.PackageHash)

	res, err = svc.Process("app", "0.9.4")
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", res.PackageVersion)
	assert.False(t, res.ForceUpdate)
	assert.Equal(t, "1.3.0", res.UpdateTitle)

	res, err = svc.Process("app", "1.5")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", res.PackageVersion)
	assert.EqualValues(t, 200, res.PackageSize)
}

func TestProcessNoNewVersion(t *testing.T) {
	t.Parallel()
	svc := newManifestService(t)

	res, err := svc.Process("app", "2.1.0")
	require.NoError(t, err)
	assert.False(t, res.HasNewVersion)
	assert.Equal(t, "app", res.PackageName)

	// 目标版本未配置
	res, err = svc.Process("app", "3.2")
	require.NoError(t, err)
	assert.False(t, res.HasNewVersion)
}

func TestProcessErrors(t *testing.T) {
	t.Parallel()
	svc := newManifestService(t)

	_, err := svc.Process("other", "1.0.0")
	assert.True(t, errors.Is(err, ErrPackageNotFound))

	_, err = svc.Process("app", "not-a-version")
	assert.True(t, errors.Is(err, ErrInvalidVersion))
}

func TestReloadReplacesPackages(t *testing.T) {
	t.Parallel()
	svc := newManifestService(t)
	svc.Reload(map[string]config.PackageConfig{"tool": {Package: "tool"}})

	assert.Equal(t, []string{"tool"}, svc.Packages())
	_, err := svc.Process("app", "1.0.0")
	assert.True(t, errors.Is(err, ErrPackageNotFound))
}
