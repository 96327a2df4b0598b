package services

import (
	"errors"
	"sync"

	"costrict-updater/internal/config"
	"costrict-updater/internal/logger"
	"costrict-updater/internal/models"
	"costrict-updater/internal/utils"
)

var (
	ErrPackageNotFound = errors.New("package not found")
	ErrInvalidVersion  = errors.New("invalid client version")
)

/**
 * ManifestService 升级服务器的版本策略处理
 * @description
 * - 持有全部包配置，可在运行时整体替换
 * - 按策略顺序匹配客户端版本，第一条命中的策略生效
 */
type ManifestService struct {
	mu       sync.RWMutex
	packages map[string]config.PackageConfig
}

func NewManifestService(packages map[string]config.PackageConfig) *ManifestService {
	if packages == nil {
		packages = map[string]config.PackageConfig{}
	}
	return &ManifestService{packages: packages}
}

// Reload replaces all package configs at once.
func (s *ManifestService) Reload(packages map[string]config.PackageConfig) {
	s.mu.Lock()
	s.packages = packages
	s.mu.Unlock()
}

// Packages lists the names of the configured packages.
func (s *ManifestService) Packages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.packages))
	for name := range s.packages {
		names = append(names, name)
	}
	return names
}

/**
 * Answer an upgrade query
 * @param {string} packageName - Package the client runs
 * @param {string} clientVersion - Version the client runs
 * @returns {*models.UpgradeResult} Upgrade answer, HasNewVersion false when no policy applies
 * @returns {error} ErrInvalidVersion or ErrPackageNotFound
 * @description
 * - A policy whose target has no version entry yields HasNewVersion false
 * - Policy title/description override the version's own texts
 */
func (s *ManifestService) Process(packageName, clientVersion string) (*models.UpgradeResult, error) {
	v, err := utils.ParseVersion(clientVersion)
	if err != nil {
		return nil, errors.Join(ErrInvalidVersion, err)
	}

	s.mu.RLock()
	pc, found := s.packages[packageName]
	s.mu.RUnlock()
	if !found {
		return nil, ErrPackageNotFound
	}

	result := &models.UpgradeResult{PackageName: packageName}
	var matched *config.UpgradePolicy
	for i := range pc.Policies {
		for _, r := range pc.Policies[i].Ranges {
			if r.Matches(v) {
				matched = &pc.Policies[i]
				break
			}
		}
		if matched != nil {
			break
		}
	}
	if matched == nil {
		return result, nil
	}

	info, found := pc.Versions[matched.Target]
	if !found {
		logger.Warnf("Package '%s': target version '%s' is not configured", packageName, matched.Target)
		return result, nil
	}

	result.HasNewVersion = true
	result.PackageVersion = matched.Target
	result.PackageURL = info.URL
	result.PackageSize = info.Size
	result.PackageFormat = info.Format
	result.PackageHash = info.Hash
	result.UpdateTitle = info.Title
	result.UpdateDescription = info.Description
	if matched.Force != nil {
		result.ForceUpdate = *matched.Force
	}
	if matched.Title != nil {
		result.UpdateTitle = *matched.Title
	}
	if matched.Description != nil {
		result.UpdateDescription = *matched.Description
	}
	return result, nil
}
