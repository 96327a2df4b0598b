package config

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"costrict-updater/internal/logger"
	"costrict-updater/internal/utils"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

/**
 * PackageConfig 升级服务器上一个包的配置
 * @property {string} package - 包名
 * @property {map[string]PackageInfo} versions - 可下发的版本
 * @property {[]UpgradePolicy} policies - 升级策略，按顺序匹配
 */
type PackageConfig struct {
	Package  string                 `yaml:"package"`
	Versions map[string]PackageInfo `yaml:"versions"`
	Policies []UpgradePolicy        `yaml:"policies"`
}

type PackageInfo struct {
	URL         string            `yaml:"url"`
	Size        int64             `yaml:"size"`
	Format      string            `yaml:"format"`
	Hash        map[string]string `yaml:"hash"`
	Title       string            `yaml:"title,omitempty"`
	Description string            `yaml:"description,omitempty"`
}

/**
 * UpgradePolicy 升级策略
 * @property {[]string} matches - 客户端版本范围，任一命中即采用本策略
 * @property {string} target - 下发的目标版本，必须出现在versions中
 * @property {*bool} force - 覆盖强制更新标记
 * @property {*string} title - 覆盖更新标题
 * @property {*string} description - 覆盖更新说明
 */
type UpgradePolicy struct {
	Matches     []string `yaml:"matches"`
	Target      string   `yaml:"target"`
	Force       *bool    `yaml:"force,omitempty"`
	Title       *string  `yaml:"title,omitempty"`
	Description *string  `yaml:"description,omitempty"`

	Ranges []*utils.VersionRange `yaml:"-"`
}

/**
 * Load one package config file
 * @param {string} path - YAML file path
 * @returns {*PackageConfig} Parsed config with version ranges compiled
 * @returns {error} Error if the file cannot be read, parsed or a range is invalid
 */
func LoadPackageConfig(path string) (*PackageConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pc PackageConfig
	if err := yaml.Unmarshal(content, &pc); err != nil {
		return nil, fmt.Errorf("parse '%s': %w", path, err)
	}
	if pc.Package == "" {
		return nil, fmt.Errorf("parse '%s': missing package name", path)
	}
	for i := range pc.Policies {
		policy := &pc.Policies[i]
		if _, ok := pc.Versions[policy.Target]; !ok {
			logger.Warnf("Package '%s': policy target '%s' has no version entry", pc.Package, policy.Target)
		}
		for _, match := range policy.Matches {
			r, err := utils.ParseVersionRange(match)
			if err != nil {
				return nil, fmt.Errorf("package '%s': %w", pc.Package, err)
			}
			policy.Ranges = append(policy.Ranges, r)
		}
	}
	return &pc, nil
}

/**
 * Load every *.yaml / *.yml file below dir
 * @returns {map[string]PackageConfig} Package name -> config
 */
func ScanPackageDir(dir string) (map[string]PackageConfig, error) {
	packages := map[string]PackageConfig{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(path)
		if d.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		pc, err := LoadPackageConfig(path)
		if err != nil {
			return err
		}
		packages[pc.Package] = *pc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return packages, nil
}

/**
 * Watch the package directory and reload on change
 * @param {context.Context} ctx - Stops the watcher
 * @param {string} dir - Package config directory
 * @param {func(map[string]PackageConfig)} onChange - Receives every successful reload
 * @description
 * - Bursts of events are coalesced for half a second before reloading
 * - A reload that fails keeps the previous configuration and is logged
 */
func WatchPackageDir(ctx context.Context, dir string, onChange func(map[string]PackageConfig)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		const settle = 500 * time.Millisecond
		timer := time.NewTimer(settle)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					timer.Reset(settle)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("Package config watcher error: %v", err)
			case <-timer.C:
				packages, err := ScanPackageDir(dir)
				if err != nil {
					logger.Errorf("Reload package configs from '%s' failed: %v", dir, err)
					continue
				}
				logger.Infof("Reloaded %d package configs from '%s'", len(packages), dir)
				onChange(packages)
			}
		}
	}()
	return nil
}
