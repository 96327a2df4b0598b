package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"costrict-updater/internal/config"
	"costrict-updater/internal/digest"
	"costrict-updater/internal/logger"
	"costrict-updater/internal/models"

	"github.com/mholt/archiver"
)

/**
 * PackOptions 打包参数
 * @property {string} Name - 包名
 * @property {string} Version - 包版本
 * @property {string} OutDir - 安装包输出目录
 * @property {string} BaseURL - 下载地址前缀，为空时url只包含文件名
 * @property {[]string} Algorithms - 需要计算的摘要算法
 */
type PackOptions struct {
	Name       string
	Version    string
	OutDir     string
	BaseURL    string
	Algorithms []string
}

/**
 * Build a zip package from the contents of dir
 * @param {string} dir - Directory whose children become the archive root
 * @param {PackOptions} opts - Naming, output and digest options
 * @returns {string} Path of the created package
 * @returns {config.PackageInfo} Version entry ready for a package config file
 * @description
 * - An existing package with the same name is replaced
 * - Entries are stored relative to dir so the archive unpacks into the target directly
 */
func BuildPackage(dir string, opts PackOptions) (string, config.PackageInfo, error) {
	var info config.PackageInfo
	if opts.Name == "" || opts.Version == "" {
		return "", info, fmt.Errorf("package name and version are required")
	}
	if len(opts.Algorithms) == 0 {
		opts.Algorithms = []string{digest.SHA256}
	}
	for _, algo := range opts.Algorithms {
		if !digest.Supported(algo) {
			return "", info, models.NewError(models.ErrUnsupportedHashAlgorithm, "'%s'", algo)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", info, err
	}
	if len(entries) == 0 {
		return "", info, fmt.Errorf("directory '%s' is empty", dir)
	}
	sources := make([]string, 0, len(entries))
	for _, e := range entries {
		sources = append(sources, filepath.Join(dir, e.Name()))
	}

	desc := models.PackageDescriptor{Name: opts.Name, Version: opts.Version, Format: models.PackageFormatZip}
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return "", info, err
	}
	out := filepath.Join(opts.OutDir, desc.FileName())
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return "", info, err
	}
	if err := archiver.NewZip().Archive(sources, out); err != nil {
		return "", info, fmt.Errorf("archive '%s': %w", dir, err)
	}

	fi, err := os.Stat(out)
	if err != nil {
		return "", info, err
	}
	sums, err := digest.FileSums(out, opts.Algorithms)
	if err != nil {
		return "", info, err
	}
	info = config.PackageInfo{
		URL:    desc.FileName(),
		Size:   fi.Size(),
		Format: models.PackageFormatZip,
		Hash:   sums,
		Title:  opts.Version,
	}
	if opts.BaseURL != "" {
		info.URL = strings.TrimRight(opts.BaseURL, "/") + "/" + desc.FileName()
	}
	logger.Infof("Package '%s' built: %s (%d bytes)", desc.FileName(), out, fi.Size())
	return out, info, nil
}
