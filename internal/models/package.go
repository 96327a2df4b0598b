package models

import (
	"strings"
)

const PackageFormatZip = "zip"

/**
 * PackageDescriptor 一个可下载的更新包
 * @property {string} Name - 包名，同时作为缓存子目录名
 * @property {string} Version - 包版本
 * @property {string} URL - 包下载地址
 * @property {int64} Size - 包大小(字节)
 * @property {string} Format - 包格式，目前只支持zip
 * @property {map[string]string} Hash - 摘要算法(小写) -> 十六进制摘要
 * @property {bool} Force - 是否强制更新
 */
type PackageDescriptor struct {
	Name        string            `json:"name" yaml:"name"`
	Version     string            `json:"version" yaml:"version"`
	URL         string            `json:"url" yaml:"url"`
	Size        int64             `json:"size" yaml:"size"`
	Format      string            `json:"format" yaml:"format"`
	Hash        map[string]string `json:"hash" yaml:"hash"`
	Title       string            `json:"title,omitempty" yaml:"title,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Force       bool              `json:"force,omitempty" yaml:"force,omitempty"`
}

// FileName is the on-disk name of the downloaded package: <name>-<version>.<format>.
func (p *PackageDescriptor) FileName() string {
	return p.Name + "-" + p.Version + "." + strings.ToLower(p.Format)
}

/**
 * UpgradeResult 升级查询接口的响应
 * @description
 * - 字段名与升级服务器的JSON格式保持一致
 * - HasNewVersion为false时，其余包字段无意义
 */
type UpgradeResult struct {
	PackageName       string            `json:"package_name"`
	HasNewVersion     bool              `json:"has_new_version"`
	PackageVersion    string            `json:"package_version,omitempty"`
	ForceUpdate       bool              `json:"force_update,omitempty"`
	PackageURL        string            `json:"package_url,omitempty"`
	PackageSize       int64             `json:"package_size,omitempty"`
	PackageFormat     string            `json:"package_format,omitempty"`
	PackageHash       map[string]string `json:"package_hash,omitempty"`
	UpdateTitle       string            `json:"update_title,omitempty"`
	UpdateDescription string            `json:"update_description,omitempty"`
}

/**
 * Convert upgrade result into a validated package descriptor
 * @param {func(string) bool} supported - Hash algorithm allow-list predicate
 * @returns {PackageDescriptor} Descriptor with hash keys normalized to lower case
 * @returns {error} ErrPackageInfoFormat, ErrUnsupportedPackageFormat or ErrUnsupportedHashAlgorithm
 */
func (r *UpgradeResult) Descriptor(supported func(string) bool) (PackageDescriptor, error) {
	var desc PackageDescriptor
	if !r.HasNewVersion {
		return desc, NewError(ErrPackageInfoFormat, "package '%s' has no new version", r.PackageName)
	}
	if r.PackageName == "" || r.PackageVersion == "" || r.PackageURL == "" {
		return desc, NewError(ErrPackageInfoFormat, "missing package name, version or url")
	}
	if r.PackageSize <= 0 {
		return desc, NewError(ErrPackageInfoFormat, "invalid package size %d", r.PackageSize)
	}
	if !strings.EqualFold(r.PackageFormat, PackageFormatZip) {
		return desc, NewError(ErrUnsupportedPackageFormat, "'%s'", r.PackageFormat)
	}
	hash := make(map[string]string, len(r.PackageHash))
	for algo, sum := range r.PackageHash {
		name := strings.ToLower(algo)
		if !supported(name) {
			return desc, NewError(ErrUnsupportedHashAlgorithm, "'%s'", algo)
		}
		hash[name] = sum
	}
	desc = PackageDescriptor{
		Name:        r.PackageName,
		Version:     r.PackageVersion,
		URL:         r.PackageURL,
		Size:        r.PackageSize,
		Format:      PackageFormatZip,
		Hash:        hash,
		Title:       r.UpdateTitle,
		Description: r.UpdateDescription,
		Force:       r.ForceUpdate,
	}
	return desc, nil
}
