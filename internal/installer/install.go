// Package installer swaps an installation directory for the contents of a
// package using the <target>, <target>.old, <target>.new directory triple.
package installer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"costrict-updater/internal/config"
	"costrict-updater/internal/logger"
	"costrict-updater/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
)

type Installer struct {
	cfg       config.UpdaterConfig
	extractor Extractor
	rename    func(oldpath, newpath string) error
}

type Option func(*Installer)

func WithExtractor(e Extractor) Option {
	return func(i *Installer) {
		i.extractor = e
	}
}

// WithRename replaces os.Rename for every directory move the installer makes.
func WithRename(fn func(oldpath, newpath string) error) Option {
	return func(i *Installer) {
		i.rename = fn
	}
}

func New(cfg config.UpdaterConfig, opts ...Option) *Installer {
	cfg.Correct()
	i := &Installer{
		cfg:       cfg,
		extractor: ZipExtractor{},
		rename:    os.Rename,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Transients returns the <target>.old and <target>.new paths for target.
func (i *Installer) Transients(target string) (oldDir, newDir string) {
	target = filepath.Clean(target)
	return target + i.cfg.OldSuffix, target + i.cfg.NewSuffix
}

/**
 * Install a zip package into target
 * @param {context.Context} ctx - Cancels the eviction retry loop
 * @param {string} packageFile - Verified zip package
 * @param {string} target - Installation directory, may not exist yet
 * @returns {error} ErrPackageExtract or ErrMoveFile on failure
 * @description
 * - Clears <target>.old/<target>.new left by an earlier crash
 * - Extracts into <target>.new
 * - Moves <target> to <target>.old, retrying while the directory is locked
 * - Moves <target>.new to <target>, rolling back to <target>.old on failure
 * - Moves files only present in <target>.old into <target>, then removes <target>.old
 */
func (i *Installer) InstallZipPackage(ctx context.Context, packageFile, target string) error {
	target = filepath.Clean(target)
	oldDir, newDir := i.Transients(target)

	if err := i.recoverInterrupted(target, oldDir); err != nil {
		return err
	}
	for _, dir := range []string{oldDir, newDir} {
		if err := os.RemoveAll(dir); err != nil {
			return models.WrapError(models.ErrMoveFile, err, "clear %s", dir)
		}
	}

	logger.Infof("Extracting '%s' into '%s'", packageFile, newDir)
	if err := i.extractor.Extract(packageFile, newDir); err != nil {
		return models.WrapError(models.ErrPackageExtract, err, "%s", packageFile)
	}

	if err := i.evict(ctx, target, oldDir); err != nil {
		return err
	}

	if err := i.rename(newDir, target); err != nil {
		return models.WrapError(models.ErrMoveFile, i.rollback(target, oldDir, err), "promote %s", newDir)
	}
	if !exists(target) {
		return models.NewError(models.ErrMoveFile, "'%s' missing after promotion", target)
	}

	if err := i.merge(oldDir, target); err != nil {
		logger.Warnf("Some files of the previous installation were not preserved: %v", err)
	}
	if err := os.RemoveAll(oldDir); err != nil {
		logger.Warnf("Failed to remove '%s': %v", oldDir, err)
	}
	logger.Infof("Package '%s' installed into '%s'", filepath.Base(packageFile), target)
	return nil
}

// recoverInterrupted restores <target>.old when a previous run stopped between eviction and promotion.
func (i *Installer) recoverInterrupted(target, oldDir string) error {
	if exists(target) || !exists(oldDir) {
		return nil
	}
	logger.Warnf("'%s' missing, restoring previous installation from '%s'", target, oldDir)
	if err := i.rename(oldDir, target); err != nil {
		return models.WrapError(models.ErrMoveFile, err, "restore %s", oldDir)
	}
	return nil
}

// evict moves target out of the way, retrying while it is locked by an exiting process.
func (i *Installer) evict(ctx context.Context, target, oldDir string) error {
	attempt := 0
	operation := func() error {
		if !exists(target) {
			return nil
		}
		attempt++
		err := i.rename(target, oldDir)
		if err != nil {
			logger.Warnf("Move '%s' failed (attempt %d/%d): %v", target, attempt, i.cfg.RenameRetries, err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(i.cfg.RenameInterval), uint64(i.cfg.RenameRetries-1)),
		ctx)
	err := backoff.Retry(operation, policy)
	if exists(target) {
		if err == nil {
			return models.NewError(models.ErrMoveFile, "'%s' still present after eviction", target)
		}
		return models.WrapError(models.ErrMoveFile, err, "evict %s", target)
	}
	return nil
}

func (i *Installer) rollback(target, oldDir string, cause error) error {
	if exists(target) || !exists(oldDir) {
		return cause
	}
	if err := i.rename(oldDir, target); err != nil {
		logger.Errorf("Rollback of '%s' failed: %v", target, err)
		return multierror.Append(cause, err)
	}
	logger.Warnf("Promotion failed, previous installation restored to '%s'", target)
	return cause
}

// merge moves every entry of oldDir that has no counterpart in target into target.
func (i *Installer) merge(oldDir, target string) error {
	if !exists(oldDir) {
		return nil
	}
	var result *multierror.Error
	walkErr := filepath.WalkDir(oldDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result = multierror.Append(result, err)
			if d != nil && d.IsDir() && path != oldDir {
				return filepath.SkipDir
			}
			return nil
		}
		if path == oldDir {
			return nil
		}
		rel, err := filepath.Rel(oldDir, path)
		if err != nil {
			result = multierror.Append(result, err)
			return nil
		}
		dst := filepath.Join(target, rel)
		fi, err := os.Lstat(dst)
		if err == nil {
			// 新版本中已存在：同为目录时继续合并子项，否则保留新版本
			if d.IsDir() && !fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !os.IsNotExist(err) {
			result = multierror.Append(result, err)
			return nil
		}
		if err := i.rename(path, dst); err != nil {
			result = multierror.Append(result, err)
			return nil
		}
		logger.Debugf("Preserved '%s' from previous installation", rel)
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if walkErr != nil {
		result = multierror.Append(result, walkErr)
	}
	return result.ErrorOrNil()
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
