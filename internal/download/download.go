// Package download fetches update packages into the local cache, resuming
// interrupted transfers and verifying the result against the descriptor digests.
package download

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"costrict-updater/internal/config"
	"costrict-updater/internal/digest"
	"costrict-updater/internal/logger"
	"costrict-updater/internal/models"
)

// ProgressSuffix is appended to the package path to name the resume sidecar.
const ProgressSuffix = ".downloading"

const chunkSize = 32 * 1024

// ProgressFunc receives the bytes written so far and the total package size.
// A call with downloaded == 0 means the transfer restarted from the beginning.
type ProgressFunc func(downloaded, total int64)

type Downloader struct {
	cfg       config.UpdaterConfig
	transport Transport
}

type Option func(*Downloader)

// WithTransport replaces the default net/http transport.
func WithTransport(t Transport) Option {
	return func(d *Downloader) {
		d.transport = t
	}
}

func New(cfg config.UpdaterConfig, opts ...Option) *Downloader {
	cfg.Correct()
	d := &Downloader{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	if d.transport == nil {
		d.transport = NewHTTPTransport(cfg.UserAgent, cfg.QueryTimeout)
	}
	return d
}

// PackagePath is <cache_dir>/<name>/<name>-<version>.<format>.
func (d *Downloader) PackagePath(desc *models.PackageDescriptor) string {
	return filepath.Join(d.cfg.PackageCacheDir(desc.Name), desc.FileName())
}

// ResumeOffset is the offset the next Download of desc continues from, 0 for a fresh transfer.
func (d *Downloader) ResumeOffset(desc *models.PackageDescriptor) int64 {
	packageFile := d.PackagePath(desc)
	recorded, ok := readProgress(packageFile + ProgressSuffix)
	fi, err := os.Stat(packageFile)
	if !ok || err != nil || recorded < 0 || recorded > fi.Size() || recorded > desc.Size {
		return 0
	}
	return recorded
}

/**
 * Download a package into the cache, resuming a previous partial transfer
 * @param {context.Context} ctx - Cancels network requests
 * @param {*models.PackageDescriptor} desc - Package to download
 * @param {ProgressFunc} progress - Called after every written chunk, may be nil
 * @returns {string} Path of the verified package file
 * @returns {error} Typed error, see models.Err*
 * @description
 * - An already complete and verified file is returned without any request
 * - A HEAD request checks the remote size before any body byte is read
 * - The byte offset is persisted to <file>.downloading after every chunk
 * - Transport failures leave the partial file and sidecar for the next attempt
 * - A digest mismatch deletes the file
 */
func (d *Downloader) Download(ctx context.Context, desc *models.PackageDescriptor, progress ProgressFunc) (string, error) {
	if !strings.EqualFold(desc.Format, models.PackageFormatZip) {
		return "", models.NewError(models.ErrUnsupportedPackageFormat, "'%s'", desc.Format)
	}
	if err := digest.Validate(desc.Hash); err != nil {
		return "", err
	}

	packageFile := d.PackagePath(desc)
	progressFile := packageFile + ProgressSuffix
	if err := os.MkdirAll(filepath.Dir(packageFile), 0755); err != nil {
		return "", models.WrapError(models.ErrOpenFile, err, "%s", filepath.Dir(packageFile))
	}

	recorded, hasProgress := readProgress(progressFile)
	if !hasProgress && isComplete(packageFile, desc) {
		logger.Infof("Package '%s' already downloaded: %s", desc.FileName(), packageFile)
		return packageFile, nil
	}

	f, err := os.OpenFile(packageFile, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return "", models.WrapError(models.ErrOpenFile, err, "%s", packageFile)
	}
	defer f.Close()

	offset, err := resumeOffset(f, recorded, desc.Size)
	if err != nil {
		return "", models.WrapError(models.ErrOpenFile, err, "%s", packageFile)
	}
	if offset > 0 {
		logger.Infof("Resume downloading '%s' from offset %d", desc.FileName(), offset)
	}

	if err := d.checkSize(ctx, desc); err != nil {
		return "", err
	}

	if offset < desc.Size {
		if err := d.fetch(ctx, desc, f, offset, progressFile, progress); err != nil {
			return "", err
		}
	}
	if err := f.Close(); err != nil {
		return "", models.WrapError(models.ErrOpenFile, err, "%s", packageFile)
	}

	if err := os.Remove(progressFile); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Failed to remove progress file %s: %v", progressFile, err)
	}
	if err := digest.VerifyFile(packageFile, desc.Hash); err != nil {
		os.Remove(packageFile)
		if errors.Is(err, models.ErrPackageVerify) {
			return "", models.WrapError(models.ErrPackageVerify, err, "%s", desc.FileName())
		}
		return "", err
	}
	logger.Infof("Package '%s' downloaded and verified: %s", desc.FileName(), packageFile)
	return packageFile, nil
}

// checkSize issues the HEAD request and compares the remote size with the descriptor.
func (d *Downloader) checkSize(ctx context.Context, desc *models.PackageDescriptor) error {
	resp, err := d.transport.Head(ctx, desc.URL)
	if err != nil {
		return models.WrapError(models.ErrNetwork, err, "HEAD %s", desc.URL)
	}
	if resp.StatusCode != http.StatusOK {
		return models.NewError(models.ErrNetwork, "HEAD %s: status %d", desc.URL, resp.StatusCode)
	}
	remote := resp.ContentLength()
	if remote < 0 {
		remote = desc.Size
	}
	if remote != desc.Size {
		return models.NewError(models.ErrPackageSize, "'%s': remote %d, expected %d",
			desc.FileName(), remote, desc.Size)
	}
	return nil
}

// fetch streams the body from offset into f, persisting progress after every chunk.
func (d *Downloader) fetch(ctx context.Context, desc *models.PackageDescriptor, f *os.File,
	offset int64, progressFile string, progress ProgressFunc) error {
	resp, err := d.transport.Get(ctx, desc.URL, offset)
	if err != nil {
		return models.WrapError(models.ErrNetwork, err, "GET %s", desc.URL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		if start := resp.RangeStart(); start != offset {
			return models.NewError(models.ErrNetwork, "GET %s: content range starts at %d, requested %d",
				desc.URL, start, offset)
		}
	case resp.StatusCode == http.StatusOK:
		if offset > 0 {
			// 服务器忽略了Range请求，从头下载
			logger.Warnf("Server ignored range request for '%s', restart from 0", desc.FileName())
			offset = 0
			if err := rewind(f, 0); err != nil {
				return models.WrapError(models.ErrOpenFile, err, "%s", f.Name())
			}
			if progress != nil {
				progress(0, desc.Size)
			}
		}
	default:
		return models.NewError(models.ErrNetwork, "GET %s: status %d", desc.URL, resp.StatusCode)
	}

	downloaded := offset
	buf := make([]byte, chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if downloaded+int64(n) > desc.Size {
				f.Close()
				os.Remove(f.Name())
				os.Remove(progressFile)
				return models.NewError(models.ErrPackageSize, "'%s': body exceeds %d bytes",
					desc.FileName(), desc.Size)
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return models.WrapError(models.ErrOpenFile, err, "write %s", f.Name())
			}
			downloaded += int64(n)
			if err := writeProgress(progressFile, downloaded); err != nil {
				return models.WrapError(models.ErrOpenFile, err, "%s", progressFile)
			}
			if progress != nil {
				progress(downloaded, desc.Size)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return models.WrapError(models.ErrNetwork, rerr, "read %s at %d", desc.URL, downloaded)
		}
	}
	if downloaded < desc.Size {
		return models.WrapError(models.ErrNetwork, io.ErrUnexpectedEOF, "GET %s: got %d of %d bytes",
			desc.URL, downloaded, desc.Size)
	}
	return nil
}

// resumeOffset picks the offset to continue from and truncates f to it.
func resumeOffset(f *os.File, recorded, size int64) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	offset := recorded
	if offset < 0 || offset > fi.Size() || offset > size {
		offset = 0
	}
	return offset, rewind(f, offset)
}

func rewind(f *os.File, offset int64) error {
	if err := f.Truncate(offset); err != nil {
		return err
	}
	_, err := f.Seek(offset, io.SeekStart)
	return err
}

// isComplete reports whether path already holds the full, verified package.
func isComplete(path string, desc *models.PackageDescriptor) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() || fi.Size() != desc.Size {
		return false
	}
	return digest.VerifyFile(path, desc.Hash) == nil
}

// readProgress returns the recorded offset and whether the sidecar exists.
func readProgress(path string) (int64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return -1, !os.IsNotExist(err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return -1, true
	}
	return n, true
}

func writeProgress(path string, downloaded int64) error {
	return os.WriteFile(path, []byte(strconv.FormatInt(downloaded, 10)), 0644)
}
