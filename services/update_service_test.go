package services

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"costrict-updater/internal/config"
	"costrict-updater/internal/download"
	"costrict-updater/internal/installctx"
	"costrict-updater/internal/models"
	"costrict-updater/internal/result"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLauncher struct {
	command string
	args    []string
	workDir string
	err     error
}

func (l *recordingLauncher) Launch(title, command string, args []string, workDir string) (int, error) {
	l.command, l.args, l.workDir = command, args, workDir
	if l.err != nil {
		return 0, l.err
	}
	return 4242, nil
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newUpdateServer(t *testing.T, pkg []byte) *httptest.Server {
	t.Helper()
	sum := sha256.Sum256(pkg)
	mux := http.NewServeMux()
	var ts *httptest.Server
	mux.HandleFunc("/api/v1/query/app/", func(w http.ResponseWriter, r *http.Request) {
		res := models.UpgradeResult{PackageName: "app"}
		if strings.HasSuffix(r.URL.Path, "/1.0.0") {
			res = models.UpgradeResult{
				PackageName:    "app",
				HasNewVersion:  true,
				PackageVersion: "1.3.0",
				PackageURL:     ts.URL + "/packages/app-1.3.0.zip",
				PackageSize:    int64(len(pkg)),
				PackageFormat:  "zip",
				PackageHash:    map[string]string{"sha256": hex.EncodeToString(sum[:])},
			}
		}
		json.NewEncoder(w).Encode(res)
	})
	mux.HandleFunc("/packages/app-1.3.0.zip", func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "app-1.3.0.zip", time.Time{}, bytes.NewReader(pkg))
	})
	ts = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newTestUpdater(t *testing.T, url, current string, l *recordingLauncher, exe string) (*Updater, config.UpdaterConfig) {
	cfg := config.UpdaterConfig{
		ManifestURL:    url + "/api/v1/query",
		PackageName:    "app",
		CurrentVersion: current,
		CacheDir:       t.TempDir(),
	}
	u := NewUpdater(cfg,
		WithInstallerLauncher(l),
		WithSelfExecutable(func() (string, error) { return exe, nil }))
	return u, cfg
}

func fakeExecutable(t *testing.T) string {
	t.Helper()
	exe := filepath.Join(t.TempDir(), "app")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0644))
	return exe
}

func TestUpdaterCheckDownloadLaunch(t *testing.T) {
	t.Parallel()

	pkg := zipBytes(t, map[string]string{"app": "v1.3.0"})
	ts := newUpdateServer(t, pkg)
	l := &recordingLauncher{}
	exe := fakeExecutable(t)
	u, cfg := newTestUpdater(t, ts.URL, "1.0.0", l, exe)

	desc, err := u.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "1.3.0", desc.Version)

	var calls int
	path, err := u.Download(context.Background(), desc, func(downloaded, total int64) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.CacheDir, "app", "app-1.3.0.zip"), path)
	assert.Positive(t, calls)

	target := t.TempDir()
	pid, err := u.LaunchInstaller(path, target, "app", true)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	installerPath := filepath.Join(filepath.Dir(path), "app-installer")
	assert.Equal(t, installerPath, l.command)
	assert.Equal(t, filepath.Dir(path), l.workDir)
	assert.FileExists(t, installerPath)

	ic, ok, err := installctx.TryParse(l.args)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), ic.WaitPid)
	assert.Equal(t, path, ic.Source)
	assert.Equal(t, target, ic.Target)
	assert.Equal(t, "app", ic.LaunchFile)
	assert.True(t, ic.Force)
}

func TestUpdaterUpToDate(t *testing.T) {
	t.Parallel()

	ts := newUpdateServer(t, zipBytes(t, map[string]string{"app": "x"}))
	u, _ := newTestUpdater(t, ts.URL, "1.3.0", &recordingLauncher{}, fakeExecutable(t))

	desc, err := u.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, desc)
}

func TestLaunchInstallerFailure(t *testing.T) {
	t.Parallel()

	l := &recordingLauncher{err: errors.New("exec format error")}
	u, cfg := newTestUpdater(t, "http://127.0.0.1:1", "1.0.0", l, fakeExecutable(t))
	pkg := filepath.Join(cfg.CacheDir, "app", "app-1.3.0.zip")

	_, err := u.LaunchInstaller(pkg, t.TempDir(), "app", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRunInstaller))

	u, _ = newTestUpdater(t, "http://127.0.0.1:1", "1.0.0", &recordingLauncher{}, filepath.Join(t.TempDir(), "missing"))
	_, err = u.LaunchInstaller(pkg, t.TempDir(), "app", false)
	assert.True(t, errors.Is(err, models.ErrRunInstaller))
}

func TestLaunchInstallerResolvesRelativeTarget(t *testing.T) {
	t.Parallel()

	l := &recordingLauncher{}
	u, cfg := newTestUpdater(t, "http://127.0.0.1:1", "1.0.0", l, fakeExecutable(t))
	pkg := filepath.Join(cfg.CacheDir, "app", "app-1.3.0.zip")

	_, err := u.LaunchInstaller(pkg, "myapp", filepath.Join("bin", "app"), false)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	ic, ok, err := installctx.TryParse(l.args)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(wd, "myapp"), ic.Target)
	assert.True(t, filepath.IsAbs(ic.Source))
	assert.Equal(t, filepath.Join("bin", "app"), ic.LaunchFile)
}

func TestLastResult(t *testing.T) {
	t.Parallel()

	u, cfg := newTestUpdater(t, "http://127.0.0.1:1", "1.3.0", &recordingLauncher{}, fakeExecutable(t))
	_, err := u.LastResult()
	assert.Error(t, err)

	dir := cfg.PackageCacheDir("app")
	require.NoError(t, result.Write(dir, result.Result{Success: true, Version: "1.3.0", Phase: "relaunched", Kind: "ok"}))
	r, err := u.LastResult()
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Equal(t, "1.3.0", r.Version)

	require.NoError(t, u.ClearResult())
	assert.NoFileExists(t, result.Path(dir))
}

func TestInstallerCopyPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, filepath.Join("cache", "app-installer.exe"), installerCopyPath(filepath.Join("bin", "app.exe"), "cache"))
	assert.Equal(t, filepath.Join("cache", "app-installer"), installerCopyPath(filepath.Join("bin", "app"), "cache"))
}

func TestDownloadBytesCountedAfterRestart(t *testing.T) {
	t.Parallel()

	pkg := bytes.Repeat([]byte("0123456789abcdef"), 4096)
	sum := sha256.Sum256(pkg)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 不支持Range，总是返回完整内容
		w.Header().Set("Content-Length", strconv.Itoa(len(pkg)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(pkg)
		}
	}))
	defer ts.Close()

	u, cfg := newTestUpdater(t, ts.URL, "1.0.0", &recordingLauncher{}, fakeExecutable(t))
	desc := &models.PackageDescriptor{
		Name:    "restart-tool",
		Version: "2.0.0",
		URL:     ts.URL + "/restart-tool-2.0.0.zip",
		Size:    int64(len(pkg)),
		Format:  "zip",
		Hash:    map[string]string{"sha256": hex.EncodeToString(sum[:])},
	}
	path := filepath.Join(cfg.CacheDir, desc.Name, desc.FileName())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, pkg[:1000], 0644))
	require.NoError(t, os.WriteFile(path+download.ProgressSuffix, []byte("1000"), 0644))

	_, err := u.Download(context.Background(), desc, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(len(pkg)), testutil.ToFloat64(downloadBytes.WithLabelValues(desc.Name)))
}
