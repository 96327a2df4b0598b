package root

import (
	"bytes"
	"testing"

	"costrict-updater/internal/config"
	"costrict-updater/internal/result"
	"costrict-updater/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportLastResult(t *testing.T) {
	cfg := config.UpdaterConfig{PackageName: "app", CacheDir: t.TempDir()}
	dir := cfg.PackageCacheDir(cfg.PackageName)
	u := services.NewUpdater(cfg)

	require.NoError(t, result.Write(dir, result.Result{Success: true, Version: "1.3.0", Phase: "relaunched", Kind: "ok"}))
	var out bytes.Buffer
	reportLastResult(&out, u, true)
	assert.Equal(t, "Updated to version 1.3.0 (forced: true)\n", out.String())
	assert.NoFileExists(t, result.Path(dir))

	require.NoError(t, result.Write(dir, result.Result{Version: "1.4.0", Phase: "installed", Kind: "run_new_version", Error: "boom"}))
	out.Reset()
	reportLastResult(&out, u, false)
	assert.Contains(t, out.String(), "failed at phase 'installed': boom")
	assert.NoFileExists(t, result.Path(dir))

	// 没有结果文件时不输出
	out.Reset()
	reportLastResult(&out, u, false)
	assert.Empty(t, out.String())
}
