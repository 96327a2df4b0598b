package services

import (
	"os"
	"path/filepath"
	"testing"

	"costrict-updater/internal/digest"
	"costrict-updater/internal/installer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPackage(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "app"), []byte("binary"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "lib"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "lib", "a.so"), []byte("lib"), 0644))

	out := t.TempDir()
	path, info, err := BuildPackage(src, PackOptions{
		Name:       "app",
		Version:    "1.3.0",
		OutDir:     out,
		BaseURL:    "http://localhost:8090/packages/",
		Algorithms: []string{digest.SHA256, digest.MD5},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "app-1.3.0.zip"), path)
	assert.Equal(t, "http://localhost:8090/packages/app-1.3.0.zip", info.URL)
	assert.Equal(t, "zip", info.Format)
	assert.Len(t, info.Hash, 2)
	require.NoError(t, digest.VerifyFile(path, info.Hash))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fi.Size(), info.Size)

	// 解包后文件位于根目录
	dest := t.TempDir()
	require.NoError(t, installer.ZipExtractor{}.Extract(path, dest))
	assert.FileExists(t, filepath.Join(dest, "app"))
	assert.FileExists(t, filepath.Join(dest, "lib", "a.so"))

	// 重复打包覆盖旧文件
	_, _, err = BuildPackage(src, PackOptions{Name: "app", Version: "1.3.0", OutDir: out})
	assert.NoError(t, err)
}

func TestBuildPackageRejects(t *testing.T) {
	t.Parallel()

	_, _, err := BuildPackage(t.TempDir(), PackOptions{Name: "app", Version: "1.0", OutDir: t.TempDir()})
	assert.Error(t, err)

	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0644))
	_, _, err = BuildPackage(src, PackOptions{Name: "app", Version: "1.0", OutDir: t.TempDir(), Algorithms: []string{"crc32"}})
	assert.Error(t, err)

	_, _, err = BuildPackage(src, PackOptions{Version: "1.0", OutDir: t.TempDir()})
	assert.Error(t, err)
}
