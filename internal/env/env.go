package env

import (
	"os"
	"path/filepath"
)

// (default: %USERPROFILE%/.costrict on Windows, $HOME/.costrict on Linux)
var CostrictDir string = GetCostrictDir()

// 更新程序自身的配置、日志、包配置目录
var AppDir string = filepath.Join(CostrictDir, "updater")

/**
 * Get costrict directory path
 * @returns {string} Returns costrict directory path
 */
func GetCostrictDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".costrict")
	}
	return filepath.Join(homeDir, ".costrict")
}

// DefaultCacheDir is where packages are downloaded: the OS temp directory.
func DefaultCacheDir() string {
	return os.TempDir()
}
