// Package result records the outcome of an installer run so the relaunched
// application can report it.
package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const FileName = "result.json"

/**
 * Result 安装器的执行结果
 * @property {bool} Success - 全部阶段完成且新版本已启动
 * @property {bool} Installed - 新版本文件已就位(启动失败时仍可能为true)
 * @property {string} Version - 安装的版本
 * @property {string} Phase - 最后到达的阶段
 * @property {string} Kind - 错误类别，成功时为"ok"
 * @property {string} Error - 错误信息
 */
type Result struct {
	Success    bool      `json:"success"`
	Installed  bool      `json:"installed"`
	Version    string    `json:"version,omitempty"`
	Phase      string    `json:"phase"`
	Kind       string    `json:"kind"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Path is the result file location inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

/**
 * Write the result into dir atomically
 * @description
 * - Writes a temporary file first and renames it over the result file
 */
func Write(dir string, r Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	path := Path(dir)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Read loads the result from dir.
func Read(dir string) (Result, error) {
	var r Result
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("invalid result format: %w", err)
	}
	return r, nil
}

// Cleanup removes the result file, a missing file is not an error.
func Cleanup(dir string) error {
	if err := os.Remove(Path(dir)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
