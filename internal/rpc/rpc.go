package rpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"costrict-updater/internal/logger"
)

// HTTPConfig 定义HTTP客户端配置
type HTTPConfig struct {
	Address string        // 服务侦听地址，unix时为socket文件路径
	Network string        // unix,tcp...
	Timeout time.Duration // 默认超时时间
}

// DefaultHTTPConfig 返回通过unix socket访问升级服务器的默认配置
func DefaultHTTPConfig(socketPath string) *HTTPConfig {
	return &HTTPConfig{
		Address: socketPath,
		Network: "unix",
		Timeout: 5 * time.Second,
	}
}

/**
 * Create an HTTP client whose connections all go to one fixed address
 * @param {*HTTPConfig} config - Network, address and timeout
 * @returns {*http.Client} Client usable with any "http://<host>/path" URL
 * @description
 * - The URL host is ignored, every request is dialed to config.Address
 * - A missing unix socket file fails at request time with a clear error
 */
func NewHTTPClient(config *HTTPConfig) *http.Client {
	if config.Network == "" {
		config.Network = "unix"
	}
	dialer := &net.Dialer{Timeout: config.Timeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			if config.Network == "unix" {
				if _, err := os.Stat(config.Address); os.IsNotExist(err) {
					return nil, fmt.Errorf("socket file not found at %s", config.Address)
				}
			}
			logger.Debugf("Dial %s://%s", config.Network, config.Address)
			return dialer.DialContext(ctx, config.Network, config.Address)
		},
		MaxIdleConns:    2,
		IdleConnTimeout: 30 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}
