package config

import (
	"path/filepath"
	"strings"
	"time"

	"costrict-updater/internal/env"

	"github.com/spf13/viper"
)

/**
 * Server configuration parameters
 * @property {string} address - TCP listening address (e.g. ":8080"), empty disables TCP
 * @property {string} socket - Unix socket path, empty disables the socket listener
 * @property {string} mode - Gin mode (debug/release/test)
 * @property {string} packageDir - Directory holding package yaml configs
 * @property {string} fileDir - Directory served under /packages
 */
type ServerConfig struct {
	Address    string `mapstructure:"address"`
	Socket     string `mapstructure:"socket"`
	Mode       string `mapstructure:"mode"`
	PackageDir string `mapstructure:"package_dir"`
	FileDir    string `mapstructure:"file_dir"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, "console" or empty logs to stdout
 * @property {int} maxSize - Rotate the log file after this many bytes
 */
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Path    string `mapstructure:"path"`
	MaxSize int    `mapstructure:"max_size"`
}

/**
 * Metrics configuration
 * @property {string} pushgateway - Pushgateway address for metrics, empty disables pushing
 * @property {string} job - Job name used when pushing
 */
type MetricsConfig struct {
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job"`
}

/**
 * UpdaterConfig 更新流程的全部可调参数
 * @description
 * - 按值传给下载器、安装器与协调器，构造后不再修改
 * - 零值字段由 Correct 补齐默认值
 */
type UpdaterConfig struct {
	ManifestURL     string        `mapstructure:"manifest_url"`
	ManifestSocket  string        `mapstructure:"manifest_socket"`
	PackageName     string        `mapstructure:"package_name"`
	CurrentVersion  string        `mapstructure:"current_version"`
	CacheDir        string        `mapstructure:"cache_dir"`
	UserAgent       string        `mapstructure:"user_agent"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	RenameRetries   int           `mapstructure:"rename_retries"`
	RenameInterval  time.Duration `mapstructure:"rename_interval"`
	WaitTimeout     time.Duration `mapstructure:"wait_timeout"`
	ForceKill       bool          `mapstructure:"force_kill"`
	OldSuffix       string        `mapstructure:"old_suffix"`
	NewSuffix       string        `mapstructure:"new_suffix"`
	SelfDeleteDelay time.Duration `mapstructure:"self_delete_delay"`
}

const (
	DefaultUserAgent       = "costrict-updater"
	DefaultQueryTimeout    = 15 * time.Second
	DefaultRenameRetries   = 10
	DefaultRenameInterval  = time.Second
	DefaultWaitTimeout     = 10 * time.Second
	DefaultOldSuffix       = ".old"
	DefaultNewSuffix       = ".new"
	DefaultSelfDeleteDelay = 3 * time.Second
)

// DefaultUpdaterConfig returns the tuning used when no config file is present.
func DefaultUpdaterConfig() UpdaterConfig {
	var cfg UpdaterConfig
	cfg.ForceKill = true
	cfg.Correct()
	return cfg
}

/**
 * Fill zero-valued fields with defaults
 * @description
 * - CacheDir falls back to the OS temp directory
 * - Negative or zero retry counts fall back to DefaultRenameRetries
 */
func (c *UpdaterConfig) Correct() {
	if c.CacheDir == "" {
		c.CacheDir = env.DefaultCacheDir()
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = DefaultQueryTimeout
	}
	if c.RenameRetries <= 0 {
		c.RenameRetries = DefaultRenameRetries
	}
	if c.RenameInterval <= 0 {
		c.RenameInterval = DefaultRenameInterval
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = DefaultWaitTimeout
	}
	if c.OldSuffix == "" {
		c.OldSuffix = DefaultOldSuffix
	}
	if c.NewSuffix == "" {
		c.NewSuffix = DefaultNewSuffix
	}
	if c.SelfDeleteDelay <= 0 {
		c.SelfDeleteDelay = DefaultSelfDeleteDelay
	}
}

// PackageCacheDir is <cache_dir>/<package_name>, where packages and the install result live.
func (c *UpdaterConfig) PackageCacheDir(packageName string) string {
	return filepath.Join(c.CacheDir, packageName)
}

type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Updater UpdaterConfig `mapstructure:"updater"`
}

var appConfig *AppConfig

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8090")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.package_dir", filepath.Join(env.AppDir, "packages"))
	v.SetDefault("server.file_dir", filepath.Join(env.AppDir, "files"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "console")
	v.SetDefault("log.max_size", 10*1024*1024)
	v.SetDefault("metrics.job", "costrict-updater")
	v.SetDefault("updater.manifest_url", "https://zgsm.sangfor.com/costrict/api/v1/query")
	v.SetDefault("updater.user_agent", DefaultUserAgent)
	v.SetDefault("updater.query_timeout", DefaultQueryTimeout)
	v.SetDefault("updater.rename_retries", DefaultRenameRetries)
	v.SetDefault("updater.rename_interval", DefaultRenameInterval)
	v.SetDefault("updater.wait_timeout", DefaultWaitTimeout)
	v.SetDefault("updater.force_kill", true)
	v.SetDefault("updater.old_suffix", DefaultOldSuffix)
	v.SetDefault("updater.new_suffix", DefaultNewSuffix)
	v.SetDefault("updater.self_delete_delay", DefaultSelfDeleteDelay)
}

/**
 * Load application configuration from YAML file
 * @param {string} path - Explicit config file, empty searches "." and the app directory
 * @returns {*AppConfig} Loaded configuration, defaults applied
 * @returns {error} Error if the file exists but cannot be parsed
 * @description
 * - A missing config file is not an error, defaults are used
 * - Environment variables prefixed COSTRICT_UPDATER_ override file values
 */
func LoadConfig(path string) (*AppConfig, error) {
	return loadConfig(path, nil)
}

/**
 * Load config.yaml for the installer
 * @param {...string} dirs - Searched before the working directory and the program directory
 * @description
 * - The installer runs from the package cache, the installed program's own
 *   directory is passed here so its settings still apply
 */
func LoadConfigFrom(dirs ...string) (*AppConfig, error) {
	return loadConfig("", dirs)
}

func loadConfig(path string, dirs []string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("COSTRICT_UPDATER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, dir := range dirs {
			if dir != "" {
				v.AddConfigPath(dir)
			}
		}
		v.AddConfigPath(".")
		v.AddConfigPath(env.AppDir)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, err
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Updater.Correct()
	return &cfg, nil
}

/**
 * Load configuration and make it the process-wide current one
 */
func Init(path string) (*AppConfig, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	appConfig = cfg
	return cfg, nil
}

// App returns the current configuration, loading defaults on first use.
func App() *AppConfig {
	if appConfig == nil {
		cfg, err := LoadConfig("")
		if err != nil {
			cfg = &AppConfig{Updater: DefaultUpdaterConfig()}
		}
		appConfig = cfg
	}
	return appConfig
}
