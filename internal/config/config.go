package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds the controller settings.
type Config struct {
	HubAddr           string
	InitiatorID       string
	PollInterval      time.Duration
	Push              bool
	LogDir            string
	ScanTimeout       time.Duration
	ResetRefreshDelay time.Duration
	CallTimeout       time.Duration
	APIListen         string
}

const (
	defaultConfigPath        = "~/.config/sessionctl/config.toml"
	defaultLogDir            = "~/.local/share/sessionctl"
	defaultHubAddr           = "127.0.0.1:7620"
	defaultAPIListen         = "127.0.0.1:7621"
	defaultPollInterval      = 100 * time.Millisecond
	defaultScanTimeout       = 60 * time.Second
	defaultResetRefreshDelay = time.Second
	defaultCallTimeout       = 10 * time.Second
)

// fileConfig is the on-disk shape shared by the TOML and YAML forms.
type fileConfig struct {
	HubAddr             string `toml:"hub_addr" yaml:"hub_addr"`
	InitiatorID         string `toml:"initiator_id" yaml:"initiator_id"`
	PollIntervalMS      int    `toml:"poll_interval_ms" yaml:"poll_interval_ms"`
	Push                bool   `toml:"push" yaml:"push"`
	LogDir              string `toml:"log_dir" yaml:"log_dir"`
	ScanTimeoutS        int    `toml:"scan_timeout_s" yaml:"scan_timeout_s"`
	ResetRefreshDelayMS int    `toml:"reset_refresh_delay_ms" yaml:"reset_refresh_delay_ms"`
	CallTimeoutS        int    `toml:"call_timeout_s" yaml:"call_timeout_s"`
	APIListen           string `toml:"api_listen" yaml:"api_listen"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		HubAddr:           defaultHubAddr,
		PollInterval:      defaultPollInterval,
		LogDir:            mustExpand(defaultLogDir),
		ScanTimeout:       defaultScanTimeout,
		ResetRefreshDelay: defaultResetRefreshDelay,
		CallTimeout:       defaultCallTimeout,
		APIListen:         defaultAPIListen,
	}
}

// Load locates and parses the config, falling back to defaults when missing.
// Files ending in .yaml or .yml are read as YAML, anything else as TOML.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(bytes, &raw)
	default:
		err = toml.Unmarshal(bytes, &raw)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return raw.resolve(), nil
}

func (raw fileConfig) resolve() Config {
	cfg := Default()

	if v := strings.TrimSpace(raw.HubAddr); v != "" {
		cfg.HubAddr = v
	}
	cfg.InitiatorID = strings.TrimSpace(raw.InitiatorID)
	cfg.Push = raw.Push
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.LogDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.APIListen); v != "" {
		cfg.APIListen = v
	}
	if raw.PollIntervalMS > 0 {
		cfg.PollInterval = time.Duration(raw.PollIntervalMS) * time.Millisecond
	}
	if raw.ScanTimeoutS > 0 {
		cfg.ScanTimeout = time.Duration(raw.ScanTimeoutS) * time.Second
	}
	if raw.ResetRefreshDelayMS > 0 {
		cfg.ResetRefreshDelay = time.Duration(raw.ResetRefreshDelayMS) * time.Millisecond
	}
	if raw.CallTimeoutS > 0 {
		cfg.CallTimeout = time.Duration(raw.CallTimeoutS) * time.Second
	}
	return cfg
}

// LogPath returns the path of the controller's own log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/sessionctl.log")
	}
	return filepath.Join(c.LogDir, "sessionctl.log")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
