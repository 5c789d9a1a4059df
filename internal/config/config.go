package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type ReceiverConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`

	// PresharedKey is the hex-encoded 32-byte symmetric key. Provisioning
	// happens out of band; this file only carries the result.
	PresharedKey string `toml:"preshared_key"`

	FrameCapacity      int  `toml:"frame_capacity"`
	InterByteTimeoutMS int  `toml:"inter_byte_timeout_ms"`
	PollIntervalMS     int  `toml:"poll_interval_ms"`
	SignalRefreshMS    int  `toml:"signal_refresh_ms"`
	CarryPartial       bool `toml:"carry_partial_objects"`

	// StatusToken guards the status API when set.
	StatusToken string `toml:"status_token"`

	// TransportPath is the serial device or FIFO providing the byte stream.
	TransportPath string `toml:"transport_path"`
}

func LoadReceiverConfig(path string) (ReceiverConfig, error) {
	var cfg ReceiverConfig
	if err := loadToml(path, &cfg); err != nil {
		return ReceiverConfig{}, err
	}
	ApplyDefaults(&cfg)
	if err := ValidateReceiverConfig(cfg); err != nil {
		return ReceiverConfig{}, err
	}
	return cfg, nil
}

func ApplyDefaults(cfg *ReceiverConfig) {
	if cfg.Name == "" {
		cfg.Name = "mfactl"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9400"
	}
	if cfg.FrameCapacity == 0 {
		cfg.FrameCapacity = 256
	}
	if cfg.InterByteTimeoutMS == 0 {
		cfg.InterByteTimeoutMS = 500
	}
	if cfg.PollIntervalMS == 0 {
		cfg.PollIntervalMS = 10
	}
	if cfg.SignalRefreshMS == 0 {
		cfg.SignalRefreshMS = 1000
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateReceiverConfig(cfg ReceiverConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("receiver config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("receiver config missing addr")
	}
	if cfg.FrameCapacity <= 0 {
		return fmt.Errorf("receiver config frame_capacity must be positive")
	}
	if cfg.InterByteTimeoutMS <= 0 {
		return fmt.Errorf("receiver config inter_byte_timeout_ms must be positive")
	}
	if _, err := cfg.Key(); err != nil {
		return err
	}
	return nil
}

// Key decodes the pre-shared key.
func (cfg ReceiverConfig) Key() ([]byte, error) {
	raw := strings.TrimSpace(cfg.PresharedKey)
	if raw == "" {
		return nil, fmt.Errorf("receiver config missing preshared_key")
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("receiver config preshared_key not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("receiver config preshared_key must be 32 bytes, have %d", len(key))
	}
	return key, nil
}

func (cfg ReceiverConfig) InterByteTimeout() time.Duration {
	return time.Duration(cfg.InterByteTimeoutMS) * time.Millisecond
}

func (cfg ReceiverConfig) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalMS) * time.Millisecond
}

func (cfg ReceiverConfig) SignalRefresh() time.Duration {
	return time.Duration(cfg.SignalRefreshMS) * time.Millisecond
}
