// Package conf loads, validates, and persists application settings. Viper
// handles file discovery and environment overrides; a default config file
// is written from an embedded template on first run.
package conf

import (
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/datatone/tonewire/internal/errors"
	"github.com/datatone/tonewire/internal/fsk"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the root of the configuration tree. Field names double as
// viper keys (lowercased, dot-joined by section).
type Settings struct {
	// Debug enables debug level logging.
	Debug bool

	// Version is stamped at build time, never read from the file.
	Version string `yaml:"-" mapstructure:"-"`

	Main struct {
		// Name identifies this node in logs and MQTT events.
		Name string
		Log  LogSettings
	}

	Modem       ModemSettings
	Transmitter TransmitterSettings
	Receiver    ReceiverSettings
	Realtime    RealtimeSettings
	Output      OutputSettings
}

// LogSettings controls the optional rotating file log.
type LogSettings struct {
	Enabled    bool
	Path       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// ModemSettings selects the modulation profile. A zero value for any of
// the numeric fields means "use the mode default".
type ModemSettings struct {
	Mode          string
	Volume        float64
	BitRate       int
	MarkFreq      float64
	SpaceFreq     float64
	PreambleBits  int
	PostambleBits int
}

// FSKConfig materializes the modulation parameters, applying overrides on
// top of the selected mode.
func (m *ModemSettings) FSKConfig() (fsk.Config, error) {
	mode, err := fsk.ParseMode(m.Mode)
	if err != nil {
		return fsk.Config{}, err
	}
	cfg, err := mode.Config()
	if err != nil {
		return fsk.Config{}, err
	}
	if m.Volume > 0 {
		cfg.Volume = m.Volume
	}
	if m.BitRate > 0 {
		cfg.BitRate = m.BitRate
	}
	if m.MarkFreq > 0 {
		cfg.MarkFreq = m.MarkFreq
	}
	if m.SpaceFreq > 0 {
		cfg.SpaceFreq = m.SpaceFreq
	}
	if m.PreambleBits > 0 {
		cfg.PreambleBits = m.PreambleBits
	}
	if m.PostambleBits > 0 {
		cfg.PostambleBits = m.PostambleBits
	}
	if err := cfg.Validate(); err != nil {
		return fsk.Config{}, err
	}
	return cfg, nil
}

// Codec builds the codec for the configured mode. When no overrides are in
// play the codec keeps its mode name; any override makes it a custom
// profile.
func (m *ModemSettings) Codec() (*fsk.Codec, error) {
	cfg, err := m.FSKConfig()
	if err != nil {
		return nil, err
	}
	mode, err := fsk.ParseMode(m.Mode)
	if err != nil {
		return nil, err
	}
	if base, berr := mode.Config(); berr == nil && cfg == base {
		return fsk.NewCodec(mode)
	}
	return fsk.NewCodecWithConfig(cfg)
}

// TransmitterSettings tunes playback streaming.
type TransmitterSettings struct {
	// ChunkMS is the playback chunk size in milliseconds; cancellation is
	// checked between chunks.
	ChunkMS int
	// LeadInMS and LeadOutMS are the framing tone durations around a
	// frame. Ignored for modes without a lead frequency.
	LeadInMS  int
	LeadOutMS int
}

// ReceiverSettings tunes capture and frame detection.
type ReceiverSettings struct {
	// NoiseThreshold is the RMS level (0..1) a chunk must exceed before
	// the receiver starts buffering.
	NoiseThreshold float64
	// SilenceTimeoutMS ends a capture after this much continuous silence
	// once a signal has been seen.
	SilenceTimeoutMS int
	// TimeoutSeconds bounds how long a listen waits for any signal.
	TimeoutSeconds int
	Gain           GainSettings
}

// GainSettings controls normalization of the captured buffer before
// decoding.
type GainSettings struct {
	Enabled bool
	// TargetPeak is the desired peak amplitude after normalization.
	TargetPeak float64
	// MaxGain caps amplification so noise is not blown up to full scale.
	MaxGain float64
}

// RealtimeSettings groups the long-running listener integrations.
type RealtimeSettings struct {
	Audio     AudioSettings
	MQTT      MQTTSettings
	Telemetry TelemetrySettings
}

// AudioSettings names the hardware endpoints. Empty means system default.
type AudioSettings struct {
	Source   string // capture device
	Playback string // playback device
}

// MQTTSettings configures publication of received frames.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	Username string
	Password string
	Retain   bool
}

// TelemetrySettings configures the Prometheus metrics endpoint.
type TelemetrySettings struct {
	Enabled bool
	Listen  string // host:port
}

// OutputSettings names the directory for received file payloads.
type OutputSettings struct {
	Path string
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
	settingsOnce     sync.Once
)

// Load reads the configuration from disk, creating a default config file
// on first run, and validates it.
func Load() (*Settings, error) {
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing configuration: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling configuration: %w", err)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// initViper wires file discovery, environment overrides, and defaults.
func initViper() error {
	viper.SetConfigType("yaml")
	viper.SetConfigName("config")
	viper.SetEnvPrefix("tonewire")
	viper.AutomaticEnv()

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
		return createDefaultConfig(configPaths)
	}
	return nil
}

// createDefaultConfig writes the embedded template into the first config
// path and reads it back.
func createDefaultConfig(configPaths []string) error {
	if len(configPaths) == 0 {
		return errors.Newf("no config paths available").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	defaultConfig, err := configFiles.ReadFile("config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config template: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	slog.Info("created default configuration", "path", configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the current settings instance, or nil before Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the settings singleton, loading it on first use. It
// terminates the process when the configuration cannot be loaded, so it is
// only appropriate for call sites past startup validation.
func Setting() *Settings {
	settingsOnce.Do(func() {
		if GetSettings() == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	return GetSettings()
}

// SaveYAMLConfig atomically writes settings to a YAML file: marshal to a
// temp file in the target directory, then rename over the destination.
func SaveYAMLConfig(path string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
