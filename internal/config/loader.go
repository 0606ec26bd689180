package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "mokugo"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "MOKUGO"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, so that flags
// bound with viper.BindPFlag take part in resolution.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on v.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load searches the standard paths for a config file, applies environment
// variables and defaults, and validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile is Load with an explicit config file. An empty path falls
// back to the search paths.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation loads like LoadWithFile but skips Validate.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// A missing file is fine when searching; defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// ConfigFileUsed returns the path of the config file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// AllSettings returns the resolved settings as a nested map.
func (l *Loader) AllSettings() map[string]any {
	return l.v.AllSettings()
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range SearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps detector.conf_threshold to
// MOKUGO_DETECTOR_CONF_THRESHOLD and so on.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults sets default values for all configuration options.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("log_format", d.LogFormat)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("models.cache_dir", d.Models.CacheDir)
	l.v.SetDefault("models.library_path", d.Models.LibraryPath)
	l.v.SetDefault("models.detector.name", d.Models.Detector.Name)
	l.v.SetDefault("models.detector.url", d.Models.Detector.URL)
	l.v.SetDefault("models.encoder.name", d.Models.Encoder.Name)
	l.v.SetDefault("models.encoder.url", d.Models.Encoder.URL)
	l.v.SetDefault("models.decoder.name", d.Models.Decoder.Name)
	l.v.SetDefault("models.decoder.url", d.Models.Decoder.URL)
	l.v.SetDefault("models.vocab.name", d.Models.Vocab.Name)
	l.v.SetDefault("models.vocab.url", d.Models.Vocab.URL)
	l.v.SetDefault("models.download_attempts", d.Models.DownloadAttempts)

	l.v.SetDefault("detector.input_size", d.Detector.InputSize)
	l.v.SetDefault("detector.conf_threshold", d.Detector.ConfThreshold)
	l.v.SetDefault("detector.nms_threshold", d.Detector.NMSThreshold)
	l.v.SetDefault("detector.mask_threshold", d.Detector.MaskThreshold)
	l.v.SetDefault("detector.line_threshold", d.Detector.LineThreshold)
	l.v.SetDefault("detector.min_line_area", d.Detector.MinLineArea)
	l.v.SetDefault("detector.num_threads", d.Detector.NumThreads)

	l.v.SetDefault("recognizer.backend", d.Recognizer.Backend)
	l.v.SetDefault("recognizer.max_length", d.Recognizer.MaxLength)
	l.v.SetDefault("recognizer.num_threads", d.Recognizer.NumThreads)
	l.v.SetDefault("recognizer.language", d.Recognizer.Language)

	l.v.SetDefault("chunker.text_height", d.Chunker.TextHeight)
	l.v.SetDefault("chunker.max_ratio_vertical", d.Chunker.MaxRatioVertical)
	l.v.SetDefault("chunker.max_ratio_horizontal", d.Chunker.MaxRatioHorizontal)
	l.v.SetDefault("chunker.anchor_window", d.Chunker.AnchorWindow)

	l.v.SetDefault("run.ignore_errors", d.Run.IgnoreErrors)
	l.v.SetDefault("run.no_cache", d.Run.NoCache)
	l.v.SetDefault("run.unzip", d.Run.Unzip)
	l.v.SetDefault("run.disable_ocr", d.Run.DisableOCR)
	l.v.SetDefault("run.yes", d.Run.Yes)
	l.v.SetDefault("run.lock", d.Run.Lock)

	l.v.SetDefault("gpu.enabled", d.GPU.Enabled)
	l.v.SetDefault("gpu.device", d.GPU.Device)
	l.v.SetDefault("gpu.memory_limit", d.GPU.MemoryLimit)

	l.v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// SearchPaths returns the directories searched for mokugo.yaml, in order.
func SearchPaths() []string {
	paths := []string{"."}
	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}
	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && configDir != "" {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	return append(paths, filepath.Join("/etc", ConfigFileName))
}

// Render encodes cfg as YAML.
func Render(cfg Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}

// WriteDefaultConfigFile writes the default configuration to filename,
// or mokugo.yaml when filename is empty. Existing files are not replaced
// unless force is set.
func WriteDefaultConfigFile(filename string, force bool) (string, error) {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	if !force {
		if _, err := os.Stat(filename); err == nil {
			return "", fmt.Errorf("config file already exists: %s", filename)
		}
	}
	data, err := Render(DefaultConfig())
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return filename, nil
}
