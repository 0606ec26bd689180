//nolint:lll
package config

// Config represents the complete configuration for mokugo. It is loaded from
// configuration files, MOKUGO_* environment variables and command-line flags.
type Config struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Models     ModelsConfig     `mapstructure:"models" yaml:"models" json:"models"`
	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	Chunker    ChunkerConfig    `mapstructure:"chunker" yaml:"chunker" json:"chunker"`
	Run        RunConfig        `mapstructure:"run" yaml:"run" json:"run"`
	GPU        GPUConfig        `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// ModelsConfig locates model artifacts and the ONNX Runtime library.
type ModelsConfig struct {
	// CacheDir overrides the manga-ocr model cache root.
	CacheDir string `mapstructure:"cache_dir" yaml:"cache_dir" json:"cache_dir"`
	// LibraryPath points at the ONNX Runtime shared library.
	LibraryPath string `mapstructure:"library_path" yaml:"library_path" json:"library_path"`

	Detector ArtifactConfig `mapstructure:"detector" yaml:"detector" json:"detector"`
	Encoder  ArtifactConfig `mapstructure:"encoder" yaml:"encoder" json:"encoder"`
	Decoder  ArtifactConfig `mapstructure:"decoder" yaml:"decoder" json:"decoder"`
	Vocab    ArtifactConfig `mapstructure:"vocab" yaml:"vocab" json:"vocab"`

	DownloadAttempts int `mapstructure:"download_attempts" yaml:"download_attempts" json:"download_attempts"`
}

// ArtifactConfig names one model file and where to fetch it from.
type ArtifactConfig struct {
	Name string `mapstructure:"name" yaml:"name" json:"name"`
	URL  string `mapstructure:"url" yaml:"url" json:"url"`
}

// DetectorConfig contains comic text detector settings.
type DetectorConfig struct {
	InputSize     int     `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	ConfThreshold float64 `mapstructure:"conf_threshold" yaml:"conf_threshold" json:"conf_threshold"`
	NMSThreshold  float64 `mapstructure:"nms_threshold" yaml:"nms_threshold" json:"nms_threshold"`
	MaskThreshold float64 `mapstructure:"mask_threshold" yaml:"mask_threshold" json:"mask_threshold"`
	LineThreshold float64 `mapstructure:"line_threshold" yaml:"line_threshold" json:"line_threshold"`
	MinLineArea   int     `mapstructure:"min_line_area" yaml:"min_line_area" json:"min_line_area"`
	NumThreads    int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// RecognizerConfig contains text recognition settings.
type RecognizerConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend" json:"backend"`
	MaxLength  int    `mapstructure:"max_length" yaml:"max_length" json:"max_length"`
	NumThreads int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	// Language is the tesseract language, ignored by the onnx backend.
	Language string `mapstructure:"language" yaml:"language" json:"language"`
}

// ChunkerConfig controls how long text lines are split before recognition.
type ChunkerConfig struct {
	TextHeight         int     `mapstructure:"text_height" yaml:"text_height" json:"text_height"`
	MaxRatioVertical   float64 `mapstructure:"max_ratio_vertical" yaml:"max_ratio_vertical" json:"max_ratio_vertical"`
	MaxRatioHorizontal float64 `mapstructure:"max_ratio_horizontal" yaml:"max_ratio_horizontal" json:"max_ratio_horizontal"`
	AnchorWindow       float64 `mapstructure:"anchor_window" yaml:"anchor_window" json:"anchor_window"`
}

// RunConfig contains the defaults of the run command.
type RunConfig struct {
	IgnoreErrors bool `mapstructure:"ignore_errors" yaml:"ignore_errors" json:"ignore_errors"`
	NoCache      bool `mapstructure:"no_cache" yaml:"no_cache" json:"no_cache"`
	Unzip        bool `mapstructure:"unzip" yaml:"unzip" json:"unzip"`
	DisableOCR   bool `mapstructure:"disable_ocr" yaml:"disable_ocr" json:"disable_ocr"`
	Yes          bool `mapstructure:"yes" yaml:"yes" json:"yes"`
	Lock         bool `mapstructure:"lock" yaml:"lock" json:"lock"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile is written after each run when set.
	Textfile string `mapstructure:"textfile" yaml:"textfile" json:"textfile"`
}
