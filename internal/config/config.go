package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/rx-reader/pkg/pipeline"
	"github.com/menta2k/rx-reader/pkg/processing"
)

// ErrMissingCredential is returned when a configured service needs an API key
// that resolved to nothing
var ErrMissingCredential = errors.New("missing credential")

// EnvPrefix prefixes every environment override, e.g. RXREADER_BACKEND_MODEL
const EnvPrefix = "RXREADER"

// Config holds the application configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend" yaml:"backend"`
	Search   SearchConfig   `mapstructure:"search" yaml:"search"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Ingest   IngestConfig   `mapstructure:"ingest" yaml:"ingest"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// BackendConfig selects the vision model endpoint
type BackendConfig struct {
	Type           string `mapstructure:"type" yaml:"type"`
	URL            string `mapstructure:"url" yaml:"url"`
	Model          string `mapstructure:"model" yaml:"model"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// SearchConfig selects the web search provider behind the search tool
type SearchConfig struct {
	Provider       string `mapstructure:"provider" yaml:"provider"`
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	EngineID       string `mapstructure:"engine_id" yaml:"engine_id"`
	MaxResults     int    `mapstructure:"max_results" yaml:"max_results"`
	QueriesPerItem int    `mapstructure:"queries_per_item" yaml:"queries_per_item"`
	Region         string `mapstructure:"region" yaml:"region"`
	// Locale is the DuckDuckGo region code, e.g. bd-en
	Locale         string `mapstructure:"locale" yaml:"locale"`
}

// PipelineConfig holds the pass count, temperatures and verification mode
type PipelineConfig struct {
	Passes                int     `mapstructure:"passes" yaml:"passes"`
	BaseTemperature       float64 `mapstructure:"base_temperature" yaml:"base_temperature"`
	TemperatureStep       float64 `mapstructure:"temperature_step" yaml:"temperature_step"`
	VerifyTemperature     float64 `mapstructure:"verify_temperature" yaml:"verify_temperature"`
	NameVerifyTemperature float64 `mapstructure:"name_verify_temperature" yaml:"name_verify_temperature"`
	FinalTemperature      float64 `mapstructure:"final_temperature" yaml:"final_temperature"`
	VerifyBy              string  `mapstructure:"verify_by" yaml:"verify_by"`
	Grouping              string  `mapstructure:"grouping" yaml:"grouping"`
	SimilarityThreshold   float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	MaxVerifyWorkers      int     `mapstructure:"max_verify_workers" yaml:"max_verify_workers"`
}

// IngestConfig holds configuration for image loading
type IngestConfig struct {
	SupportedFormats []string `mapstructure:"supported_formats" yaml:"supported_formats"`
	MaxDimension     int      `mapstructure:"max_dimension" yaml:"max_dimension"`
	JPEGQuality      int      `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	MinImageSize     int      `mapstructure:"min_image_size" yaml:"min_image_size"`
}

// ServerConfig holds the upload server settings
type ServerConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        int    `mapstructure:"port" yaml:"port"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	opts := pipeline.DefaultOptions()
	ingest := processing.DefaultConfig()
	return &Config{
		Backend: BackendConfig{
			Type:           "openai",
			URL:            "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:          "gemini-2.0-flash",
			APIKey:         "${GOOGLE_API_KEY}",
			TimeoutSeconds: 300,
		},
		Search: SearchConfig{
			Provider:       "duckduckgo",
			APIKey:         "${GOOGLE_SEARCH_API_KEY}",
			EngineID:       "${GOOGLE_SEARCH_ENGINE_ID}",
			MaxResults:     5,
			QueriesPerItem: opts.QueriesPerItem,
			Region:         opts.Region,
			Locale:         "bd-en",
		},
		Pipeline: PipelineConfig{
			Passes:                opts.Passes,
			BaseTemperature:       opts.BaseTemperature,
			TemperatureStep:       opts.TemperatureStep,
			VerifyTemperature:     opts.VerifyTemperature,
			NameVerifyTemperature: opts.NameVerifyTemperature,
			FinalTemperature:      opts.FinalTemperature,
			VerifyBy:              string(opts.VerifyBy),
			Grouping:              string(opts.Grouping),
			SimilarityThreshold:   opts.SimilarityThreshold,
			MaxVerifyWorkers:      opts.MaxVerifyWorkers,
		},
		Ingest: IngestConfig{
			SupportedFormats: ingest.SupportedFormats,
			MaxDimension:     ingest.MaxDimension,
			JPEGQuality:      ingest.JPEGQuality,
			MinImageSize:     ingest.MinImageSize,
		},
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8501,
			MaxUploadMB: 20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from cfgFile, or from config.yaml in the working
// directory or ~/.config/rx-reader when cfgFile is empty. A missing file is
// not an error. RXREADER_* environment variables override file values and
// ${ENV_VAR} references in credentials are resolved.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Dir(GetConfigPath()))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) || cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.resolveEnv()
	return &cfg, nil
}

// setDefaults registers every leaf key so environment overrides are seen by
// Unmarshal
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("backend.type", d.Backend.Type)
	v.SetDefault("backend.url", d.Backend.URL)
	v.SetDefault("backend.model", d.Backend.Model)
	v.SetDefault("backend.api_key", d.Backend.APIKey)
	v.SetDefault("backend.timeout_seconds", d.Backend.TimeoutSeconds)

	v.SetDefault("search.provider", d.Search.Provider)
	v.SetDefault("search.api_key", d.Search.APIKey)
	v.SetDefault("search.engine_id", d.Search.EngineID)
	v.SetDefault("search.max_results", d.Search.MaxResults)
	v.SetDefault("search.queries_per_item", d.Search.QueriesPerItem)
	v.SetDefault("search.region", d.Search.Region)
	v.SetDefault("search.locale", d.Search.Locale)

	v.SetDefault("pipeline.passes", d.Pipeline.Passes)
	v.SetDefault("pipeline.base_temperature", d.Pipeline.BaseTemperature)
	v.SetDefault("pipeline.temperature_step", d.Pipeline.TemperatureStep)
	v.SetDefault("pipeline.verify_temperature", d.Pipeline.VerifyTemperature)
	v.SetDefault("pipeline.name_verify_temperature", d.Pipeline.NameVerifyTemperature)
	v.SetDefault("pipeline.final_temperature", d.Pipeline.FinalTemperature)
	v.SetDefault("pipeline.verify_by", d.Pipeline.VerifyBy)
	v.SetDefault("pipeline.grouping", d.Pipeline.Grouping)
	v.SetDefault("pipeline.similarity_threshold", d.Pipeline.SimilarityThreshold)
	v.SetDefault("pipeline.max_verify_workers", d.Pipeline.MaxVerifyWorkers)

	v.SetDefault("ingest.supported_formats", d.Ingest.SupportedFormats)
	v.SetDefault("ingest.max_dimension", d.Ingest.MaxDimension)
	v.SetDefault("ingest.jpeg_quality", d.Ingest.JPEGQuality)
	v.SetDefault("ingest.min_image_size", d.Ingest.MinImageSize)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func (c *Config) resolveEnv() {
	c.Backend.APIKey = ResolveEnvVars(c.Backend.APIKey)
	c.Backend.URL = ResolveEnvVars(c.Backend.URL)
	c.Search.APIKey = ResolveEnvVars(c.Search.APIKey)
	c.Search.EngineID = ResolveEnvVars(c.Search.EngineID)
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case "openai":
		if c.Backend.APIKey == "" {
			return fmt.Errorf("%w: backend.api_key is required for the openai backend", ErrMissingCredential)
		}
	case "ollama":
	default:
		return fmt.Errorf("backend.type must be openai or ollama, got %q", c.Backend.Type)
	}
	if c.Backend.TimeoutSeconds < 0 {
		return fmt.Errorf("backend.timeout_seconds must not be negative")
	}

	switch c.Search.Provider {
	case "duckduckgo", "none":
	case "google":
		if c.Search.APIKey == "" || c.Search.EngineID == "" {
			return fmt.Errorf("%w: search.api_key and search.engine_id are required for google search", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("search.provider must be duckduckgo, google or none, got %q", c.Search.Provider)
	}
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 10 {
		return fmt.Errorf("search.max_results must be between 1 and 10")
	}
	if c.Search.QueriesPerItem < 1 {
		return fmt.Errorf("search.queries_per_item must be positive")
	}

	p := c.Pipeline
	if p.Passes < 1 {
		return fmt.Errorf("pipeline.passes must be positive")
	}
	for name, temp := range map[string]float64{
		"base_temperature":        p.BaseTemperature,
		"verify_temperature":      p.VerifyTemperature,
		"name_verify_temperature": p.NameVerifyTemperature,
		"final_temperature":       p.FinalTemperature,
	} {
		if temp < 0 || temp > 2 {
			return fmt.Errorf("pipeline.%s must be between 0 and 2", name)
		}
	}
	if top := p.BaseTemperature + float64(p.Passes-1)*p.TemperatureStep; top < 0 || top > 2 {
		return fmt.Errorf("pipeline temperatures run to %.2f, must stay between 0 and 2", top)
	}
	if p.SimilarityThreshold <= 0 || p.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline.similarity_threshold must be between 0 and 1")
	}
	if p.MaxVerifyWorkers < 1 {
		return fmt.Errorf("pipeline.max_verify_workers must be positive")
	}
	if err := c.PipelineOptions().Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if len(c.Ingest.SupportedFormats) == 0 {
		return fmt.Errorf("ingest.supported_formats cannot be empty")
	}
	if c.Ingest.JPEGQuality < 1 || c.Ingest.JPEGQuality > 100 {
		return fmt.Errorf("ingest.jpeg_quality must be between 1 and 100")
	}
	if c.Ingest.MinImageSize < 1 {
		return fmt.Errorf("ingest.min_image_size must be positive")
	}
	if c.Ingest.MaxDimension < 0 {
		return fmt.Errorf("ingest.max_dimension must not be negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Timeout returns the backend timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// PipelineOptions converts the pipeline and search sections into pipeline options
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Passes:                c.Pipeline.Passes,
		BaseTemperature:       c.Pipeline.BaseTemperature,
		TemperatureStep:       c.Pipeline.TemperatureStep,
		VerifyTemperature:     c.Pipeline.VerifyTemperature,
		NameVerifyTemperature: c.Pipeline.NameVerifyTemperature,
		FinalTemperature:      c.Pipeline.FinalTemperature,
		VerifyBy:              pipeline.VerifyBy(c.Pipeline.VerifyBy),
		MaxVerifyWorkers:      c.Pipeline.MaxVerifyWorkers,
		Grouping:              pipeline.GroupingMode(c.Pipeline.Grouping),
		SimilarityThreshold:   c.Pipeline.SimilarityThreshold,
		QueriesPerItem:        c.Search.QueriesPerItem,
		Region:                c.Search.Region,
	}
}

// ProcessingConfig converts the ingest and server sections into a processor config
func (c *Config) ProcessingConfig() processing.Config {
	return processing.Config{
		SupportedFormats: c.Ingest.SupportedFormats,
		MaxDimension:     c.Ingest.MaxDimension,
		JPEGQuality:      c.Ingest.JPEGQuality,
		MinImageSize:     c.Ingest.MinImageSize,
		MaxBytes:         int64(c.Server.MaxUploadMB) << 20,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# rx-reader configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Any key can be overridden with RXREADER_<SECTION>_<KEY>, e.g. RXREADER_BACKEND_MODEL

`)
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "rx-reader", "config.yaml")
}
