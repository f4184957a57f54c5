package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	GCS    GCSConfig    `yaml:"gcs" mapstructure:"gcs"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates rasters and layer documents. Paths starting with
// gs:// are Cloud Storage buckets.
type DataConfig struct {
	BasePath  string `yaml:"base_path" mapstructure:"base_path"`
	LayerPath string `yaml:"layer_path" mapstructure:"layer_path"`
}

// ServerConfig bounds the work a single WMS request may ask for.
type ServerConfig struct {
	Port          int     `yaml:"port" mapstructure:"port"`
	MaxArea       float64 `yaml:"max_area" mapstructure:"max_area"`
	MaxPixels     int     `yaml:"max_pixels" mapstructure:"max_pixels"`
	MaxConcurrent int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// GCSConfig configures the Cloud Storage client.
type GCSConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	Anonymous bool   `yaml:"anonymous" mapstructure:"anonymous"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// Load reads config.yaml from the working directory (optional), then
// GRAYWMS_ prefixed environment variables, which may come from a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GRAYWMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("data.base_path", "./data")
	v.SetDefault("data.layer_path", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_area", 4e11)
	v.SetDefault("server.max_pixels", 4096)
	v.SetDefault("server.max_concurrent", 8)
	v.SetDefault("gcs.endpoint", "")
	v.SetDefault("gcs.anonymous", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_age_days", 28)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if cfg.Data.LayerPath == "" {
		cfg.Data.LayerPath = cfg.Data.BasePath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	if c.Data.BasePath == "" {
		return eris.New("config: data.base_path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.Server.MaxPixels <= 0 {
		return eris.Errorf("config: server.max_pixels must be positive, got %d", c.Server.MaxPixels)
	}
	if c.Server.MaxConcurrent <= 0 {
		return eris.Errorf("config: server.max_concurrent must be positive, got %d", c.Server.MaxConcurrent)
	}
	return nil
}

// InitLogger builds the global zap logger. Log lines go to stderr, or to a
// rotating file when cfg.File is set.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	if cfg.File == "" {
		logger, err := zapCfg.Build()
		if err != nil {
			return eris.Wrap(err, "config: build logger")
		}
		zap.ReplaceGlobals(logger)
		return nil
	}

	var enc zapcore.Encoder
	if cfg.Format == "console" {
		enc = zapcore.NewConsoleEncoder(zapCfg.EncoderConfig)
	} else {
		enc = zapcore.NewJSONEncoder(zapCfg.EncoderConfig)
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename: cfg.File,
		MaxSize:  cfg.MaxSizeMB,  // megabytes
		MaxAge:   cfg.MaxAgeDays, // days
	})
	core := zapcore.NewCore(enc, w, zapCfg.Level)
	zap.ReplaceGlobals(zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))))
	return nil
}
