package app

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yourusername/media-fetch-go/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. MEDIAFETCH_SERVER_PORT
const EnvPrefix = "MEDIAFETCH"

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.media-fetch")
		v.AddConfigPath("/etc/media-fetch")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers the keys AutomaticEnv cannot discover on its own:
// Unmarshal only consults keys viper already knows about.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port",
		"server.rate_limit.enabled", "server.rate_limit.rps", "server.rate_limit.burst",
		"download.base_dir", "download.temp_dir", "download.output_dir", "download.logs_dir",
		"download.chunk_size", "download.sink_mode", "download.concurrent_limit",
		"download.auto_start_workers", "download.caption_language",
		"queue.database_path", "queue.check_interval",
		"youtube.http_timeout",
		"transcode.ffmpeg_binary", "transcode.codec", "transcode.bitrate", "transcode.sample_rate",
		"cache.enabled", "cache.redis_addr", "cache.password", "cache.db", "cache.ttl",
		"delivery.method",
		"delivery.s3.bucket", "delivery.s3.region", "delivery.s3.prefix", "delivery.s3.endpoint",
		"delivery.s3.access_key_id", "delivery.s3.secret_access_key", "delivery.s3.use_path_style",
		"notification.enabled", "notification.sound", "notification.method",
		"logging.level", "logging.format", "logging.output_path",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Download.BaseDir = expandPath(config.Download.BaseDir)
	config.Download.TempDir = expandPath(config.Download.TempDir)
	config.Download.OutputDir = expandPath(config.Download.OutputDir)
	config.Download.LogsDir = expandPath(config.Download.LogsDir)
	config.Queue.DatabasePath = expandPath(config.Queue.DatabasePath)
	config.Transcode.FFmpegBinary = expandPath(config.Transcode.FFmpegBinary)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}
	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Download.TempDir == "" {
		return fmt.Errorf("download temp directory not configured")
	}

	if config.Download.ConcurrentLimit < 1 {
		return fmt.Errorf("concurrent limit must be at least 1")
	}

	if config.Download.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be positive")
	}

	switch config.Download.SinkMode {
	case domain.SinkModeFile, domain.SinkModeMemory:
	default:
		return fmt.Errorf("invalid sink mode: %s", config.Download.SinkMode)
	}

	if config.Queue.DatabasePath == "" {
		return fmt.Errorf("queue database path not configured")
	}

	switch config.Delivery.Method {
	case domain.DeliveryFilesystem:
		if config.Download.OutputDir == "" {
			return fmt.Errorf("download output directory not configured")
		}
	case domain.DeliveryS3:
		if config.Delivery.S3.Bucket == "" {
			return fmt.Errorf("s3 delivery requires a bucket")
		}
	default:
		return fmt.Errorf("invalid delivery method: %s", config.Delivery.Method)
	}

	if config.Cache.Enabled && config.Cache.RedisAddr == "" {
		return fmt.Errorf("cache enabled without a redis address")
	}

	if config.Server.RateLimit.Enabled && (config.Server.RateLimit.RPS <= 0 || config.Server.RateLimit.Burst < 1) {
		return fmt.Errorf("rate limit requires positive rps and burst")
	}

	if config.Download.CaptionLanguage == "" {
		config.Download.CaptionLanguage = "en"
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, value := range settingsMap(reflect.ValueOf(*config)) {
		v.Set(key, value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// settingsMap converts a config struct into nested maps keyed by the
// mapstructure tags, so a saved file loads back through LoadConfig
func settingsMap(rv reflect.Value) map[string]interface{} {
	out := make(map[string]interface{})
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" || !field.IsExported() {
			continue
		}
		value := rv.Field(i)
		if value.Kind() == reflect.Struct && value.Type().PkgPath() == rt.PkgPath() {
			out[key] = settingsMap(value)
			continue
		}
		if d, ok := value.Interface().(time.Duration); ok {
			out[key] = d.String()
			continue
		}
		out[key] = value.Interface()
	}
	return out
}
