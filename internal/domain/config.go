package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Queue        QueueConfig        `mapstructure:"queue"`
	YouTube      YouTubeConfig      `mapstructure:"youtube"`
	Transcode    TranscodeConfig    `mapstructure:"transcode"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Delivery     DeliveryConfig     `mapstructure:"delivery"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host      string          `mapstructure:"host"`
	Port      int             `mapstructure:"port"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig limits synchronous fetches per client
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// Sink modes
const (
	SinkModeFile   = "file"
	SinkModeMemory = "memory"
)

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir          string `mapstructure:"base_dir"`
	TempDir          string `mapstructure:"temp_dir"`
	OutputDir        string `mapstructure:"output_dir"`
	LogsDir          string `mapstructure:"logs_dir"`
	ChunkSize        int    `mapstructure:"chunk_size"`
	SinkMode         string `mapstructure:"sink_mode"` // file, memory
	ConcurrentLimit  int    `mapstructure:"concurrent_limit"`
	AutoStartWorkers bool   `mapstructure:"auto_start_workers"`
	CaptionLanguage  string `mapstructure:"caption_language"`
}

// QueueConfig contains queue-related configuration
type QueueConfig struct {
	DatabasePath  string        `mapstructure:"database_path"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// YouTubeConfig contains resolver configuration
type YouTubeConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"` // 0 disables the client timeout
}

// TranscodeConfig contains ffmpeg configuration
type TranscodeConfig struct {
	FFmpegBinary string `mapstructure:"ffmpeg_binary"`
	Codec        string `mapstructure:"codec"`
	Bitrate      string `mapstructure:"bitrate"`
	SampleRate   int    `mapstructure:"sample_rate"`
}

// AudioFormat returns the target format described by the config
func (c TranscodeConfig) AudioFormat() AudioFormat {
	format := MP3
	if c.Codec != "" {
		format.Codec = c.Codec
	}
	if c.Bitrate != "" {
		format.Bitrate = c.Bitrate
	}
	if c.SampleRate > 0 {
		format.SampleRate = c.SampleRate
	}
	return format
}

// CacheConfig contains metadata cache configuration
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Delivery methods
const (
	DeliveryFilesystem = "filesystem"
	DeliveryS3         = "s3"
)

// DeliveryConfig decides where queued artifacts end up
type DeliveryConfig struct {
	Method string   `mapstructure:"method"` // filesystem, s3
	S3     S3Config `mapstructure:"s3"`
}

// S3Config contains S3-compatible storage configuration
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send, log
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     1,
				Burst:   3,
			},
		},
		Download: DownloadConfig{
			BaseDir:          "$HOME/Downloads/media-fetch",
			TempDir:          "$HOME/Downloads/media-fetch/tmp",
			OutputDir:        "$HOME/Downloads/media-fetch/completed",
			LogsDir:          "$HOME/Downloads/media-fetch/logs",
			ChunkSize:        32 * 1024,
			SinkMode:         SinkModeFile,
			ConcurrentLimit:  1,
			AutoStartWorkers: true,
			CaptionLanguage:  "en",
		},
		Queue: QueueConfig{
			DatabasePath:  "$HOME/Downloads/media-fetch/config/queue.db",
			CheckInterval: 10 * time.Second,
		},
		YouTube: YouTubeConfig{
			HTTPTimeout: 0,
		},
		Transcode: TranscodeConfig{
			FFmpegBinary: "ffmpeg",
			Codec:        MP3.Codec,
			Bitrate:      MP3.Bitrate,
			SampleRate:   MP3.SampleRate,
		},
		Cache: CacheConfig{
			Enabled:   false,
			RedisAddr: "localhost:6379",
			DB:        0,
			TTL:       6 * time.Hour,
		},
		Delivery: DeliveryConfig{
			Method: DeliveryFilesystem,
			S3: S3Config{
				Region: "us-east-1",
				Prefix: "media-fetch/",
			},
		},
		Notification: NotificationConfig{
			Enabled: true,
			Sound:   true,
			Method:  "osascript",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
