package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	Events   EventsConfig   `mapstructure:"events"`
	Encoder  EncoderConfig  `mapstructure:"encoder"`
	Progress ProgressConfig `mapstructure:"progress"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`

	// Bucket holds originals; thumbnails live under ThumbnailPrefix inside it.
	Bucket          string `mapstructure:"bucket"`
	ThumbnailPrefix string `mapstructure:"thumbnail_prefix"`

	// QualityBuckets maps a ladder tier ("720p") to its output bucket.
	// Unmapped tiers fall back to DefaultQualityBucket.
	QualityBuckets       map[string]string `mapstructure:"quality_buckets"`
	DefaultQualityBucket string            `mapstructure:"default_quality_bucket"`
}

// BucketForQuality resolves the output bucket for a ladder tier.
func (c S3Config) BucketForQuality(quality string) string {
	if bucket, ok := c.QualityBuckets[strings.ToLower(quality)]; ok && bucket != "" {
		return bucket
	}
	return c.DefaultQualityBucket
}

type EventsConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	UploadTopic    string `mapstructure:"upload_topic"`
	TranscodeTopic string `mapstructure:"transcode_topic"`
	ConsumerGroup  string `mapstructure:"consumer_group"`
	Workers        int    `mapstructure:"workers"`
}

type EncoderConfig struct {
	FFmpegPath       string        `mapstructure:"ffmpeg_path"`
	FFprobePath      string        `mapstructure:"ffprobe_path"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ThumbnailTimeout time.Duration `mapstructure:"thumbnail_timeout"`
	SegmentDuration  int           `mapstructure:"segment_duration"`

	// UseFilterGraph selects the split/scale filter-graph command strategy
	// instead of per-representation mapped flags.
	UseFilterGraph bool `mapstructure:"use_filter_graph"`
}

type ProgressConfig struct {
	CompletedTTL  time.Duration `mapstructure:"completed_ttl"`
	FailedTTL     time.Duration `mapstructure:"failed_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	// Nested keys map to env vars, e.g. s3.bucket -> S3_BUCKET
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "clipstream")
	viper.SetDefault("s3.use_ssl", true)
	viper.SetDefault("s3.bucket", "videos")
	viper.SetDefault("s3.thumbnail_prefix", "thumbnails/")
	viper.SetDefault("s3.default_quality_bucket", "videos")
	viper.SetDefault("events.redis_addr", "localhost:6379")
	viper.SetDefault("events.upload_topic", "video.uploaded")
	viper.SetDefault("events.transcode_topic", "video.transcoding")
	viper.SetDefault("events.consumer_group", "transcoding-group")
	viper.SetDefault("events.workers", 4)
	viper.SetDefault("encoder.ffmpeg_path", "ffmpeg")
	viper.SetDefault("encoder.ffprobe_path", "ffprobe")
	viper.SetDefault("encoder.timeout", "20m")
	viper.SetDefault("encoder.thumbnail_timeout", "2m")
	viper.SetDefault("encoder.segment_duration", 10)
	viper.SetDefault("progress.completed_ttl", "1h")
	viper.SetDefault("progress.failed_ttl", "30m")
	viper.SetDefault("progress.sweep_interval", "30m")
	viper.SetDefault("progress.stale_after", "2h")

	err = viper.ReadInConfig()
	// Missing config file is fine; defaults and env vars still apply.
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
