package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/userportal/internal/flagx"
	"github.com/dmitrijs2005/userportal/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "5m" and integer nanoseconds are accepted. Only
// keys present in the file override the current values.
type JsonConfig struct {
	HTTPAddr         *string         `json:"http_addr"`
	BaseURL          *string         `json:"base_url"`
	DatabaseDSN      *string         `json:"database_dsn"`
	JWTSecret        *string         `json:"jwt_secret"`
	TokenLifetime    *timex.Duration `json:"token_lifetime"`
	AttemptsBackend  *string         `json:"attempts_backend"`
	RedisAddr        *string         `json:"redis_addr"`
	RedisPassword    *string         `json:"redis_password"`
	RedisDB          *int            `json:"redis_db"`
	ImageBackend     *string         `json:"image_backend"`
	ImageDir         *string         `json:"image_dir"`
	S3AccessKey      *string         `json:"s3_access_key"`
	S3SecretKey      *string         `json:"s3_secret_key"`
	S3Bucket         *string         `json:"s3_bucket"`
	S3Region         *string         `json:"s3_region"`
	S3BaseEndpoint   *string         `json:"s3_base_endpoint"`
	SMTPHost         *string         `json:"smtp_host"`
	SMTPPort         *int            `json:"smtp_port"`
	SMTPUsername     *string         `json:"smtp_username"`
	SMTPPassword     *string         `json:"smtp_password"`
	SMTPFrom         *string         `json:"smtp_from"`
	TempImageBaseURL *string         `json:"temp_image_base_url"`
	LogBackend       *string         `json:"log_backend"`
	LogLevel         *string         `json:"log_level"`
	LogFormat        *string         `json:"log_format"`
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// parseJson loads the file named by -c / -config, if any, into config.
// An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	set(&config.HTTPAddr, c.HTTPAddr)
	set(&config.BaseURL, c.BaseURL)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.JWTSecret, c.JWTSecret)
	if c.TokenLifetime != nil {
		config.TokenLifetime = c.TokenLifetime.Duration
	}
	set(&config.AttemptsBackend, c.AttemptsBackend)
	set(&config.RedisAddr, c.RedisAddr)
	set(&config.RedisPassword, c.RedisPassword)
	set(&config.RedisDB, c.RedisDB)
	set(&config.ImageBackend, c.ImageBackend)
	set(&config.ImageDir, c.ImageDir)
	set(&config.S3AccessKey, c.S3AccessKey)
	set(&config.S3SecretKey, c.S3SecretKey)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.SMTPHost, c.SMTPHost)
	set(&config.SMTPPort, c.SMTPPort)
	set(&config.SMTPUsername, c.SMTPUsername)
	set(&config.SMTPPassword, c.SMTPPassword)
	set(&config.SMTPFrom, c.SMTPFrom)
	set(&config.TempImageBaseURL, c.TempImageBaseURL)
	set(&config.LogBackend, c.LogBackend)
	set(&config.LogLevel, c.LogLevel)
	set(&config.LogFormat, c.LogFormat)
}
