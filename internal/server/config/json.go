package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/xtouch/internal/flagx"
	"github.com/dmitrijs2005/xtouch/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Pointer
// fields distinguish "absent" from zero values so a partial file only
// overrides what it mentions. Durations accept "15m"-style strings.
type JsonConfig struct {
	HTTPAddr                     *string         `json:"http_addr"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`

	StorageDriver            *string         `json:"storage_driver"`
	S3RootUser               *string         `json:"s3_root_user"`
	S3RootPassword           *string         `json:"s3_root_password"`
	S3Bucket                 *string         `json:"s3_bucket"`
	S3Region                 *string         `json:"s3_region"`
	S3BaseEndpoint           *string         `json:"s3_base_endpoint"`
	S3UseSSL                 *bool           `json:"s3_use_ssl"`
	PhotoURLValidityDuration *timex.Duration `json:"photo_url_validity_duration"`
	PhotoMaxSide             *int            `json:"photo_max_side"`
	PhotoJPEGQuality         *int            `json:"photo_jpeg_quality"`
	MaxUploadBytes           *int64          `json:"max_upload_bytes"`

	SMTPHost      *string `json:"smtp_host"`
	SMTPPort      *int    `json:"smtp_port"`
	SMTPUser      *string `json:"smtp_user"`
	SMTPPassword  *string `json:"smtp_password"`
	MailFrom      *string `json:"mail_from"`
	PublicBaseURL *string `json:"public_base_url"`

	RedisAddr     *string         `json:"redis_addr"`
	RedisPassword *string         `json:"redis_password"`
	RedisDB       *int            `json:"redis_db"`
	ContactLimit  *int            `json:"contact_limit"`
	ContactWindow *timex.Duration `json:"contact_window"`

	RateLimitRPM *int    `json:"rate_limit_rpm"`
	LogFormat    *string `json:"log_format"`
	LogLevel     *string `json:"log_level"`
}

// parseJson loads the file named by -c/-config, if any, and copies every
// field present in it into config. A missing or malformed file panics, the
// same way bad flags do.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)

	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setValue(&config.S3UseSSL, c.S3UseSSL)
	setDuration(&config.PhotoURLValidityDuration, c.PhotoURLValidityDuration)
	setValue(&config.PhotoMaxSide, c.PhotoMaxSide)
	setValue(&config.PhotoJPEGQuality, c.PhotoJPEGQuality)
	setValue(&config.MaxUploadBytes, c.MaxUploadBytes)

	setString(&config.SMTPHost, c.SMTPHost)
	setValue(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.PublicBaseURL, c.PublicBaseURL)

	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setValue(&config.RedisDB, c.RedisDB)
	setValue(&config.ContactLimit, c.ContactLimit)
	setDuration(&config.ContactWindow, c.ContactWindow)

	setValue(&config.RateLimitRPM, c.RateLimitRPM)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
