package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/xtouch/internal/flagx"
	"github.com/joho/godotenv"
)

// envPrefix namespaces every variable read by parseEnv.
const envPrefix = "XTOUCH_"

// parseEnv overlays values from XTOUCH_* environment variables. A .env file
// is loaded first: the path given with -env, or ./.env when present. Variables
// already set in the process environment are not overridden by the file.
// Unset or malformed variables leave the current value untouched.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlag(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else {
		_ = godotenv.Load()
	}

	envString(&config.HTTPAddr, "HTTP_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "SECRET_KEY")
	envDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL")
	envDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_TTL")

	envString(&config.StorageDriver, "STORAGE_DRIVER")
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envBool(&config.S3UseSSL, "S3_USE_SSL")
	envDuration(&config.PhotoURLValidityDuration, "PHOTO_URL_TTL")
	envInt(&config.PhotoMaxSide, "PHOTO_MAX_SIDE")
	envInt(&config.PhotoJPEGQuality, "PHOTO_JPEG_QUALITY")
	envInt64(&config.MaxUploadBytes, "MAX_UPLOAD_BYTES")

	envString(&config.SMTPHost, "SMTP_HOST")
	envInt(&config.SMTPPort, "SMTP_PORT")
	envString(&config.SMTPUser, "SMTP_USER")
	envString(&config.SMTPPassword, "SMTP_PASSWORD")
	envString(&config.MailFrom, "MAIL_FROM")
	envString(&config.PublicBaseURL, "PUBLIC_BASE_URL")

	envString(&config.RedisAddr, "REDIS_ADDR")
	envString(&config.RedisPassword, "REDIS_PASSWORD")
	envInt(&config.RedisDB, "REDIS_DB")
	envInt(&config.ContactLimit, "CONTACT_LIMIT")
	envDuration(&config.ContactWindow, "CONTACT_WINDOW")

	envInt(&config.RateLimitRPM, "RATE_LIMIT_RPM")
	envString(&config.LogFormat, "LOG_FORMAT")
	envString(&config.LogLevel, "LOG_LEVEL")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func envString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(dst *int64, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
