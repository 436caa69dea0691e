package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/xtouch/internal/flagx"
)

var flagNames = []string{
	"-a", "-d", "-s", "-t", "-r",
	"-o", "-u", "-p", "-b", "-g", "-e",
	"-m", "-w", "-redis", "-rpm", "-log-format", "-log-level",
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string          HTTP bind address (e.g., ":8001")
//	-d string          PostgreSQL DSN
//	-s string          JWT HMAC secret key
//	-t int             access token validity, minutes
//	-r int             refresh token validity, minutes
//	-o string          storage driver: s3 or minio
//	-u string          S3 root user
//	-p string          S3 root password
//	-b string          S3 bucket name
//	-g string          S3 region
//	-e string          S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-m string          SMTP host
//	-w string          public base URL used in email links
//	-redis string      Redis address for contact throttling
//	-rpm int           per-IP requests per minute, 0 disables
//	-log-format string json, text or zap
//	-log-level string  debug, info, warn or error
//
// Duration flags are integers in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], flagNames)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.StorageDriver, "o", config.StorageDriver, "object storage driver (s3|minio)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.SMTPHost, "m", config.SMTPHost, "SMTP host")
	fs.StringVar(&config.PublicBaseURL, "w", config.PublicBaseURL, "public base URL")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.IntVar(&config.RateLimitRPM, "rpm", config.RateLimitRPM, "requests per minute per client IP")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format (json|text|zap)")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
}
