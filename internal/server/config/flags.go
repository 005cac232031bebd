package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/userportal/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     HTTP bind address (e.g. ":8081")
//	-u string     public base URL used in profile image links
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret
//	-t duration   token lifetime (e.g. "120h")
//	-r string     Redis address; selects the redis attempt backend
//	-i string     image directory for the fs backend
//	-b string     S3 bucket; selects the s3 image backend
//	-m string     SMTP host
//	-l string     log level
//
// Only the flags listed here are parsed, so other components can share
// os.Args.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-u", "-d", "-s", "-t", "-r", "-i", "-b", "-m", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.BaseURL, "u", config.BaseURL, "public base URL")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "JWT secret")
	fs.DurationVar(&config.TokenLifetime, "t", config.TokenLifetime, "token lifetime")
	redisAddr := fs.String("r", "", "redis address for login attempt tracking")
	fs.StringVar(&config.ImageDir, "i", config.ImageDir, "profile image directory")
	bucket := fs.String("b", "", "S3 bucket for profile images")
	fs.StringVar(&config.SMTPHost, "m", config.SMTPHost, "SMTP host")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *redisAddr != "" {
		config.RedisAddr = *redisAddr
		config.AttemptsBackend = BackendRedis
	}
	if *bucket != "" {
		config.S3Bucket = *bucket
		config.ImageBackend = BackendS3
	}
}
