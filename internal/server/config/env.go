package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv loads a dotenv file into the process environment and then
// overlays Config from environment variables. The file comes from
// -env-file, else ENV_FILE, else ".env". A missing default file is ignored;
// a missing file that was asked for explicitly panics. Variables already set
// in the environment win over the file.
func parseEnv(config *Config) {
	loadEnvFile()

	setString(&config.EndpointAddrHTTP, os.Getenv("HTTP_ADDR"))
	setString(&config.EndpointAddrGRPC, os.Getenv("GRPC_ADDR"))
	setString(&config.DatabaseDSN, os.Getenv("DATABASE_DSN"))

	setString(&config.JWTSecretKey, os.Getenv("JWT_SECRET_KEY"))
	setString(&config.JWTAlgorithm, os.Getenv("JWT_ALGORITHM"))
	envMinutes(&config.AccessTokenValidityDuration, "JWT_ACCESS_TOKEN_EXPIRES")

	envMinutes(&config.OTPTimeout, "EMAIL_OTP_TIMEOUT")
	envInt(&config.OTPDigits, "OTP_DIGITS")
	envBool(&config.OTPStrictExpiry, "OTP_STRICT_EXPIRY")
	envBool(&config.RequireVerifiedOTP, "REQUIRE_VERIFIED_OTP")

	setString(&config.EmailProvider, os.Getenv("EMAIL_PROVIDER"))
	setString(&config.EmailMode, os.Getenv("EMAIL_MODE"))
	setString(&config.EmailAPIURL, os.Getenv("EMAIL_API_URL"))
	setString(&config.EmailHostToken, os.Getenv("EMAIL_HOST_TOKEN"))
	setString(&config.EmailHostSender, os.Getenv("EMAIL_HOST_SENDER"))
	setString(&config.EmailSenderName, os.Getenv("EMAIL_SENDER_NAME"))
	setString(&config.EmailSandboxInbox, os.Getenv("EMAIL_SANDBOX_INBOX"))

	setString(&config.S3RootUser, os.Getenv("S3_ROOT_USER"))
	setString(&config.S3RootPassword, os.Getenv("S3_ROOT_PASSWORD"))
	setString(&config.S3Bucket, os.Getenv("S3_BUCKET"))
	setString(&config.S3Region, os.Getenv("S3_REGION"))
	setString(&config.S3BaseEndpoint, os.Getenv("S3_BASE_ENDPOINT"))
	setString(&config.S3PublicBaseURL, os.Getenv("S3_PUBLIC_BASE_URL"))
	setString(&config.UploadDir, os.Getenv("UPLOAD_DIR"))

	envList(&config.AllowedOrigins, "ALLOWED_ORIGINS")
	envList(&config.AllowedMethods, "ALLOWED_METHODS")
	envList(&config.AllowedHeaders, "ALLOWED_HEADERS")
	envBool(&config.AllowCredentials, "ALLOW_CREDENTIALS")

	setString(&config.RedisAddr, os.Getenv("REDIS_ADDR"))
	setString(&config.RedisPassword, os.Getenv("REDIS_PASSWORD"))
	envInt(&config.RateLimit, "RATE_LIMIT")
	envMinutes(&config.RateLimitWindow, "RATE_LIMIT_WINDOW")

	setString(&config.LogBackend, os.Getenv("LOG_BACKEND"))
}

func loadEnvFile() {
	path := flagx.EnvFileFlags()
	if path == "" {
		path = os.Getenv("ENV_FILE")
	}
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return
		}
		panic(err)
	}
}

func envInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envMinutes(dst *time.Duration, key string) {
	var n int
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	envInt(&n, key)
	if n > 0 {
		*dst = time.Duration(n) * time.Minute
	}
}

func envBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		panic(err)
	}
	*dst = b
}

// envList reads a comma-separated value, trimming blanks and dropping empty items.
func envList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
