package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/accountkeeper/internal/flagx"
	"github.com/dmitrijs2005/accountkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON decoding. Durations accept "15m" style
// strings or integer nanoseconds. Pointer fields distinguish "absent" from
// "false"/"0" so a partial file only overrides what it names.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`

	JWTSecretKey                string         `json:"jwt_secret_key"`
	JWTAlgorithm                string         `json:"jwt_algorithm"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`

	OTPTimeout         timex.Duration `json:"otp_timeout"`
	OTPDigits          int            `json:"otp_digits"`
	OTPStrictExpiry    *bool          `json:"otp_strict_expiry"`
	RequireVerifiedOTP *bool          `json:"require_verified_otp"`

	EmailProvider     string `json:"email_provider"`
	EmailMode         string `json:"email_mode"`
	EmailAPIURL       string `json:"email_api_url"`
	EmailHostToken    string `json:"email_host_token"`
	EmailHostSender   string `json:"email_host_sender"`
	EmailSenderName   string `json:"email_sender_name"`
	EmailSandboxInbox string `json:"email_sandbox_inbox"`

	S3RootUser      string `json:"s3_root_user"`
	S3RootPassword  string `json:"s3_root_password"`
	S3Bucket        string `json:"s3_bucket"`
	S3Region        string `json:"s3_region"`
	S3BaseEndpoint  string `json:"s3_base_endpoint"`
	S3PublicBaseURL string `json:"s3_public_base_url"`
	UploadDir       string `json:"upload_dir"`

	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials *bool    `json:"allow_credentials"`

	RedisAddr       string         `json:"redis_addr"`
	RedisPassword   string         `json:"redis_password"`
	RateLimit       int            `json:"rate_limit"`
	RateLimitWindow timex.Duration `json:"rate_limit_window"`

	LogBackend string `json:"log_backend"`
}

// parseJson overlays values from the JSON file named by -c/-config.
// Without the flag nothing is loaded. An unreadable or invalid file panics,
// since the service must not start on a half-applied configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	c.applyTo(config)
}

func (c *JsonConfig) applyTo(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)

	setString(&config.JWTSecretKey, c.JWTSecretKey)
	setString(&config.JWTAlgorithm, c.JWTAlgorithm)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}

	if c.OTPTimeout.Duration > 0 {
		config.OTPTimeout = c.OTPTimeout.Duration
	}
	if c.OTPDigits > 0 {
		config.OTPDigits = c.OTPDigits
	}
	setBool(&config.OTPStrictExpiry, c.OTPStrictExpiry)
	setBool(&config.RequireVerifiedOTP, c.RequireVerifiedOTP)

	setString(&config.EmailProvider, c.EmailProvider)
	setString(&config.EmailMode, c.EmailMode)
	setString(&config.EmailAPIURL, c.EmailAPIURL)
	setString(&config.EmailHostToken, c.EmailHostToken)
	setString(&config.EmailHostSender, c.EmailHostSender)
	setString(&config.EmailSenderName, c.EmailSenderName)
	setString(&config.EmailSandboxInbox, c.EmailSandboxInbox)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	setString(&config.UploadDir, c.UploadDir)

	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
	if len(c.AllowedMethods) > 0 {
		config.AllowedMethods = c.AllowedMethods
	}
	if len(c.AllowedHeaders) > 0 {
		config.AllowedHeaders = c.AllowedHeaders
	}
	setBool(&config.AllowCredentials, c.AllowCredentials)

	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RateLimit > 0 {
		config.RateLimit = c.RateLimit
	}
	if c.RateLimitWindow.Duration > 0 {
		config.RateLimitWindow = c.RateLimitWindow.Duration
	}

	setString(&config.LogBackend, c.LogBackend)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
