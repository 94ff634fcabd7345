package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// parseEnv overlays Config from ACCOUNTCTL_SERVER_URL and
// ACCOUNTCTL_TIMEOUT (seconds). It panics on a malformed timeout.
func parseEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ACCOUNTCTL_SERVER_URL")); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ACCOUNTCTL_TIMEOUT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		cfg.RequestTimeout = time.Duration(n) * time.Second
	}
}
