// Package config loads runtime configuration for accountctl.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. ACCOUNTCTL_SERVER_URL and ACCOUNTCTL_TIMEOUT (seconds).
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the account backend
//	-t int      request timeout (seconds)
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "request_timeout": "10s"
//	}
package config
