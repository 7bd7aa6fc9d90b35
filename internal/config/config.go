// Package config reads medhub's settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nexusmedic/medhub/pkg/client"
)

const (
	apiURLVar     = "MEDHUB_API_URL"
	homeVar       = "MEDHUB_HOME"
	logLevelVar   = "MEDHUB_LOG_LEVEL"
	portalURLVar  = "MEDHUB_PORTAL_URL"
	timeoutVar    = "MEDHUB_TIMEOUT"
	rateLimitVar  = "MEDHUB_RATE_LIMIT"
	devAPIAddrVar = "MEDHUB_DEVAPI_ADDR"
	devAPIKeyVar  = "MEDHUB_DEVAPI_SECRET"
)

// Config is the resolved configuration for one run.
type Config struct {
	APIURL    string
	Home      string
	LogLevel  string
	PortalURL string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited

	DevAPIAddr   string
	DevAPISecret string
}

// CredentialsPath is the credentials file under Home.
func (c Config) CredentialsPath() string {
	return filepath.Join(c.Home, "credentials.json")
}

// LogPath is the log file under Home.
func (c Config) LogPath() string {
	return filepath.Join(c.Home, "medhub.log")
}

// Load resolves every setting, applying defaults for unset variables.
func Load() (Config, error) {
	home, err := homeDir()
	if err != nil {
		return Config{}, err
	}
	timeout, err := GetDuration(timeoutVar, client.DefaultTimeout)
	if err != nil {
		return Config{}, err
	}
	rps, err := GetFloat(rateLimitVar, 10)
	if err != nil {
		return Config{}, err
	}
	return Config{
		APIURL:       GetEnv(apiURLVar, client.DefaultBaseURL),
		Home:         home,
		LogLevel:     GetEnv(logLevelVar, "info"),
		PortalURL:    GetEnv(portalURLVar, "http://localhost:5173"),
		Timeout:      timeout,
		RateLimit:    rps,
		DevAPIAddr:   GetEnv(devAPIAddrVar, "127.0.0.1:3000"),
		DevAPISecret: GetEnv(devAPIKeyVar, "medhub-dev-secret"),
	}, nil
}

func homeDir() (string, error) {
	if dir := os.Getenv(homeVar); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".medhub"), nil
}

// GetEnv returns the variable's value, or defaultValue when it is unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration parses a Go duration ("15s") or a bare number of seconds.
func GetDuration(envVar string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envVar, err)
	}
	return d, nil
}

// GetFloat parses a float variable.
func GetFloat(envVar string, defaultValue float64) (float64, error) {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", envVar, err)
	}
	return f, nil
}
