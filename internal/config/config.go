package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	DispatchEnabled    bool
	DispatchInterval   time.Duration
	DispatchLocation   *time.Location
	DispatchMaxCatchUp time.Duration
	SendTimeout        time.Duration

	LogLevel  string
	LogPretty bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", "127.0.0.1:8080"),
		DatabaseURL:          getenv("DATABASE_URL", ""),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		DispatchEnabled:      getenv("DISPATCH_ENABLED", "true") == "true",
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogPretty:            getenv("LOG_PRETTY", "false") == "true",
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("missing env: DATABASE_URL")
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	var err error
	if cfg.DispatchInterval, err = getDuration("DISPATCH_INTERVAL", 5*time.Minute, false); err != nil {
		return cfg, err
	}
	if cfg.DispatchMaxCatchUp, err = getDuration("DISPATCH_MAX_CATCHUP", 30*time.Minute, true); err != nil {
		return cfg, err
	}
	if cfg.SendTimeout, err = getDuration("SEND_TIMEOUT", 30*time.Second, false); err != nil {
		return cfg, err
	}

	tz := getenv("DISPATCH_TIMEZONE", "Asia/Tokyo")
	if cfg.DispatchLocation, err = time.LoadLocation(tz); err != nil {
		return cfg, fmt.Errorf("invalid DISPATCH_TIMEZONE %q: %w", tz, err)
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// getDuration parses a Go duration. Zero is accepted only with allowZero;
// negative values never are.
func getDuration(key string, def time.Duration, allowZero bool) (time.Duration, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}
