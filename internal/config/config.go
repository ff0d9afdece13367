package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/couchcryptid/hazard-services/internal/domain"
)

// Config holds all daemon settings, populated from HAZARD_* environment
// variables. Site localization lives in the bridge's overlay tree, not here;
// this is only the process-level wiring.
type Config struct {
	SiteID      string `koanf:"site_id"`
	Mode        domain.Mode
	ConfigRoot  string `koanf:"config_root"`
	DataRoot    string `koanf:"data_root"`
	User        string `koanf:"user"`
	Workstation string `koanf:"workstation"`

	KafkaBrokers      []string
	KafkaProductTopic string `koanf:"kafka_product_topic"`
	DisseminateOn     bool

	HTTPAddr        string `koanf:"http_addr"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
	ShutdownTimeout time.Duration

	CycleInterval time.Duration
	SweepInterval time.Duration
	PurgeWindow   time.Duration
}

var defaults = map[string]any{
	"mode":                "operational",
	"config_root":         "/etc/hazard-services",
	"data_root":           "/var/lib/hazard-services",
	"kafka_brokers":       "localhost:9092",
	"kafka_product_topic": "hazard-products",
	"disseminate":         "true",
	"http_addr":           ":8080",
	"log_level":           "info",
	"log_format":          "json",
	"shutdown_timeout":    "10s",
	"cycle_interval":      "30s",
	"sweep_interval":      "5m",
	"purge_window":        "30m",
}

// Load reads configuration from HAZARD_* environment variables, applying
// defaults where unset. HAZARD_SITE_ID maps to site_id and so on.
func Load() (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}
	if err := k.Load(env.Provider("HAZARD_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "HAZARD_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Mode = domain.Mode(k.String("mode"))
	cfg.KafkaBrokers = parseBrokers(k.String("kafka_brokers"))
	cfg.DisseminateOn = k.String("disseminate") == "true"
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	if cfg.Workstation == "" {
		cfg.Workstation, _ = os.Hostname()
	}

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"shutdown_timeout", &cfg.ShutdownTimeout},
		{"cycle_interval", &cfg.CycleInterval},
		{"sweep_interval", &cfg.SweepInterval},
		{"purge_window", &cfg.PurgeWindow},
	} {
		dur, err := time.ParseDuration(k.String(d.key))
		if err != nil || dur <= 0 {
			return nil, fmt.Errorf("invalid HAZARD_%s", strings.ToUpper(d.key))
		}
		*d.dst = dur
	}

	if len(cfg.SiteID) != 4 {
		return nil, errors.New("HAZARD_SITE_ID is required and must be a four-character office id")
	}
	switch cfg.Mode {
	case domain.ModeOperational, domain.ModePractice, domain.ModeTest:
	default:
		return nil, fmt.Errorf("HAZARD_MODE %q must be operational, practice, or test", cfg.Mode)
	}
	if cfg.DisseminateOn && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("HAZARD_KAFKA_BROKERS is required when dissemination is enabled")
	}

	return &cfg, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
