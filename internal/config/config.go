package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	LDAP     LDAPConfig     `yaml:"ldap"`
	Owner    OwnerConfig    `yaml:"owner"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Redis    RedisConfig    `yaml:"redis"`
	Triage   TriageConfig   `yaml:"triage"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Alerts   AlertConfig    `yaml:"alerts"`
	Drafting DraftingConfig `yaml:"drafting"`
	Reports  ReportConfig   `yaml:"reports"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
	// Public QR submission endpoint throttling
	PublicRPS   float64 `yaml:"public_rps"`
	PublicBurst int     `yaml:"public_burst"`
	// Empty allows any origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json; empty picks by level
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret"`
	ExpireHour        int    `yaml:"expire_hour"`
	RefreshExpireHour int    `yaml:"refresh_expire_hour"`
}

// LDAPConfig enables directory sign-in for managers. The directory only
// verifies the password; the manager row must already exist.
type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
	SkipVerify   bool   `yaml:"skip_verify"`
}

// OwnerConfig seeds the first property and its owner on an empty database.
type OwnerConfig struct {
	TenantName string `yaml:"tenant_name"`
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
}

// OpenAIConfig is the drafting fallback used when no LLM config row is active.
type OpenAIConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TriageConfig struct {
	AckWindow            time.Duration `yaml:"ack_window"`
	ResolveWindow        time.Duration `yaml:"resolve_window"`
	WarningRatio         float64       `yaml:"warning_ratio"`
	HighImpactCategories []string      `yaml:"high_impact_categories"`
}

type RecoveryConfig struct {
	TargetAverage float64 `yaml:"target_average"`
	// ConversionCaps is keyed by star value (1-4).
	ConversionCaps map[int]int `yaml:"conversion_caps"`
}

type AlertConfig struct {
	ComplaintWindow    time.Duration `yaml:"complaint_window"`
	ComplaintMaxRating int           `yaml:"complaint_max_rating"`
	FreshnessThreshold time.Duration `yaml:"freshness_threshold"`
}

type DraftingConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	AutoDraft     bool          `yaml:"auto_draft"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxAttempts   int           `yaml:"max_attempts"`
}

type ReportConfig struct {
	MorningCron  string       `yaml:"morning_cron"`
	WeeklyCron   string       `yaml:"weekly_cron"`
	CriticalCron string       `yaml:"critical_cron"`
	SLASweepCron string       `yaml:"sla_sweep_cron"`
	Departments  []Department `yaml:"departments"`
}

// Department groups feedback categories for the weekly digest.
type Department struct {
	Name       string   `yaml:"name" json:"name"`
	Categories []string `yaml:"categories" json:"categories"`
}

// Load reads configPath over the defaults, applies environment overrides
// and validates the result. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        "8080",
			Mode:        "debug",
			PublicRPS:   2,
			PublicBurst: 5,
		},
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "staysignal.db",
		},
		JWT: JWTConfig{
			Secret:            "staysignal-secret-key-change-in-production",
			ExpireHour:        24,
			RefreshExpireHour: 720,
		},
		LDAP: LDAPConfig{
			Enabled:    false,
			Port:       389,
			UserFilter: "(mail=%s)",
		},
		Owner: OwnerConfig{
			TenantName: "Default Property",
			Email:      "owner@staysignal.local",
			Password:   "change-me-now",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Triage: TriageConfig{
			AckWindow:            30 * time.Minute,
			ResolveWindow:        24 * time.Hour,
			WarningRatio:         0.8,
			HighImpactCategories: []string{"Housekeeping", "Maintenance", "Safety", "Cleanliness"},
		},
		Recovery: RecoveryConfig{
			TargetAverage:  4.5,
			ConversionCaps: map[int]int{4: 10, 3: 15, 2: 5, 1: 5},
		},
		Alerts: AlertConfig{
			ComplaintWindow:    24 * time.Hour,
			ComplaintMaxRating: 3,
			FreshnessThreshold: 8 * time.Hour,
		},
		Drafting: DraftingConfig{
			Timeout:       45 * time.Second,
			AutoDraft:     true,
			RetryInterval: 10 * time.Minute,
			MaxAttempts:   3,
		},
		Reports: ReportConfig{
			MorningCron:  "0 7 * * *",
			WeeklyCron:   "0 8 * * 1",
			CriticalCron: "*/30 * * * *",
			SLASweepCron: "*/5 * * * *",
			Departments: []Department{
				{Name: "Rooms", Categories: []string{"Housekeeping", "Room", "Cleanliness"}},
				{Name: "Front Office", Categories: []string{"Front Desk", "Check-in", "Reception"}},
				{Name: "Food & Beverage", Categories: []string{"Breakfast", "Restaurant", "Bar", "Room Service"}},
				{Name: "Engineering", Categories: []string{"Maintenance", "WiFi", "Plumbing"}},
				{Name: "Guest Services", Categories: []string{"Service", "Staff", "Concierge"}},
			},
		},
	}
}

// applyEnv overlays the deployment environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SERVER_HOST":        &c.Server.Host,
		"SERVER_PORT":        &c.Server.Port,
		"SERVER_MODE":        &c.Server.Mode,
		"LOG_LEVEL":          &c.Log.Level,
		"LOG_FORMAT":         &c.Log.Format,
		"DB_DRIVER":          &c.Database.Driver,
		"DB_DSN":             &c.Database.DSN,
		"JWT_SECRET":         &c.JWT.Secret,
		"OWNER_PASSWORD":     &c.Owner.Password,
		"LDAP_BIND_PASSWORD": &c.LDAP.BindPassword,
		"OPENAI_BASE_URL":    &c.OpenAI.BaseURL,
		"OPENAI_API_KEY":     &c.OpenAI.APIKey,
		"OPENAI_MODEL":       &c.OpenAI.Model,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, origin)
			}
		}
	}
	if v, ok := lookup("DRAFTING_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DRAFTING_TIMEOUT: %w", err)
		}
		c.Drafting.Timeout = d
	}
	if v, ok := lookup("REDIS_URL"); ok && v != "" {
		if err := c.Redis.setURL(v); err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
	}
	return nil
}

// setURL enables Redis from redis://[user:password@]host:port[/db].
func (r *RedisConfig) setURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}

	r.Enabled = true
	r.Addr = u.Host
	if pw, ok := u.User.Password(); ok {
		r.Password = pw
	}
	if db := strings.Trim(u.Path, "/"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("db %q: %w", db, err)
		}
		r.DB = n
	}
	return nil
}

// Validate rejects settings the triage and reporting engines cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}

	t := c.Triage
	check(t.AckWindow > 0, "triage.ack_window must be positive")
	check(t.ResolveWindow > t.AckWindow, "triage.resolve_window must be longer than ack_window")
	check(t.WarningRatio > 0 && t.WarningRatio < 1, "triage.warning_ratio must be between 0 and 1")

	check(c.Recovery.TargetAverage > 1 && c.Recovery.TargetAverage <= 5, "recovery.target_average must be in (1, 5]")
	for stars := range c.Recovery.ConversionCaps {
		check(stars >= 1 && stars <= 4, "recovery.conversion_caps has invalid star value %d", stars)
	}

	check(c.Alerts.ComplaintMaxRating >= 1 && c.Alerts.ComplaintMaxRating <= 5, "alerts.complaint_max_rating must be 1-5")
	check(c.Alerts.ComplaintWindow > 0, "alerts.complaint_window must be positive")
	check(c.Drafting.MaxAttempts >= 1, "drafting.max_attempts must be at least 1")
	check(len(c.Owner.Password) >= 6, "owner.password must be at least 6 characters")

	specs := map[string]string{
		"morning_cron":   c.Reports.MorningCron,
		"weekly_cron":    c.Reports.WeeklyCron,
		"critical_cron":  c.Reports.CriticalCron,
		"sla_sweep_cron": c.Reports.SLASweepCron,
	}
	for name, spec := range specs {
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("reports.%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
