package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"OpportunityMonitor/internal/domain"
)

const (
	defaultConfigPath = "sources.yml"
	defaultDBPath     = "data/seen.sqlite3"
	defaultTimezone   = "UTC"
	defaultSMTPPort   = 587

	configPathEnv = "MONITOR_CONFIG"
	dbPathEnv     = "DB_PATH"
	dbDriverEnv   = "DATABASE_DRIVER"
	logLevelEnv   = "LOG_LEVEL"
	smtpHostEnv   = "SMTP_HOST"
	smtpPortEnv   = "SMTP_PORT"
	smtpUserEnv   = "SMTP_USER"
	smtpPassEnv   = "SMTP_PASS"
	mailFromEnv   = "MAIL_FROM"
	mailToEnv     = "MAIL_TO"
)

// Config holds every setting the monitor needs.
type Config struct {
	Sources   []SourceConfig  `yaml:"sources"`
	Keywords  *KeywordsConfig `yaml:"keywords"`
	Email     EmailConfig     `yaml:"email"`
	Database  DatabaseConfig  `yaml:"database"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	SMTP      SMTPConfig      `yaml:"-"`
}

// SourceConfig describes a single feed.
type SourceConfig struct {
	Name string   `yaml:"name"`
	Type string   `yaml:"type"`
	URL  string   `yaml:"url"`
	Tags []string `yaml:"tags"`
}

// KeywordsConfig is the three-tier keyword policy. A nil MustHaveAny means
// the key was absent; an explicit empty list accepts every non-excluded entry.
type KeywordsConfig struct {
	ExcludeAny    []string `yaml:"exclude_any"`
	MustHaveAny   []string `yaml:"must_have_any"`
	NiceToHaveAny []string `yaml:"nice_to_have_any"`
}

// EmailConfig shapes the digest.
type EmailConfig struct {
	SubjectPrefix string `yaml:"subject_prefix"`
	MaxItems      int    `yaml:"max_items"`
	SkipEmpty     bool   `yaml:"skip_empty"`
}

// DatabaseConfig selects the seen-ledger backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// FetchConfig bounds feed retrieval.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
	MaxEntries  int           `yaml:"max_entries"`
	Concurrency int           `yaml:"concurrency"`
}

// SchedulerConfig defines when watch mode runs the pipeline.
type SchedulerConfig struct {
	Cron     string         `yaml:"cron"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.UTC
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SMTPConfig comes from the environment only.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// Policy converts the keyword section into the scoring policy.
func (c Config) Policy() domain.KeywordPolicy {
	if c.Keywords == nil {
		return domain.KeywordPolicy{}
	}
	return domain.KeywordPolicy{
		ExcludeAny:    c.Keywords.ExcludeAny,
		MustHaveAny:   c.Keywords.MustHaveAny,
		NiceToHaveAny: c.Keywords.NiceToHaveAny,
	}
}

// DomainSources converts configured sources into pipeline sources.
func (c Config) DomainSources() []domain.Source {
	out := make([]domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, domain.Source{
			Name: s.Name,
			Type: strings.ToLower(strings.TrimSpace(s.Type)),
			URL:  s.URL,
			Tags: s.Tags,
		})
	}
	return out
}

// Load reads the YAML file at path (or $MONITOR_CONFIG, or sources.yml),
// applies defaults and environment overrides, and validates the result.
// A .env file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	env := newEnv()
	if path == "" {
		path = env.GetString("config")
	}
	if path == "" {
		path = defaultConfigPath
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, eris.Wrapf(err, "config: read %s", path)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, eris.Wrapf(err, "config: %s", path)
	}

	cfg.applyEnv(env)
	cfg.bindTimezone()

	if err := cfg.Validate(); err != nil {
		return Config{}, eris.Wrapf(err, "config: %s is invalid", path)
	}
	return cfg, nil
}

// Parse decodes raw YAML strictly and fills defaults. It does not validate.
func Parse(raw []byte) (Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, eris.Wrap(err, "decode yaml")
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if len(c.Sources) == 0 {
		add("sources: at least one source is required")
	}
	for i, s := range c.Sources {
		if strings.TrimSpace(s.Name) == "" {
			add("sources[%d].name is required", i)
		}
		if strings.TrimSpace(s.Type) == "" {
			add("sources[%d].type is required", i)
		}
		if strings.TrimSpace(s.URL) == "" {
			add("sources[%d].url is required", i)
		}
	}

	if c.Keywords == nil {
		add("keywords section is required")
	} else {
		if c.Keywords.MustHaveAny == nil {
			add("keywords.must_have_any is required (use [] to accept every entry)")
		}
		checkPhrases := func(field string, phrases []string) {
			for i, p := range phrases {
				if strings.TrimSpace(p) == "" {
					add("keywords.%s[%d] is empty", field, i)
				}
			}
		}
		checkPhrases("exclude_any", c.Keywords.ExcludeAny)
		checkPhrases("must_have_any", c.Keywords.MustHaveAny)
		checkPhrases("nice_to_have_any", c.Keywords.NiceToHaveAny)
	}

	if strings.TrimSpace(c.Email.SubjectPrefix) == "" {
		add("email.subject_prefix is required")
	}
	if c.Email.MaxItems <= 0 {
		add("email.max_items must be positive, got %d", c.Email.MaxItems)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		add("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		add("database.dsn is required")
	}

	if c.Fetch.MaxEntries <= 0 {
		add("fetch.max_entries must be positive, got %d", c.Fetch.MaxEntries)
	}
	if c.Fetch.Concurrency <= 0 {
		add("fetch.concurrency must be positive, got %d", c.Fetch.Concurrency)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		add("scheduler.timezone %q: %v", c.Scheduler.Timezone, err)
	}

	return errors.Join(errs...)
}

// ValidateDelivery checks the SMTP settings needed to send mail.
func (c Config) ValidateDelivery() error {
	var errs []error
	required := map[string]string{
		smtpHostEnv: c.SMTP.Host,
		smtpUserEnv: c.SMTP.Username,
		smtpPassEnv: c.SMTP.Password,
		mailFromEnv: c.SMTP.From,
	}
	for _, key := range []string{smtpHostEnv, smtpUserEnv, smtpPassEnv, mailFromEnv} {
		if required[key] == "" {
			errs = append(errs, fmt.Errorf("%s is not set", key))
		}
	}
	if c.SMTP.Port <= 0 {
		errs = append(errs, fmt.Errorf("%s must be a positive port", smtpPortEnv))
	}
	if len(c.SMTP.To) == 0 {
		errs = append(errs, fmt.Errorf("%s is not set", mailToEnv))
	}
	return errors.Join(errs...)
}

func newEnv() *viper.Viper {
	v := viper.New()
	bind := func(key, env string) {
		_ = v.BindEnv(key, env)
	}
	bind("config", configPathEnv)
	bind("db.path", dbPathEnv)
	bind("db.driver", dbDriverEnv)
	bind("log.level", logLevelEnv)
	bind("smtp.host", smtpHostEnv)
	bind("smtp.port", smtpPortEnv)
	bind("smtp.user", smtpUserEnv)
	bind("smtp.pass", smtpPassEnv)
	bind("mail.from", mailFromEnv)
	bind("mail.to", mailToEnv)
	v.SetDefault("smtp.port", defaultSMTPPort)
	return v
}

func (c *Config) applyEnv(v *viper.Viper) {
	if p := v.GetString("db.path"); p != "" {
		c.Database.DSN = p
	}
	if d := v.GetString("db.driver"); d != "" {
		c.Database.Driver = strings.ToLower(d)
	}
	if l := v.GetString("log.level"); l != "" {
		c.Logging.Level = l
	}

	c.SMTP = SMTPConfig{
		Host:     v.GetString("smtp.host"),
		Port:     v.GetInt("smtp.port"),
		Username: v.GetString("smtp.user"),
		Password: v.GetString("smtp.pass"),
		From:     v.GetString("mail.from"),
		To:       splitList(v.GetString("mail.to")),
	}
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = defaultDBPath
	}
	if c.Fetch.Timeout <= 0 {
		c.Fetch.Timeout = 20 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "OpportunityMonitor/1.0"
	}
	if c.Fetch.MaxEntries == 0 {
		c.Fetch.MaxEntries = 200
	}
	if c.Fetch.Concurrency == 0 {
		c.Fetch.Concurrency = 4
	}
	if c.Scheduler.Cron == "" {
		c.Scheduler.Cron = "0 7 * * *"
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = defaultTimezone
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) bindTimezone() {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return
	}
	c.Scheduler.location = loc
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
