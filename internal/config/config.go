// Package config loads the palletwatch YAML configuration.
//
// Load applies defaults, decodes the file over them, fills per-category
// defaults, and validates the result against the embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/palletwatch/internal/model"
	"github.com/roach88/palletwatch/internal/remind"
)

//go:embed schema.cue
var schemaSource string

// PasswordEnv overrides smtp.password when set.
const PasswordEnv = "PALLETWATCH_SMTP_PASSWORD"

type MailConfig struct {
	Folder        string `yaml:"folder" json:"folder,omitempty"` // subdirectory of spool_dir
	SpoolDir      string `yaml:"spool_dir" json:"spool_dir"`
	SubjectFilter string `yaml:"subject_filter" json:"subject_filter"`
	LookbackDays  int    `yaml:"lookback_days" json:"lookback_days"`
}

type PollConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds"`
}

type RecordsConfig struct {
	Path   string `yaml:"path" json:"path"`
	Layout string `yaml:"layout" json:"layout"` // row | kv
}

type LedgerConfig struct {
	Backend string `yaml:"backend" json:"backend"` // file | sqlite
	Path    string `yaml:"path" json:"path"`
}

type TableConfig struct {
	Path            string `yaml:"path" json:"path"`
	Sheet           string `yaml:"sheet" json:"sheet"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"` // negative disables
}

type CategoryConfig struct {
	Name         string   `yaml:"name" json:"name"`
	Title        string   `yaml:"title" json:"title,omitempty"`
	Kind         string   `yaml:"kind" json:"kind"`
	Keywords     []string `yaml:"keywords" json:"keywords,omitempty"`
	Recipients   []string `yaml:"recipients" json:"recipients,omitempty"`
	Required     []string `yaml:"required" json:"required,omitempty"`
	NeedDataAt   string   `yaml:"need_data_at" json:"need_data_at"`
	ConfirmPass  *bool    `yaml:"confirm_pass" json:"confirm_pass"`
	ConfirmFrom  *int     `yaml:"confirm_from" json:"confirm_from"`
	ConfirmUntil *int     `yaml:"confirm_until" json:"confirm_until"`
}

type TemplateConfig struct {
	Subject string `yaml:"subject" json:"subject,omitempty"`
	Body    string `yaml:"body" json:"body,omitempty"`
}

type RemindersConfig struct {
	Source        string                    `yaml:"source" json:"source"` // table | events
	WindowMinutes int                       `yaml:"window_minutes" json:"window_minutes"`
	PersistClaims bool                      `yaml:"persist_claims" json:"persist_claims"`
	Excluded      []string                  `yaml:"excluded" json:"excluded,omitempty"`
	Categories    []CategoryConfig          `yaml:"categories" json:"categories,omitempty"`
	Templates     map[string]TemplateConfig `yaml:"templates" json:"templates,omitempty"`
}

type SMTPConfig struct {
	Addr     string `yaml:"addr" json:"addr"` // host:port
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	From     string `yaml:"from" json:"from"`
}

type NotifyConfig struct {
	// RatePerMinute caps reminder sends; the whole allowance may go out in
	// one sweep. A send over the cap is not retried, since its dispatch key
	// is already claimed. 0 disables the cap.
	RatePerMinute int  `yaml:"rate_per_minute" json:"rate_per_minute"`
	DryRun        bool `yaml:"dry_run" json:"dry_run"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"` // empty disables
}

type Config struct {
	Timezone  string          `yaml:"timezone" json:"timezone"`
	Mail      MailConfig      `yaml:"mail" json:"mail"`
	Poll      PollConfig      `yaml:"poll" json:"poll"`
	Records   RecordsConfig   `yaml:"records" json:"records"`
	Ledger    LedgerConfig    `yaml:"ledger" json:"ledger"`
	Table     TableConfig     `yaml:"table" json:"table"`
	Reminders RemindersConfig `yaml:"reminders" json:"reminders"`
	SMTP      SMTPConfig      `yaml:"smtp" json:"smtp"`
	Notify    NotifyConfig    `yaml:"notify" json:"notify"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// Default returns the configuration used for keys the file leaves out.
// table.path has no default.
func Default() Config {
	cats := remind.DefaultCategories()
	categories := make([]CategoryConfig, 0, len(cats))
	for _, c := range cats {
		categories = append(categories, CategoryConfig{
			Name:     c.Name,
			Title:    c.Title,
			Kind:     string(c.Kind),
			Keywords: c.Keywords,
		})
	}
	cfg := Config{
		Timezone: "Europe/Moscow",
		Mail: MailConfig{
			SpoolDir:      "mail",
			SubjectFilter: "Возврат поддонов из сетей",
			LookbackDays:  1,
		},
		Poll:    PollConfig{IntervalSeconds: 60},
		Records: RecordsConfig{Path: "palletwatch.db", Layout: "row"},
		Ledger:  LedgerConfig{Backend: "file", Path: "processed_ids.txt"},
		Table:   TableConfig{Sheet: "приход", CacheTTLSeconds: 300},
		Reminders: RemindersConfig{
			Source:        "table",
			WindowMinutes: 1,
			Excluded:      append([]string(nil), remind.DefaultExcluded...),
			Categories:    categories,
		},
	}
	cfg.applyCategoryDefaults()
	return cfg
}

// ValidationError carries every schema violation of a configuration.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "config: invalid:\n" + cueerrors.Details(e.Err, nil)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Load reads the file at path. Relative paths inside the file are
// resolved against the file's directory.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes and validates a YAML document. Unknown keys are errors.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if pw := os.Getenv(PasswordEnv); pw != "" {
		cfg.SMTP.Password = pw
	}
	cfg.applyCategoryDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyCategoryDefaults() {
	for i := range c.Reminders.Categories {
		cat := &c.Reminders.Categories[i]
		sameDay := cat.Kind == string(remind.SameDay)
		if cat.NeedDataAt == "" {
			if sameDay {
				cat.NeedDataAt = "12:00"
			} else {
				cat.NeedDataAt = "14:00"
			}
		}
		if cat.ConfirmPass == nil {
			v := sameDay
			cat.ConfirmPass = &v
		}
		if cat.ConfirmFrom == nil {
			v := 0
			cat.ConfirmFrom = &v
		}
		if cat.ConfirmUntil == nil {
			v := 23
			cat.ConfirmUntil = &v
		}
	}
}

// Validate checks c against the embedded schema and that the timezone
// is loadable.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config: compile schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Err: err}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	return nil
}

func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.Mail.SpoolDir, &c.Records.Path, &c.Ledger.Path, &c.Table.Path} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// SpoolPath is the directory the mail source reads.
func (c Config) SpoolPath() string {
	if c.Mail.Folder == "" {
		return c.Mail.SpoolDir
	}
	return filepath.Join(c.Mail.SpoolDir, c.Mail.Folder)
}

// Location loads the configured timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

func (c Config) Lookback() time.Duration {
	return time.Duration(c.Mail.LookbackDays) * 24 * time.Hour
}

// CacheTTL maps cache_ttl_seconds onto correlate.Options.CacheTTL: zero
// and negative values disable the cache.
func (c Config) CacheTTL() time.Duration {
	if c.Table.CacheTTLSeconds <= 0 {
		return -1
	}
	return time.Duration(c.Table.CacheTTLSeconds) * time.Second
}

func (c Config) ReminderWindow() time.Duration {
	return time.Duration(c.Reminders.WindowMinutes) * time.Minute
}

// Categories converts the configured categories.
func (c Config) Categories() ([]remind.Category, error) {
	out := make([]remind.Category, 0, len(c.Reminders.Categories))
	for _, cc := range c.Reminders.Categories {
		at, err := model.ParseTimeOfDay(cc.NeedDataAt)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", cc.Name, err)
		}
		cat := remind.Category{
			Name:       cc.Name,
			Title:      cc.Title,
			Kind:       remind.Kind(cc.Kind),
			Keywords:   cc.Keywords,
			Recipients: cc.Recipients,
			NeedDataAt: at,
		}
		for _, r := range cc.Required {
			f, err := model.ParseField(r)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", cc.Name, err)
			}
			cat.Required = append(cat.Required, f)
		}
		if cc.ConfirmPass != nil {
			cat.ConfirmPass = *cc.ConfirmPass
		}
		if cc.ConfirmFrom != nil {
			cat.ConfirmFrom = *cc.ConfirmFrom
		}
		if cc.ConfirmUntil != nil {
			cat.ConfirmUntil = *cc.ConfirmUntil
		}
		out = append(out, cat)
	}
	return out, nil
}

// Renderer returns the reminder renderer with configured template
// overrides applied.
func (c Config) Renderer() (*remind.Renderer, error) {
	r := remind.NewRenderer()
	for name, t := range c.Reminders.Templates {
		if err := r.Parse(name, t.Subject, t.Body); err != nil {
			return nil, err
		}
	}
	return r, nil
}
