package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paytime/internal/work"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "PAYTIME_CONFIG"

const dateLayout = "2006-01-02"

type Config struct {
	Timezone      string  `yaml:"Timezone"`
	MaxShiftHours float64 `yaml:"MaxShiftHours"`
	LogLevel      string  `yaml:"LogLevel"`

	Rules Rules `yaml:"Rules"`
}

// Rules mirrors work.Policy. Zero values fall back to the stock rules.
type Rules struct {
	WeekendMultiplier string   `yaml:"WeekendMultiplier"`
	WeekendDays       []string `yaml:"WeekendDays"`

	MealGraceMinutes int `yaml:"MealGraceMinutes"`
	MealBlockMinutes int `yaml:"MealBlockMinutes"`
	MealBreakMinutes int `yaml:"MealBreakMinutes"`

	RestBlockMinutes    int `yaml:"RestBlockMinutes"`
	RestCreditMinutes   int `yaml:"RestCreditMinutes"`
	RestGraceMinutes    int `yaml:"RestGraceMinutes"`
	RestIntervalMinutes int `yaml:"RestIntervalMinutes"`
	RestBreakMinutes    int `yaml:"RestBreakMinutes"`

	NightBonusSince   string `yaml:"NightBonusSince"`
	NightBonusRate    string `yaml:"NightBonusRate"`
	MorningShiftEnd   string `yaml:"MorningShiftEnd"`
	EveningShiftStart string `yaml:"EveningShiftStart"`
}

func Load() (*Config, error) {
	return LoadFile(getConfigPath())
}

// LoadFile reads the YAML config at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return getDefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Apply defaults for missing values
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.MaxShiftHours == 0 {
		cfg.MaxShiftHours = 26
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.Rules.applyDefaults()

	return &cfg, nil
}

func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func getConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".paytime.yaml")
}

func getDefaultConfig() *Config {
	cfg := &Config{
		Timezone:      "Local",
		MaxShiftHours: 26,
		LogLevel:      "info",
	}
	cfg.Rules.applyDefaults()
	return cfg
}

func (r *Rules) applyDefaults() {
	if r.WeekendMultiplier == "" {
		r.WeekendMultiplier = work.DefaultWeekendMultiplier.String()
	}
	if len(r.WeekendDays) == 0 {
		r.WeekendDays = []string{"Saturday", "Sunday"}
	}
	if r.MealGraceMinutes == 0 {
		r.MealGraceMinutes = work.DefaultMealGraceMinutes
	}
	if r.MealBlockMinutes == 0 {
		r.MealBlockMinutes = work.DefaultMealBlockMinutes
	}
	if r.MealBreakMinutes == 0 {
		r.MealBreakMinutes = work.DefaultMealBreakMinutes
	}
	if r.RestBlockMinutes == 0 {
		r.RestBlockMinutes = work.DefaultRestBlockMinutes
	}
	if r.RestCreditMinutes == 0 {
		r.RestCreditMinutes = work.DefaultRestCreditMinutes
	}
	if r.RestGraceMinutes == 0 {
		r.RestGraceMinutes = work.DefaultRestGraceMinutes
	}
	if r.RestIntervalMinutes == 0 {
		r.RestIntervalMinutes = work.DefaultRestIntervalMinutes
	}
	if r.RestBreakMinutes == 0 {
		r.RestBreakMinutes = work.DefaultRestBreakMinutes
	}
	if r.NightBonusSince == "" {
		r.NightBonusSince = "2017-01-01"
	}
	if r.NightBonusRate == "" {
		r.NightBonusRate = work.DefaultNightBonusRate.String()
	}
	if r.MorningShiftEnd == "" {
		r.MorningShiftEnd = "06:00"
	}
	if r.EveningShiftStart == "" {
		r.EveningShiftStart = "22:00"
	}
}

// GetLocation returns the zone all calendar reasoning happens in.
func (c *Config) GetLocation() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// MaxShift is the longest an arrival may stay open before a leaving stops closing it.
func (c *Config) MaxShift() time.Duration {
	return time.Duration(c.MaxShiftHours * float64(time.Hour))
}

// Policy builds the calculator rules described by the config.
func (c *Config) Policy() (work.Policy, error) {
	loc := c.GetLocation()
	policy := work.DefaultPolicy(loc)
	r := c.Rules

	var err error
	if policy.WeekendMultiplier, err = decimal.NewFromString(r.WeekendMultiplier); err != nil {
		return work.Policy{}, &ValidationError{Field: "WeekendMultiplier", Message: err.Error()}
	}
	if policy.NightBonusRate, err = decimal.NewFromString(r.NightBonusRate); err != nil {
		return work.Policy{}, &ValidationError{Field: "NightBonusRate", Message: err.Error()}
	}
	if policy.NightBonusSince, err = time.ParseInLocation(dateLayout, r.NightBonusSince, loc); err != nil {
		return work.Policy{}, &ValidationError{Field: "NightBonusSince", Message: "use YYYY-MM-DD"}
	}
	if policy.MorningShiftEnd, err = parseClock(r.MorningShiftEnd); err != nil {
		return work.Policy{}, &ValidationError{Field: "MorningShiftEnd", Message: err.Error()}
	}
	if policy.EveningShiftStart, err = parseClock(r.EveningShiftStart); err != nil {
		return work.Policy{}, &ValidationError{Field: "EveningShiftStart", Message: err.Error()}
	}

	policy.WeekendDays = policy.WeekendDays[:0:0]
	for _, name := range r.WeekendDays {
		day, ok := parseWeekday(name)
		if !ok {
			return work.Policy{}, &ValidationError{Field: "WeekendDays", Message: fmt.Sprintf("unknown weekday %q", name)}
		}
		policy.WeekendDays = append(policy.WeekendDays, day)
	}

	policy.MealGraceMinutes = r.MealGraceMinutes
	policy.MealBlockMinutes = r.MealBlockMinutes
	policy.MealBreakMinutes = r.MealBreakMinutes
	policy.RestBlockMinutes = r.RestBlockMinutes
	policy.RestCreditMinutes = r.RestCreditMinutes
	policy.RestGraceMinutes = r.RestGraceMinutes
	policy.RestIntervalMinutes = r.RestIntervalMinutes
	policy.RestBreakMinutes = r.RestBreakMinutes

	if err := policy.Validate(); err != nil {
		return work.Policy{}, &ValidationError{Field: "Rules", Message: err.Error()}
	}
	return policy, nil
}

// parseClock turns "HH:MM" into an offset from midnight; "24:00" is allowed.
func parseClock(s string) (time.Duration, error) {
	if s == "24:00" {
		return 24 * time.Hour, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (use HH:MM)", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func parseWeekday(name string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), name) || strings.EqualFold(d.String()[:3], name) {
			return d, true
		}
	}
	return 0, false
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s - %s", e.Field, e.Message)
}

// Validate checks the configuration for common issues
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return &ValidationError{Field: "Timezone", Message: fmt.Sprintf("unknown time zone %q", c.Timezone)}
	}

	if c.MaxShiftHours <= 0 {
		return &ValidationError{Field: "MaxShiftHours", Message: "Max shift length must be positive"}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "LogLevel", Message: "use debug, info, warn or error"}
	}

	_, err := c.Policy()
	return err
}
