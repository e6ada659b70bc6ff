// Package config defines the data structures related to configuration and
// includes functions for loading and validating the config.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for top-planner.
type Configuration struct {
	Backend   BackendConfig   `yaml:"backend,omitempty"`
	Currency  CurrencyConfig  `yaml:"currency,omitempty"`
	Plan      PlanConfig      `yaml:"plan,omitempty"`
	Dashboard DashboardConfig `yaml:"dashboard,omitempty"`
	Cache     CacheConfig     `yaml:"cache,omitempty"`
	Export    ExportConfig    `yaml:"export,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Output    OutputConfig    `yaml:"output,omitempty"`
}

// BackendConfig locates the sales backend and the credentials forwarded to it.
type BackendConfig struct {
	BaseURL       string        `yaml:"baseURL,omitempty"`
	SubmitPath    string        `yaml:"submitPath,omitempty"`
	CSRFToken     string        `yaml:"csrfToken,omitempty" mapstructure:"csrfToken"`
	SessionCookie string        `yaml:"sessionCookie,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"` // zero means no client timeout
}

// CurrencyConfig selects the display currency. Rate converts canonical EGP
// amounts into Code.
type CurrencyConfig struct {
	Code string  `yaml:"code,omitempty"`
	Rate float64 `yaml:"rate,omitempty"`
}

// PlanConfig tunes the installment plan view model.
type PlanConfig struct {
	MaxStabilizationAttempts      int           `yaml:"maxStabilizationAttempts,omitempty"`
	StabilizationDelay            time.Duration `yaml:"stabilizationDelay,omitempty"`
	CanEdit                       *bool         `yaml:"canEdit,omitempty"`
	PeriodBetweenDPs              int           `yaml:"periodBetweenDPs,omitempty" mapstructure:"periodBetweenDPs"`
	PeriodBetweenDPAndInstallment int           `yaml:"periodBetweenDPAndInstallment,omitempty" mapstructure:"periodBetweenDPAndInstallment"`
}

// DashboardConfig holds the debounce windows for filter and discount input.
type DashboardConfig struct {
	FilterDebounce   time.Duration `yaml:"filterDebounce,omitempty"`
	DiscountDebounce time.Duration `yaml:"discountDebounce,omitempty"`
}

// CacheConfig selects the unit list cache. An empty RedisAddr keeps the cache
// in memory.
type CacheConfig struct {
	RedisAddr string        `yaml:"redisAddr,omitempty"`
	TTL       time.Duration `yaml:"ttl,omitempty"`
}

// ExportConfig holds report metadata and the directory exports are written to.
type ExportConfig struct {
	Directory   string `yaml:"directory,omitempty"`
	ExportedBy  string `yaml:"exportedBy,omitempty"`
	CompanyName string `yaml:"companyName,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Values may be overridden through TOP_ prefixed
// environment variables, e.g. TOP_BACKEND_BASEURL.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	return decode(v)
}

// LoadConfigurationFromReader loads a YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend.baseURL", "")
	v.SetDefault("backend.submitPath", constants.DefaultSubmitPath)
	v.SetDefault("backend.csrfToken", "")
	v.SetDefault("backend.sessionCookie", "")
	v.SetDefault("backend.timeout", "0s")
	v.SetDefault("currency.code", constants.CanonicalCurrency)
	v.SetDefault("currency.rate", 1.0)
	v.SetDefault("plan.maxStabilizationAttempts", constants.DefaultMaxStabilizationAttempts)
	v.SetDefault("plan.stabilizationDelay", time.Duration(constants.DefaultStabilizationDelayMillis)*time.Millisecond)
	v.SetDefault("plan.periodBetweenDPs", constants.DefaultPeriodBetweenDPs)
	v.SetDefault("plan.periodBetweenDPAndInstallment", constants.DefaultPeriodBetweenDPAndInstallment)
	v.SetDefault("dashboard.filterDebounce", time.Duration(constants.DefaultFilterDebounceMillis)*time.Millisecond)
	v.SetDefault("dashboard.discountDebounce", time.Duration(constants.DefaultDiscountDebounceMillis)*time.Millisecond)
	v.SetDefault("cache.redisAddr", "")
	v.SetDefault("cache.ttl", time.Duration(constants.DefaultUnitsCacheTTLMinutes)*time.Minute)
	v.SetDefault("export.directory", ".")
	v.SetDefault("logging.level", "")
	v.SetDefault("output.format", "")
	return v
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	return &configuration, nil
}

// UserCanEdit reports whether plan inputs are editable. Editing is allowed
// unless explicitly disabled.
func (p PlanConfig) UserCanEdit() bool {
	return p.CanEdit == nil || *p.CanEdit
}

// ValidateConfiguration performs general validation of the configuration and
// returns warnings for settings that will be replaced by defaults or that
// disable functionality.
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		warnings = append(warnings, "backend.baseURL is empty; backend requests will fail")
	}
	if c.Currency.Rate <= 0 {
		warnings = append(warnings, fmt.Sprintf("currency.rate %g is not positive; using 1", c.Currency.Rate))
		c.Currency.Rate = 1
	}
	if c.Currency.Code == "" {
		c.Currency.Code = constants.CanonicalCurrency
	}
	if c.Plan.MaxStabilizationAttempts < 0 {
		warnings = append(warnings, fmt.Sprintf("plan.maxStabilizationAttempts %d is negative; using 0", c.Plan.MaxStabilizationAttempts))
		c.Plan.MaxStabilizationAttempts = 0
	}
	if c.Plan.StabilizationDelay < 0 {
		warnings = append(warnings, "plan.stabilizationDelay is negative; using 0")
		c.Plan.StabilizationDelay = 0
	}
	if c.Plan.PeriodBetweenDPs < 0 || c.Plan.PeriodBetweenDPAndInstallment < 0 {
		warnings = append(warnings, "plan periods must not be negative; using defaults")
		c.Plan.PeriodBetweenDPs = constants.DefaultPeriodBetweenDPs
		c.Plan.PeriodBetweenDPAndInstallment = constants.DefaultPeriodBetweenDPAndInstallment
	}
	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			warnings = append(warnings, err.Error()+"; using "+constants.OutputFormatPretty)
			c.Output.Format = constants.OutputFormatPretty
		}
	}

	return warnings
}
