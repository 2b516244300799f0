package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dealerdesk/taxengine/pkg/money"
	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EngineConfig holds hot-reloadable engine tunables. Rates are decimal-string
// literals; they are parsed through pkg/money at load time, never as floats.
type EngineConfig struct {
	Validation        ValidationConfig        `mapstructure:"validation"`
	StateAverageRates map[string]string       `mapstructure:"stateAverageRates"`
	Schemes           map[string]SchemeConfig `mapstructure:"schemes"`
}

// SchemeConfig tunes a special-scheme calculation strategy, keyed by the
// scheme tag from the state rule table.
type SchemeConfig struct {
	// MaxTax caps the scheme's total tax per calculation when set, as some
	// highway-use schemes do for commercial vehicle classes.
	MaxTax string `mapstructure:"maxTax"`
}

type ValidationConfig struct {
	// MaxTotalRate is the sanity ceiling for an effective combined rate.
	MaxTotalRate string `mapstructure:"maxTotalRate"`
	// ComponentTolerance absorbs the residual-cent assignment when checking
	// that breakdown components sum to the total.
	ComponentTolerance string `mapstructure:"componentTolerance"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Validation: ValidationConfig{
			MaxTotalRate:       "0.15",
			ComponentTolerance: "0.01",
		},
		// Published combined state+average-local rates, used only by the
		// explicitly labeled estimate path.
		StateAverageRates: map[string]string{
			"AZ": "0.0838", "CA": "0.0885", "CO": "0.0781",
			"FL": "0.0702", "GA": "0.0738", "IL": "0.0886",
			"MI": "0.0600", "NC": "0.0300", "NY": "0.0853",
			"OH": "0.0724", "PA": "0.0634", "TX": "0.0820",
			"VA": "0.0575", "WA": "0.0943",
		},
	}
}

// EngineConfigHolder serves the current engine config and hot-reloads it
// when the backing file changes. Readers never block writers.
type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

func NewEngineConfigHolder(log *zap.Logger) (*EngineConfigHolder, error) {
	log = log.Named("engine.config")
	v := viper.New()

	v.SetConfigName("engine")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/taxengine")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TAXENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultEngineConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	} else {
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}

	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := DefaultEngineConfig()
		if err := v.Unmarshal(&updated); err != nil {
			log.Error("engine config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := validateEngineConfig(updated); err != nil {
			log.Warn("invalid engine config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("engine config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticEngineConfigHolder pins a fixed config; used by tests.
func NewStaticEngineConfigHolder(cfg EngineConfig) (*EngineConfigHolder, error) {
	if err := validateEngineConfig(cfg); err != nil {
		return nil, err
	}
	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func (h *EngineConfigHolder) Current() EngineConfig {
	return h.current.Load().(EngineConfig)
}

func validateEngineConfig(cfg EngineConfig) error {
	maxRate, err := money.Parse("validation.maxTotalRate", cfg.Validation.MaxTotalRate)
	if err != nil {
		return err
	}
	if maxRate.IsZero() {
		return fmt.Errorf("validation.maxTotalRate must be positive")
	}
	if _, err := money.Parse("validation.componentTolerance", cfg.Validation.ComponentTolerance); err != nil {
		return err
	}
	one := decimal.NewFromInt(1)
	for state, rate := range cfg.StateAverageRates {
		parsed, err := money.Parse("stateAverageRates."+state, rate)
		if err != nil {
			return err
		}
		if parsed.GreaterThanOrEqual(one) {
			return fmt.Errorf("stateAverageRates.%s: rate %s is not a fraction", state, rate)
		}
	}
	for scheme, sc := range cfg.Schemes {
		if strings.TrimSpace(sc.MaxTax) == "" {
			continue
		}
		maxTax, err := money.Parse("schemes."+scheme+".maxTax", sc.MaxTax)
		if err != nil {
			return err
		}
		if !maxTax.IsPositive() {
			return fmt.Errorf("schemes.%s.maxTax must be positive", scheme)
		}
	}
	return nil
}
