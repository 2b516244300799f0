package config

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewEngineConfigHolder_DefaultsWithoutFile(t *testing.T) {
	holder, err := NewEngineConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Current()
	require.Equal(t, "0.15", cfg.Validation.MaxTotalRate)
	require.Equal(t, "0.01", cfg.Validation.ComponentTolerance)
	require.Contains(t, cfg.StateAverageRates, "TX")
}

func TestStaticHolder_ValidatesSchemeMaxTax(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Schemes = map[string]SchemeConfig{
		"highway_use": {MaxTax: "2000.00"},
	}
	holder, err := NewStaticEngineConfigHolder(cfg)
	require.NoError(t, err)
	require.Equal(t, "2000.00", holder.Current().Schemes["highway_use"].MaxTax)

	cfg.Schemes = map[string]SchemeConfig{
		"highway_use": {MaxTax: "-5.00"},
	}
	_, err = NewStaticEngineConfigHolder(cfg)
	require.Error(t, err)

	// An empty cap means the scheme is uncapped.
	cfg.Schemes = map[string]SchemeConfig{
		"highway_use": {},
	}
	_, err = NewStaticEngineConfigHolder(cfg)
	require.NoError(t, err)
}
