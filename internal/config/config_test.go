package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())
}

func TestValidateRejectsBadParams(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative base fee", func(p *Params) { p.BaseFeeBps = decimal.NewFromInt(-1) }},
		{"max below base", func(p *Params) { p.MaxFeeBps = decimal.NewFromInt(10); p.BaseFeeBps = decimal.NewFromInt(20) }},
		{"insurance cut above 100%", func(p *Params) { p.InsuranceCutBps = decimal.NewFromInt(10001) }},
		{"zero snapshot window", func(p *Params) { p.SnapshotWindow = 0 }},
		{"min snapshots of one", func(p *Params) { p.MinSnapshots = 1 }},
		{"zero rebalance threshold", func(p *Params) { p.RebalanceThreshold = decimal.Zero }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	m := NewManager(zap.NewNop())
	cfg, err := m.Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8084, cfg.Server.Port)
	assert.Equal(t, "@every 1m", cfg.RebalanceCron)
	assert.True(t, cfg.Params.BaseFeeBps.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, 5*time.Minute, cfg.Params.MaxPriceAge)
	assert.True(t, cfg.Params.RebalanceThreshold.Equal(decimal.RequireFromString("0.05")))
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
server:
  port: 9000
params:
  base_fee_bps: "25"
  max_fee_bps: "80"
  max_price_age: 2m
  withdraw_cooldown: 1h
`), 0o644))

	m := NewManager(zap.NewNop())
	cfg, err := m.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Params.BaseFeeBps.Equal(decimal.NewFromInt(25)))
	assert.True(t, cfg.Params.MaxFeeBps.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, 2*time.Minute, cfg.Params.MaxPriceAge)
	assert.Equal(t, time.Hour, cfg.Params.WithdrawCooldown)

	// Untouched keys keep their defaults.
	assert.True(t, cfg.Params.SensitivityBps.Equal(decimal.NewFromInt(500)))
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
params:
  base_fee_bps: "200"
  max_fee_bps: "100"
`), 0o644))

	m := NewManager(zap.NewNop())
	_, err := m.Load(path)
	require.Error(t, err)
}

func TestManagerCurrentBeforeLoadServesDefaults(t *testing.T) {
	m := NewManager(zap.NewNop())
	p := m.Current()
	assert.True(t, p.BaseFeeBps.Equal(DefaultParams().BaseFeeBps))
}

func TestStaticProvider(t *testing.T) {
	p := DefaultParams()
	p.BaseFeeBps = decimal.NewFromInt(7)
	var provider Provider = Static{P: p}
	assert.True(t, provider.Current().BaseFeeBps.Equal(decimal.NewFromInt(7)))
}
