package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
env: test
dryRun: true
source:
  userAddress: "0xabc"
symbols:
  BTC:
    symbol: BTCUSDC
    tolerance: 0.55
    scaleFactor: 500
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	require.Equal(t, 5, cfg.Reconcile.IntervalSeconds)
	require.Equal(t, 60, cfg.Alert.ThrottleSeconds)
	require.Equal(t, 20, cfg.Leverage)
	require.Equal(t, "info", cfg.Logger.Level)

	sm := cfg.Symbols["BTC"]
	require.Equal(t, "BTCUSDC", sm.Symbol)
	require.Equal(t, 0.55, sm.Tolerance)
	require.Equal(t, 500.0, sm.ScaleFactor)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "k-env")
	t.Setenv("BINANCE_API_SECRET", "s-env")
	t.Setenv("TARGET_ADDRESS", "0xenv")

	cfg, err := LoadWithEnvOverrides(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	require.Equal(t, "k-env", cfg.Gateway.APIKey)
	require.Equal(t, "s-env", cfg.Gateway.APISecret)
	require.Equal(t, "0xenv", cfg.Source.UserAddress)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing env", `
dryRun: true
source: {userAddress: "0xabc"}
symbols: {BTC: {symbol: BTCUSDC, tolerance: 1, scaleFactor: 500}}
`},
		{"missing user address", `
env: test
dryRun: true
symbols: {BTC: {symbol: BTCUSDC, tolerance: 1, scaleFactor: 500}}
`},
		{"no symbols", `
env: test
dryRun: true
source: {userAddress: "0xabc"}
`},
		{"credentials required outside dry run", `
env: prod
source: {userAddress: "0xabc"}
symbols: {BTC: {symbol: BTCUSDC, tolerance: 1, scaleFactor: 500}}
`},
		{"zero scale factor", `
env: test
dryRun: true
source: {userAddress: "0xabc"}
symbols: {BTC: {symbol: BTCUSDC, tolerance: 1, scaleFactor: 0}}
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
		})
	}
}
