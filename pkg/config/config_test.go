package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LINKDROP_CONTRACT_ID", "drop.testnet")
	t.Setenv("LINKDROP_LEDGER_BACKEND", "redis")

	cfg, err := Load(viper.New())
	require.NoError(t, err)
	require.Equal(t, "drop.testnet", cfg.Linkdrop.ContractID)
	require.Equal(t, LedgerBackendRedis, cfg.Linkdrop.LedgerBackend)
	require.Equal(t, int64(1_000_000), cfg.Linkdrop.AccessKeyAllowance)
	require.Equal(t, "host", cfg.Linkdrop.HostQueue)
	require.Equal(t, "8080", cfg.Server.Addr)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Linkdrop.ContractID = "drop"
	cfg.Linkdrop.LedgerBackend = "mongo"
	require.Error(t, cfg.Validate())

	cfg.Linkdrop.LedgerBackend = LedgerBackendSQL
	require.NoError(t, cfg.Validate())

	cfg.Linkdrop.AccessKeyAllowance = -1
	require.Error(t, cfg.Validate())

	cfg.Linkdrop.AccessKeyAllowance = 0
	cfg.TLS.Enable = true
	require.Error(t, cfg.Validate())

	cfg.TLS.Enable = false
	cfg.Otel.Exporter = "zipkin"
	require.Error(t, cfg.Validate())

	cfg.Otel.Exporter = "grpc"
	require.NoError(t, cfg.Validate())

	cfg.Linkdrop.ContractID = ""
	require.Error(t, cfg.Validate())
}
