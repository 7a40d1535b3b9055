package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatflowers/autoinspect/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
env: prod
server:
  port: 9000
plans:
  - id: basic_monthly
    name: Basic
    price: 150000
    currency: KES
    billing_cycle: month
  - id: fleet_yearly
    name: Fleet
    price: 1500000
    currency: KES
    billing_cycle: year
  - id: trial
    name: Trial
events:
  broker: nats
  relay_interval: 3s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNew_LoadsFileAndDefaults(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", writeConfig(t, sampleYAML))

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, EnvProd, cfg.Env)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, BrokerNATS, cfg.Events.Broker)
	assert.Equal(t, 3*time.Second, cfg.Events.RelayInterval)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "INV", cfg.Payment.InvoicePrefix)
	assert.True(t, cfg.PaymentMethodAllowed(types.PaymentMethodBankTransfer))
	assert.False(t, cfg.PaymentMethodAllowed("cheque"))

	yearly := cfg.GetPlanByID("fleet_yearly")
	require.NotNil(t, yearly)
	assert.True(t, yearly.Yearly())
	assert.Equal(t, 12, yearly.CycleMonths())

	trial := cfg.GetPlanByID("trial")
	require.NotNil(t, trial)
	assert.Equal(t, types.BillingCycleMonth, trial.BillingCycle)
	assert.Nil(t, cfg.GetPlanByID("missing"))
}

func TestNew_EnvOverride(t *testing.T) {
	t.Setenv("APP_CONFIG_FILE", writeConfig(t, sampleYAML))
	t.Setenv("APP_SERVER_PORT", "7001")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Server.Port)
}

func TestNew_RejectsInvalidPlans(t *testing.T) {
	cases := map[string]string{
		"duplicate id":  "plans:\n  - id: a\n  - id: a\n",
		"bad cycle":     "plans:\n  - id: a\n    billing_cycle: week\n",
		"negative cost": "plans:\n  - id: a\n    price: -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("APP_CONFIG_FILE", writeConfig(t, body))
			_, err := New()
			require.Error(t, err)
		})
	}
}
