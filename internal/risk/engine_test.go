package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/you/flash-arb/internal/config"
)

func TestAllowTrade(t *testing.T) {
	cfg := &config.Config{}
	cfg.Risk.MinProfitUSD = 10
	cfg.Risk.MaxGasUSD = 5
	cfg.Risk.MaxFlashUSD = 50_000
	e := NewEngine(cfg)

	assert.True(t, e.AllowTrade(22.5, 2, 1000))
	assert.False(t, e.AllowTrade(9.99, 2, 1000))   // under profit floor
	assert.False(t, e.AllowTrade(22.5, 6, 1000))   // gas over budget
	assert.False(t, e.AllowTrade(22.5, 2, 60_000)) // loan over cap

	// zero gas budget disables the gas check
	cfg.Risk.MaxGasUSD = 0
	assert.True(t, e.AllowTrade(22.5, 100, 1000))
}
