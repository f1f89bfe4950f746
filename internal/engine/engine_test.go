package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/executor"
	"github.com/you/flash-arb/internal/ledger"
	"github.com/you/flash-arb/internal/registry"
	"github.com/you/flash-arb/internal/scanner"
	"github.com/you/flash-arb/internal/types"
	"go.uber.org/zap"
)

func testEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	log := zap.NewNop()
	book := ledger.New()
	exec, err := executor.New(cfg, nil, book, log)
	assert.NoError(t, err)
	pools := registry.New(cfg, nil, nil, log)
	dispatch := core.NewDispatcher()
	scan := scanner.New(cfg, pools, dispatch, exec, log)
	return New(cfg, pools, scan, exec, book, nil, dispatch, nil, log)
}

func testConfig() *config.Config {
	cfg := &config.Config{DryRun: true}
	cfg.Risk.MinProfitUSD = 10
	cfg.Risk.MaxGasUSD = 50
	cfg.Risk.MaxFlashUSD = 50_000
	return cfg
}

func dryOpportunity() *types.ArbOpportunity {
	return &types.ArbOpportunity{
		PairKey:      "a:b",
		LoanAsset:    types.TokenMeta{Symbol: "USDC", Decimals: 6},
		LoanAmount:   big.NewInt(1000e6),
		LoanUSD:      1000,
		NetProfitUSD: 22.5,
		GasUSD:       2,
	}
}

func TestExecuteAppliesRiskGate(t *testing.T) {
	e := testEngine(t, testConfig())

	res, err := e.Execute(context.Background(), dryOpportunity())
	assert.NoError(t, err)
	assert.True(t, res.Success)

	over := dryOpportunity()
	over.LoanUSD = 60_000
	_, err = e.Execute(context.Background(), over)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "risk")
}

func TestProfitAccounting(t *testing.T) {
	e := testEngine(t, testConfig())

	e.RecordProfit(5)
	e.RecordProfit(3)
	assert.InDelta(t, 8.0, e.ProfitLast24h(), 1e-9)
	assert.True(t, e.IsDryRun())
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger()
	assert.NoError(t, err)
	assert.NotNil(t, log)
	_ = log.Sync()
}
