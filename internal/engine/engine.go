// Package engine wires the pool registry, scanner, executor, ledger and feed
// into one service with a periodic scan loop.
package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/dash"
	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/executor"
	"github.com/you/flash-arb/internal/feed"
	"github.com/you/flash-arb/internal/ledger"
	"github.com/you/flash-arb/internal/registry"
	"github.com/you/flash-arb/internal/risk"
	"github.com/you/flash-arb/internal/scanner"
	"github.com/you/flash-arb/internal/tokens"
	"github.com/you/flash-arb/internal/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Engine manages the application's components and lifecycle.
type Engine struct {
	cfg    *config.Config
	log    *zap.Logger
	pools  *registry.Registry
	scan   *scanner.Scanner
	exec   *executor.Executor
	book   *ledger.Ledger
	feed   *feed.Publisher
	risk   *risk.Engine
	quote  core.Quoter
	toks   *tokens.Cache
	board  *dash.Store

	lastNativeUSD float64
}

func New(
	cfg *config.Config,
	pools *registry.Registry,
	scan *scanner.Scanner,
	exec *executor.Executor,
	book *ledger.Ledger,
	pub *feed.Publisher,
	quote core.Quoter,
	toks *tokens.Cache,
	log *zap.Logger,
) *Engine {
	return &Engine{
		cfg:   cfg,
		log:   log,
		pools: pools,
		scan:  scan,
		exec:  exec,
		book:  book,
		feed:  pub,
		risk:  risk.NewEngine(cfg),
		quote: quote,
		toks:  toks,
		board: dash.NewStore(),
	}
}

func (e *Engine) Dash() *dash.Store { return e.board }

// RefreshPools rebuilds the candidate pool set and publishes it to the feed.
func (e *Engine) RefreshPools(ctx context.Context) error {
	pools, err := e.pools.Refresh(ctx)
	if err != nil {
		return err
	}
	if e.feed != nil {
		if perr := e.feed.PublishPools(ctx, pools); perr != nil {
			e.log.Warn("feed publish pools failed", zap.Error(perr))
		}
	}
	return nil
}

// Scan runs one detection pass over the current pool set.
func (e *Engine) Scan(ctx context.Context) (*types.ArbOpportunity, error) {
	nativeUSD, err := e.nativeUSD(ctx)
	if err != nil {
		return nil, err
	}
	opp, err := e.scan.Scan(ctx, nativeUSD)
	if err != nil || opp == nil {
		return nil, err
	}
	e.board.Update(opp)
	if e.feed != nil {
		if perr := e.feed.PublishOpportunity(ctx, opp); perr != nil {
			e.log.Warn("feed publish opportunity failed", zap.Error(perr))
		}
	}
	return opp, nil
}

// Execute submits an opportunity after a final risk check.
func (e *Engine) Execute(ctx context.Context, opp *types.ArbOpportunity) (*types.ArbResult, error) {
	if !e.risk.AllowTrade(opp.NetProfitUSD, opp.GasUSD, opp.LoanUSD) {
		return nil, fmt.Errorf("trade rejected by risk limits: net=%.2f gas=%.2f loan=%.2f",
			opp.NetProfitUSD, opp.GasUSD, opp.LoanUSD)
	}
	res, err := e.exec.Execute(ctx, opp)
	if res != nil && e.feed != nil {
		if perr := e.feed.PublishResult(ctx, res); perr != nil {
			e.log.Warn("feed publish result failed", zap.Error(perr))
		}
	}
	return res, err
}

func (e *Engine) Balance(ctx context.Context, asset common.Address) (*big.Int, error) {
	return e.exec.Balance(ctx, asset)
}

func (e *Engine) PoolCount() int           { return e.pools.PoolCount() }
func (e *Engine) LastRefresh() time.Time   { return e.pools.LastRefresh() }
func (e *Engine) ProfitLast24h() float64   { return e.book.Last24h() }
func (e *Engine) RecordProfit(usd float64) { e.book.Record(usd) }
func (e *Engine) IsDryRun() bool           { return e.cfg.DryRun }

// Run drives the refresh and scan loops until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	if e.cfg.DryRun {
		e.log.Warn("DRY-RUN: no transactions will be sent")
	}

	if err := e.RefreshPools(ctx); err != nil {
		e.log.Fatal("initial pool refresh failed", zap.Error(err))
	}
	e.log.Info("pool registry ready",
		zap.Int("pools", e.pools.PoolCount()),
		zap.Int("tokens_cached", e.toks.Len()),
	)

	refresh := time.NewTicker(e.cfg.RefreshInterval())
	scan := time.NewTicker(e.cfg.ScanInterval())
	defer refresh.Stop()
	defer scan.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info("flash-arb finished")
			return
		case <-refresh.C:
			if err := e.RefreshPools(ctx); err != nil {
				e.log.Warn("pool refresh failed, keeping stale set", zap.Error(err))
			}
		case <-scan.C:
			e.runCycle(ctx)
		}
	}
}

func (e *Engine) runCycle(ctx context.Context) {
	opp, err := e.Scan(ctx)
	if err != nil {
		e.log.Warn("scan failed", zap.Error(err))
		return
	}
	if opp == nil {
		return
	}

	e.log.Info("opportunity",
		zap.String("pair", opp.PairKey),
		zap.String("loan", opp.LoanAsset.Symbol),
		zap.Float64("loan_usd", opp.LoanUSD),
		zap.Uint8("buy_kind", opp.BuyPool.Kind),
		zap.Uint8("sell_kind", opp.SellPool.Kind),
		zap.Float64("gross_usd", opp.GrossProfitUSD),
		zap.Float64("fee_usd", opp.LendingFeeUSD),
		zap.Float64("gas_usd", opp.GasUSD),
		zap.Float64("net_usd", opp.NetProfitUSD),
		zap.Time("ts", opp.DetectedAt),
	)

	res, err := e.Execute(ctx, opp)
	switch {
	case err == executor.ErrExecutionInFlight:
		e.log.Debug("execution already in flight, skipping")
	case err != nil:
		e.log.Error("execution failed", zap.String("pair", opp.PairKey), zap.Error(err))
	case !res.Success:
		e.log.Warn("execution reverted",
			zap.String("pair", opp.PairKey),
			zap.String("tx", res.TxHash),
			zap.String("reason", res.Err),
		)
	default:
		e.log.Info("execution confirmed",
			zap.String("pair", opp.PairKey),
			zap.String("tx", res.TxHash),
			zap.Float64("profit_usd", res.ProfitUSD),
			zap.Float64("profit_24h_usd", e.book.Last24h()),
		)
	}
}

// nativeUSD prices the wrapped native token in USD by quoting one unit
// against the first stable lender asset on the primary venue. The last good
// price is reused when the quote fails.
func (e *Engine) nativeUSD(ctx context.Context) (float64, error) {
	weth := common.HexToAddress(e.cfg.Lender.WETH)
	stable := e.stableAsset(weth)
	if stable == (common.Address{}) {
		if e.lastNativeUSD > 0 {
			return e.lastNativeUSD, nil
		}
		return 0, fmt.Errorf("no stable lender asset configured for native pricing")
	}

	wm, err := e.toks.Resolve(ctx, weth)
	if err != nil {
		return e.fallbackNative(fmt.Errorf("resolve weth: %w", err))
	}
	sm, err := e.toks.Resolve(ctx, stable)
	if err != nil {
		return e.fallbackNative(fmt.Errorf("resolve stable: %w", err))
	}

	refPool := types.CandidatePool{
		Kind:    core.KindUniswapV3,
		Quoter:  common.HexToAddress(e.cfg.DEX.UniV3.QuoterV2),
		FeeTier: 500,
		Token0:  wm,
		Token1:  sm,
	}
	one := tokens.FromFloat(1, wm.Decimals)
	out, err := e.quote.QuoteOut(ctx, refPool, wm, sm, one)
	if err != nil {
		return e.fallbackNative(err)
	}
	px := tokens.ToFloat(out, sm.Decimals)
	if px <= 0 {
		return e.fallbackNative(fmt.Errorf("non-positive native quote"))
	}
	e.lastNativeUSD = px
	return px, nil
}

func (e *Engine) fallbackNative(err error) (float64, error) {
	if e.lastNativeUSD > 0 {
		e.log.Debug("native price refresh failed, using last good", zap.Error(err))
		return e.lastNativeUSD, nil
	}
	return 0, fmt.Errorf("native price unavailable: %w", err)
}

func (e *Engine) stableAsset(weth common.Address) common.Address {
	for _, a := range e.cfg.Lender.Assets {
		addr := common.HexToAddress(a)
		if addr != weth {
			return addr
		}
	}
	return common.Address{}
}

func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	return cfg.Build()
}
