package scanner

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/metrics"
	"github.com/you/flash-arb/internal/tokens"
	"github.com/you/flash-arb/internal/types"
)

// PoolSource serves the candidate set the last refresh produced. The scanner
// never re-validates pool existence: a vanished pool fails its quote call and
// drops out of the cycle on its own.
type PoolSource interface {
	Snapshot() []types.CandidatePool
}

// GasEstimator prices one flash-loan transaction's gas in USD.
type GasEstimator interface {
	EstimateGasUSD(ctx context.Context, nativeUSD float64) (float64, error)
}

type Scanner struct {
	cfg   *config.Config
	log   *zap.Logger
	pools PoolSource
	quote core.Quoter
	gas   GasEstimator

	borrowable map[string]bool
	weth       string
}

func New(cfg *config.Config, pools PoolSource, quote core.Quoter, gas GasEstimator, log *zap.Logger) *Scanner {
	borrowable := make(map[string]bool, len(cfg.Lender.Assets))
	for _, a := range cfg.Lender.Assets {
		borrowable[strings.ToLower(a)] = true
	}
	return &Scanner{
		cfg:        cfg,
		log:        log,
		pools:      pools,
		quote:      quote,
		gas:        gas,
		borrowable: borrowable,
		weth:       strings.ToLower(cfg.Lender.WETH),
	}
}

// Scan quotes every pair group across its venues and returns the single best
// opportunity clearing the profit threshold, or (nil, nil) when nothing does.
// (nil, nil) is normal operation, not an error.
func (s *Scanner) Scan(ctx context.Context, nativeUSD float64) (*types.ArbOpportunity, error) {
	started := time.Now()
	defer func() { metrics.ScanLatency.Observe(time.Since(started).Seconds()) }()

	groups := groupByPair(s.pools.Snapshot())
	if len(groups) == 0 {
		return nil, nil
	}

	gasUSD, err := s.gas.EstimateGasUSD(ctx, nativeUSD)
	if err != nil {
		return nil, err
	}
	if s.cfg.Risk.MaxGasUSD > 0 && gasUSD > s.cfg.Risk.MaxGasUSD {
		s.log.Warn("gas over budget, skipping scan cycle",
			zap.Float64("gas_usd", gasUSD),
			zap.Float64("max_gas_usd", s.cfg.Risk.MaxGasUSD),
		)
		return nil, nil
	}

	var best *types.ArbOpportunity
	for key, group := range groups {
		opp := s.scanGroup(ctx, key, group, nativeUSD, gasUSD)
		if opp == nil {
			continue
		}
		// strictly greater: the first group encountered wins ties
		if best == nil || opp.NetProfitUSD > best.NetProfitUSD {
			best = opp
		}
	}
	if best != nil {
		metrics.OpportunityNetUSD.Set(best.NetProfitUSD)
	}
	return best, nil
}

func groupByPair(pools []types.CandidatePool) map[string][]types.CandidatePool {
	groups := make(map[string][]types.CandidatePool)
	for _, p := range pools {
		groups[p.Key()] = append(groups[p.Key()], p)
	}
	// arbitrage needs at least two independent prices
	for key, g := range groups {
		if len(g) < 2 {
			delete(groups, key)
		}
	}
	return groups
}

// pickLoanAsset chooses whichever of the pair's tokens the lender lists as
// borrowable, preferring the pool's first token when both qualify.
func (s *Scanner) pickLoanAsset(group []types.CandidatePool) (types.TokenMeta, types.TokenMeta, bool) {
	t0, t1 := group[0].Token0, group[0].Token1
	if s.borrowable[strings.ToLower(t0.Address.Hex())] {
		return t0, t1, true
	}
	if s.borrowable[strings.ToLower(t1.Address.Hex())] {
		return t1, t0, true
	}
	return types.TokenMeta{}, types.TokenMeta{}, false
}

// assetUSD prices one human unit of the loan asset: the wrapped native token
// floats with the scan-time native price, everything else borrowable is a
// USD stable pegged 1:1.
func (s *Scanner) assetUSD(asset types.TokenMeta, nativeUSD float64) float64 {
	if strings.ToLower(asset.Address.Hex()) == s.weth {
		return nativeUSD
	}
	return 1.0
}

type legQuote struct {
	pool types.CandidatePool
	out  *big.Int
}

// quoteLeg prices amountIn on every pool in the group concurrently, keeping
// only the successes. skip excludes a pool address (the chosen buy venue on
// the return leg).
func (s *Scanner) quoteLeg(ctx context.Context, group []types.CandidatePool, tokenIn, tokenOut types.TokenMeta, amountIn *big.Int, skip *types.CandidatePool) []legQuote {
	results := make([]*big.Int, len(group))
	var wg sync.WaitGroup
	for i, pool := range group {
		if skip != nil && pool.Address == skip.Address && pool.Kind == skip.Kind {
			continue
		}
		wg.Add(1)
		go func(i int, pool types.CandidatePool) {
			defer wg.Done()
			out, err := s.quote.QuoteOut(ctx, pool, tokenIn, tokenOut, amountIn)
			if err != nil {
				metrics.QuoteErrors.Inc()
				s.log.Debug("quote unavailable",
					zap.String("pool", pool.Address.Hex()),
					zap.Uint8("kind", pool.Kind),
					zap.Error(err),
				)
				return
			}
			results[i] = out
		}(i, pool)
	}
	wg.Wait()

	quotes := make([]legQuote, 0, len(group))
	for i, out := range results {
		if out != nil {
			quotes = append(quotes, legQuote{pool: group[i], out: out})
		}
	}
	return quotes
}

func bestQuote(quotes []legQuote) legQuote {
	best := quotes[0]
	for _, q := range quotes[1:] {
		// strictly greater: the first successful quote wins ties
		if q.out.Cmp(best.out) > 0 {
			best = q
		}
	}
	return best
}

func (s *Scanner) scanGroup(ctx context.Context, key string, group []types.CandidatePool, nativeUSD, gasUSD float64) *types.ArbOpportunity {
	loan, mid, ok := s.pickLoanAsset(group)
	if !ok {
		return nil
	}

	// conservative sizing: the thinnest venue in the group sets the loan
	flashUSD := group[0].FlashUSD
	for _, p := range group[1:] {
		if p.FlashUSD < flashUSD {
			flashUSD = p.FlashUSD
		}
	}
	unitUSD := s.assetUSD(loan, nativeUSD)
	if unitUSD <= 0 {
		return nil
	}
	loanAmount := tokens.FromFloat(flashUSD/unitUSD, loan.Decimals)
	if loanAmount.Sign() <= 0 {
		return nil
	}

	buyQuotes := s.quoteLeg(ctx, group, loan, mid, loanAmount, nil)
	if len(buyQuotes) < 2 {
		return nil
	}
	buy := bestQuote(buyQuotes)

	sellQuotes := s.quoteLeg(ctx, group, mid, loan, buy.out, &buy.pool)
	if len(sellQuotes) == 0 {
		return nil
	}
	sell := bestQuote(sellQuotes)

	if sell.out.Cmp(loanAmount) <= 0 {
		return nil // no gross profit
	}

	grossUSD := tokens.ToFloat(new(big.Int).Sub(sell.out, loanAmount), loan.Decimals) * unitUSD
	feeUSD := flashUSD * float64(s.cfg.Lender.FeeBps) / 10000.0
	netUSD := grossUSD - feeUSD - gasUSD
	if netUSD < s.cfg.Risk.MinProfitUSD {
		return nil
	}

	s.log.Info("opportunity detected",
		zap.String("pair", key),
		zap.String("loan", loan.Symbol),
		zap.Float64("loan_usd", flashUSD),
		zap.Uint8("buy_kind", buy.pool.Kind),
		zap.Uint8("sell_kind", sell.pool.Kind),
		zap.Float64("gross_usd", grossUSD),
		zap.Float64("fee_usd", feeUSD),
		zap.Float64("gas_usd", gasUSD),
		zap.Float64("net_usd", netUSD),
	)

	return &types.ArbOpportunity{
		PairKey:        key,
		LoanAsset:      loan,
		LoanAmount:     loanAmount,
		LoanUSD:        flashUSD,
		BuyPool:        buy.pool,
		SellPool:       sell.pool,
		MidToken:       mid,
		MidAmount:      buy.out,
		GrossProfitUSD: grossUSD,
		LendingFeeUSD:  feeUSD,
		GasUSD:         gasUSD,
		NetProfitUSD:   netUSD,
		NativeUSD:      nativeUSD,
		DetectedAt:     time.Now(),
	}
}
