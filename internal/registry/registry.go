package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/dex/camelot"
	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/dex/univ3"
	"github.com/you/flash-arb/internal/metrics"
	"github.com/you/flash-arb/internal/types"
)

// flashTVLFraction sizes the per-pool flash loan off the pool's depth. The
// result is clamped to [Risk.MinFlashUSD, Risk.MaxFlashUSD]; pools whose
// sized loan falls under the floor are not worth quoting and are dropped.
const flashTVLFraction = 0.02

const enrichConcurrency = 8

// TokenResolver is the slice of tokens.Cache the registry needs.
type TokenResolver interface {
	Resolve(ctx context.Context, addr common.Address) (types.TokenMeta, error)
}

// Registry discovers candidate pools from the external index, enriches them
// against on-chain truth and serves the result as a TTL cache. The cached
// set is replaced atomically per refresh; a failed refresh serves the stale
// set rather than an empty one.
type Registry struct {
	cfg    *config.Config
	log    *zap.Logger
	idx    *indexClient
	ec     core.ContractCaller
	tokens TokenResolver

	mu          sync.RWMutex
	pools       []types.CandidatePool
	refreshedAt time.Time
}

func New(cfg *config.Config, ec core.ContractCaller, tokens TokenResolver, log *zap.Logger) *Registry {
	return &Registry{
		cfg:    cfg,
		log:    log,
		idx:    newIndexClient(cfg.Index.URL),
		ec:     ec,
		tokens: tokens,
	}
}

// Refresh returns the candidate pool set, re-fetching the index only when the
// cached set is older than the configured TTL. Freshness is a cache concern:
// a pool that vanished on-chain since the refresh simply fails its quote call
// later and drops out of that scan cycle.
func (r *Registry) Refresh(ctx context.Context) ([]types.CandidatePool, error) {
	r.mu.RLock()
	cached, at := r.pools, r.refreshedAt
	r.mu.RUnlock()
	if len(cached) > 0 && time.Since(at) < r.cfg.IndexTTL() {
		return cached, nil
	}

	fresh, err := r.rebuild(ctx)
	if err != nil {
		metrics.RefreshErrors.Inc()
		if len(cached) > 0 {
			r.log.Warn("pool index refresh failed, serving stale set",
				zap.Error(err),
				zap.Int("pools", len(cached)),
				zap.Time("refreshed_at", at),
			)
			return cached, nil
		}
		return nil, fmt.Errorf("pool registry refresh: %w", err)
	}

	r.mu.Lock()
	r.pools = fresh
	r.refreshedAt = time.Now()
	r.mu.Unlock()

	metrics.PoolsTracked.Set(float64(len(fresh)))
	r.log.Info("pool registry refreshed", zap.Int("pools", len(fresh)))
	return fresh, nil
}

func (r *Registry) rebuild(ctx context.Context) ([]types.CandidatePool, error) {
	raw, err := r.idx.TopPools(ctx)
	if err != nil {
		return nil, err
	}

	venueAllowed := make(map[string]bool, len(r.cfg.DEX.Venues))
	for _, v := range r.cfg.DEX.Venues {
		venueAllowed[v] = true
	}

	keep := make([]indexPool, 0, len(raw))
	for _, p := range raw {
		if _, known := core.VenueName[p.Venue]; !known || !venueAllowed[p.Venue] {
			continue
		}
		if p.TVLUSD < r.cfg.Index.MinTVLUSD {
			continue
		}
		// weighted multi-token pools are not two-sided markets
		if len(p.Tokens) != 2 {
			continue
		}
		keep = append(keep, p)
	}
	sort.Slice(keep, func(i, j int) bool { return keep[i].TVLUSD > keep[j].TVLUSD })
	if len(keep) > r.cfg.Index.TopN {
		keep = keep[:r.cfg.Index.TopN]
	}

	out := make([]types.CandidatePool, len(keep))
	ok := make([]bool, len(keep))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, entry := range keep {
		i, entry := i, entry
		g.Go(func() error {
			pool, err := r.enrich(gctx, entry)
			if err != nil {
				// one bad pool never aborts the batch
				r.log.Debug("pool enrichment dropped",
					zap.String("venue", entry.Venue),
					zap.Float64("tvl_usd", entry.TVLUSD),
					zap.Error(err),
				)
				return nil
			}
			out[i], ok[i] = pool, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pools := make([]types.CandidatePool, 0, len(out))
	for i := range out {
		if ok[i] {
			pools = append(pools, out[i])
		}
	}
	return pools, nil
}

func (r *Registry) enrich(ctx context.Context, entry indexPool) (types.CandidatePool, error) {
	kind := core.VenueName[entry.Venue]

	flashUSD := entry.TVLUSD * flashTVLFraction
	if flashUSD > r.cfg.Risk.MaxFlashUSD {
		flashUSD = r.cfg.Risk.MaxFlashUSD
	}
	if flashUSD < r.cfg.Risk.MinFlashUSD {
		return types.CandidatePool{}, fmt.Errorf("flash size $%.0f under floor $%.0f", flashUSD, r.cfg.Risk.MinFlashUSD)
	}

	addrA := common.HexToAddress(entry.Tokens[0].Address)
	addrB := common.HexToAddress(entry.Tokens[1].Address)

	pool := types.CandidatePool{
		Kind:     kind,
		TVLUSD:   entry.TVLUSD,
		FlashUSD: flashUSD,
	}

	switch kind {
	case core.KindUniswapV3:
		addr, fee, err := univ3.FindPool(ctx, r.ec,
			common.HexToAddress(r.cfg.DEX.UniV3.Factory), addrA, addrB, r.cfg.DEX.UniV3.FeeTiers)
		if err != nil {
			return types.CandidatePool{}, fmt.Errorf("univ3 pool lookup: %w", err)
		}
		pool.Address = addr
		pool.FeeTier = fee
		pool.Router = common.HexToAddress(r.cfg.DEX.UniV3.Router)
		pool.Quoter = common.HexToAddress(r.cfg.DEX.UniV3.QuoterV2)
	case core.KindCamelotV3:
		addr, err := camelot.FindPool(ctx, r.ec,
			common.HexToAddress(r.cfg.DEX.Camelot.Factory), addrA, addrB)
		if err != nil {
			return types.CandidatePool{}, fmt.Errorf("camelot pool lookup: %w", err)
		}
		pool.Address = addr
		pool.Router = common.HexToAddress(r.cfg.DEX.Camelot.Router)
		pool.Quoter = common.HexToAddress(r.cfg.DEX.Camelot.Quoter)
	case core.KindBalancerV2:
		// Known gap: the vault addresses pools by bytes32 id, which the index
		// does not carry and the chain does not expose per pair; resolving it
		// needs the Balancer subgraph. Until that lands, vault pools are
		// skipped at discovery while quoting and execution keep supporting
		// kind 2 for callers that supply the id themselves.
		return types.CandidatePool{}, fmt.Errorf("balancer pool id resolution not implemented")
	default:
		return types.CandidatePool{}, fmt.Errorf("unsupported venue kind %d", kind)
	}

	t0, err := r.tokens.Resolve(ctx, addrA)
	if err != nil {
		return types.CandidatePool{}, fmt.Errorf("token %s: %w", addrA.Hex(), err)
	}
	t1, err := r.tokens.Resolve(ctx, addrB)
	if err != nil {
		return types.CandidatePool{}, fmt.Errorf("token %s: %w", addrB.Hex(), err)
	}
	pool.Token0, pool.Token1 = t0, t1
	return pool, nil
}

// Snapshot returns the current pool set without triggering a refresh.
func (r *Registry) Snapshot() []types.CandidatePool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pools
}

func (r *Registry) PoolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

func (r *Registry) LastRefresh() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refreshedAt
}
