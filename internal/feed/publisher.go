// Package feed publishes discovered pools and detected opportunities to Redis
// for the portfolio decision layer. Everything here is best effort: a dead
// Redis costs observability, never a scan cycle.
package feed

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/types"
)

type Publisher struct {
	rdb    *redis.Client
	stream string
}

// NewPublisher returns nil when Redis is not configured; all methods are
// nil-safe no-ops in that case.
func NewPublisher(cfg *config.Config) *Publisher {
	if cfg.Redis.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	return &Publisher{rdb: rdb, stream: cfg.Redis.Stream}
}

// PublishPools mirrors the active pool set into a ZSET scored by TVL.
func (p *Publisher) PublishPools(ctx context.Context, pools []types.CandidatePool) error {
	if p == nil {
		return nil
	}
	members := make([]redis.Z, 0, len(pools))
	for _, pool := range pools {
		members = append(members, redis.Z{
			Score:  pool.TVLUSD,
			Member: pool.Key() + "|" + pool.Address.Hex(),
		})
	}
	if len(members) == 0 {
		return nil
	}
	pipe := p.rdb.TxPipeline()
	pipe.Del(ctx, "arb:pools")
	pipe.ZAdd(ctx, "arb:pools", members...)
	_, err := pipe.Exec(ctx)
	return err
}

// PublishOpportunity appends a detected opportunity to the stream and keeps
// the latest one in a hash for cheap polling.
func (p *Publisher) PublishOpportunity(ctx context.Context, opp *types.ArbOpportunity) error {
	if p == nil {
		return nil
	}
	fields := map[string]interface{}{
		"pair":      opp.PairKey,
		"loan":      opp.LoanAsset.Symbol,
		"loan_usd":  opp.LoanUSD,
		"buy_kind":  int(opp.BuyPool.Kind),
		"sell_kind": int(opp.SellPool.Kind),
		"gross_usd": opp.GrossProfitUSD,
		"fee_usd":   opp.LendingFeeUSD,
		"gas_usd":   opp.GasUSD,
		"net_usd":   opp.NetProfitUSD,
		"ts_ms":     opp.DetectedAt.UnixMilli(),
	}
	if err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: 1024,
		Approx: true,
		Values: fields,
	}).Err(); err != nil {
		return err
	}
	return p.rdb.HSet(ctx, "arb:opp:last", fields).Err()
}

// PublishResult records one execution outcome in the stream.
func (p *Publisher) PublishResult(ctx context.Context, res *types.ArbResult) error {
	if p == nil {
		return nil
	}
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream + ":results",
		MaxLen: 1024,
		Approx: true,
		Values: map[string]interface{}{
			"success":    res.Success,
			"tx":         res.TxHash,
			"profit_usd": res.ProfitUSD,
			"err":        res.Err,
			"ts_ms":      time.Now().UnixMilli(),
		},
	}).Err()
}
