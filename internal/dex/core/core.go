package core

import (
	"context"
	"errors"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"

	"github.com/you/flash-arb/internal/types"
)

// VenueKind is the numeric venue code shared with the on-chain receiver.
// The values are part of the wire contract: the receiver dispatches its swap
// legs on the same constants, so they must never be renumbered.
type VenueKind = uint8

const (
	KindUniswapV3  VenueKind = 0
	KindCamelotV3  VenueKind = 1
	KindBalancerV2 VenueKind = 2
)

// VenueName maps the index's venue identifiers to kinds.
var VenueName = map[string]VenueKind{
	"uniswap_v3":  KindUniswapV3,
	"camelot_v3":  KindCamelotV3,
	"balancer_v2": KindBalancerV2,
}

// ErrNoQuote marks a pool that could not be priced this cycle: the simulated
// call reverted, timed out, or returned garbage. It is never fatal.
var ErrNoQuote = errors.New("no quote")

// ContractCaller is the slice of ethclient.Client the quoters need. Narrow on
// purpose so tests can substitute a canned backend.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Quoter prices one (pool, direction, amount) leg with a read-only simulation.
type Quoter interface {
	QuoteOut(ctx context.Context, pool types.CandidatePool, tokenIn, tokenOut types.TokenMeta, amountIn *big.Int) (*big.Int, error)
}
