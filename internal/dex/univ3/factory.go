package univ3

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/you/flash-arb/internal/dex/core"
)

const factoryABI = `[
  {"inputs":[
    {"internalType":"address","name":"tokenA","type":"address"},
    {"internalType":"address","name":"tokenB","type":"address"},
    {"internalType":"uint24","name":"fee","type":"uint24"}],
   "name":"getPool",
   "outputs":[{"internalType":"address","name":"pool","type":"address"}],
   "stateMutability":"view","type":"function"}
]`

// FindPool probes the factory across the given fee tiers and returns the
// first tier with a deployed pool. Iteration order is the configured tier
// order, so putting the common tiers first makes discovery cheaper.
func FindPool(ctx context.Context, ec core.ContractCaller, factory, tokenA, tokenB common.Address, tiers []uint32) (common.Address, uint32, error) {
	fabi, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return common.Address{}, 0, fmt.Errorf("parse factory abi: %w", err)
	}

	// the factory expects tokenA < tokenB
	a, b := tokenA, tokenB
	if strings.ToLower(b.Hex()) < strings.ToLower(a.Hex()) {
		a, b = b, a
	}

	var lastErr error
	for _, fee := range tiers {
		input, err := fabi.Pack("getPool", a, b, big.NewInt(int64(fee)))
		if err != nil {
			return common.Address{}, 0, fmt.Errorf("pack getPool: %w", err)
		}
		res, err := ec.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: input}, nil)
		if err != nil {
			lastErr = fmt.Errorf("call getPool(fee=%d): %w", fee, err)
			continue
		}
		outs, err := fabi.Unpack("getPool", res)
		if err != nil || len(outs) != 1 {
			lastErr = fmt.Errorf("decode getPool(fee=%d): %w", fee, err)
			continue
		}
		addr := outs[0].(common.Address)
		if addr != (common.Address{}) {
			return addr, fee, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no pool on tiers %v", tiers)
	}
	return common.Address{}, 0, lastErr
}
