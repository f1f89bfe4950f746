package camelot

import (
	"context"
	"fmt"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/you/flash-arb/internal/dex/core"
)

// Algebra factories keep one pool per pair, no fee dimension.
const factoryABI = `[
  {"inputs":[
    {"internalType":"address","name":"tokenA","type":"address"},
    {"internalType":"address","name":"tokenB","type":"address"}],
   "name":"poolByPair",
   "outputs":[{"internalType":"address","name":"pool","type":"address"}],
   "stateMutability":"view","type":"function"}
]`

func FindPool(ctx context.Context, ec core.ContractCaller, factory, tokenA, tokenB common.Address) (common.Address, error) {
	fabi, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}

	input, err := fabi.Pack("poolByPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, fmt.Errorf("pack poolByPair: %w", err)
	}
	res, err := ec.CallContract(ctx, ethereum.CallMsg{To: &factory, Data: input}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call poolByPair: %w", err)
	}
	outs, err := fabi.Unpack("poolByPair", res)
	if err != nil || len(outs) != 1 {
		return common.Address{}, fmt.Errorf("decode poolByPair: %w", err)
	}
	addr := outs[0].(common.Address)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no camelot pool for %s/%s", tokenA.Hex(), tokenB.Hex())
	}
	return addr, nil
}
