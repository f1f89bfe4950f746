// Package balancer quotes pools held in the shared Balancer V2 vault. Pools
// are addressed by a bytes32 pool id rather than a contract address, and the
// vault's queryBatchSwap dry-runs the swap without touching state.
package balancer

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/types"
)

// VaultABI is the queryBatchSwap fragment. Exported for test fixtures.
const VaultABI = `[
  {"inputs":[
    {"internalType":"uint8","name":"kind","type":"uint8"},
    {"components":[
       {"internalType":"bytes32","name":"poolId","type":"bytes32"},
       {"internalType":"uint256","name":"assetInIndex","type":"uint256"},
       {"internalType":"uint256","name":"assetOutIndex","type":"uint256"},
       {"internalType":"uint256","name":"amount","type":"uint256"},
       {"internalType":"bytes","name":"userData","type":"bytes"}],
     "internalType":"struct IVault.BatchSwapStep[]","name":"swaps","type":"tuple[]"},
    {"internalType":"address[]","name":"assets","type":"address[]"},
    {"components":[
       {"internalType":"address","name":"sender","type":"address"},
       {"internalType":"bool","name":"fromInternalBalance","type":"bool"},
       {"internalType":"address","name":"recipient","type":"address"},
       {"internalType":"bool","name":"toInternalBalance","type":"bool"}],
     "internalType":"struct IVault.FundManagement","name":"funds","type":"tuple"}],
   "name":"queryBatchSwap",
   "outputs":[{"internalType":"int256[]","name":"","type":"int256[]"}],
   "stateMutability":"nonpayable","type":"function"}
]`

const swapKindGivenIn = uint8(0)

type Quoter struct {
	log   *zap.Logger
	ec    core.ContractCaller
	vabi  abi.ABI
	vault common.Address
}

func NewQuoter(ec core.ContractCaller, vault common.Address, log *zap.Logger) (*Quoter, error) {
	vabi, err := abi.JSON(strings.NewReader(VaultABI))
	if err != nil {
		return nil, fmt.Errorf("parse vault abi: %w", err)
	}
	return &Quoter{log: log, ec: ec, vabi: vabi, vault: vault}, nil
}

type batchSwapStep struct {
	PoolId        [32]byte
	AssetInIndex  *big.Int
	AssetOutIndex *big.Int
	Amount        *big.Int
	UserData      []byte
}

type fundManagement struct {
	Sender              common.Address
	FromInternalBalance bool
	Recipient           common.Address
	ToInternalBalance   bool
}

// QuoteOut dry-runs a single GIVEN_IN step through the vault. The vault
// returns one signed delta per asset: positive means the vault takes the
// asset, negative means it pays it out, so the quoted output is the absolute
// value of the tokenOut delta.
func (q *Quoter) QuoteOut(ctx context.Context, pool types.CandidatePool, tokenIn, tokenOut types.TokenMeta, amountIn *big.Int) (*big.Int, error) {
	if pool.BalancerPoolID == ([32]byte{}) {
		return nil, fmt.Errorf("pool %s has no balancer pool id", pool.Address.Hex())
	}

	steps := []batchSwapStep{{
		PoolId:        pool.BalancerPoolID,
		AssetInIndex:  big.NewInt(0),
		AssetOutIndex: big.NewInt(1),
		Amount:        amountIn,
		UserData:      []byte{},
	}}
	assets := []common.Address{tokenIn.Address, tokenOut.Address}
	funds := fundManagement{}

	input, err := q.vabi.Pack("queryBatchSwap", swapKindGivenIn, steps, assets, funds)
	if err != nil {
		return nil, fmt.Errorf("pack queryBatchSwap: %w", err)
	}

	vault := q.vault
	res, err := q.ec.CallContract(ctx, ethereum.CallMsg{To: &vault, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call queryBatchSwap: %w", err)
	}

	outs, err := q.vabi.Methods["queryBatchSwap"].Outputs.Unpack(res)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("decode queryBatchSwap: %w", err)
	}
	deltas, ok := outs[0].([]*big.Int)
	if !ok || len(deltas) != 2 {
		return nil, fmt.Errorf("unexpected deltas shape %T", outs[0])
	}
	outDelta := deltas[1]
	if outDelta.Sign() >= 0 {
		return nil, fmt.Errorf("vault pays nothing out (delta %s)", outDelta)
	}
	return new(big.Int).Neg(outDelta), nil
}
