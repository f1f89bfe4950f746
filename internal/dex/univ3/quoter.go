package univ3

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

// QuoterV2ABI is the minimal fragment for a single-hop simulated quote.
// Exported so tests can pack canned responses with the same ABI.
const QuoterV2ABI = `[
  {"inputs":[{"components":[
     {"internalType":"address","name":"tokenIn","type":"address"},
     {"internalType":"address","name":"tokenOut","type":"address"},
     {"internalType":"uint256","name":"amountIn","type":"uint256"},
     {"internalType":"uint24","name":"fee","type":"uint24"},
     {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
   "internalType":"struct IQuoterV2.QuoteExactInputSingleParams","name":"params","type":"tuple"}],
   "name":"quoteExactInputSingle",
   "outputs":[
     {"internalType":"uint256","name":"amountOut","type":"uint256"},
     {"internalType":"uint160","name":"sqrtPriceX96After","type":"uint160"},
     {"internalType":"uint32","name":"initializedTicksCrossed","type":"uint32"},
     {"internalType":"uint256","name":"gasEstimate","type":"uint256"}],
   "stateMutability":"nonpayable","type":"function"}
]`

// Quoter prices single-hop swaps through the Uniswap V3 QuoterV2. The fee
// tier comes from the candidate pool; a wrong tier would simulate a route
// that is not the pool being scanned.
type Quoter struct {
	log  *zap.Logger
	ec   core.ContractCaller
	qabi abi.ABI
}

func NewQuoter(ec core.ContractCaller, log *zap.Logger) (*Quoter, error) {
	qabi, err := abi.JSON(strings.NewReader(QuoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse quoter v2 abi: %w", err)
	}
	return &Quoter{log: log, ec: ec, qabi: qabi}, nil
}

func (q *Quoter) QuoteOut(ctx context.Context, pool types.CandidatePool, tokenIn, tokenOut types.TokenMeta, amountIn *big.Int) (*big.Int, error) {
	if pool.Quoter == (common.Address{}) {
		return nil, fmt.Errorf("pool %s has no quoter address", pool.Address.Hex())
	}

	params := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		AmountIn          *big.Int
		Fee               *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           tokenIn.Address,
		TokenOut:          tokenOut.Address,
		AmountIn:          amountIn,
		Fee:               big.NewInt(int64(pool.FeeTier)),
		SqrtPriceLimitX96: big.NewInt(0),
	}

	input, err := q.qabi.Pack("quoteExactInputSingle", params)
	if err != nil {
		return nil, fmt.Errorf("pack quoteExactInputSingle: %w", err)
	}

	quoter := pool.Quoter
	res, err := q.ec.CallContract(ctx, ethereum.CallMsg{To: &quoter, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call quoteExactInputSingle: %w", err)
	}

	outs, err := q.qabi.Methods["quoteExactInputSingle"].Outputs.Unpack(res)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("decode quoteExactInputSingle: %w", err)
	}
	amountOut, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected amountOut type %T", outs[0])
	}
	return amountOut, nil
}
