// Package camelot quotes Algebra-style pools (Camelot V3). Fees are dynamic:
// the pool decides the effective fee at execution time, so the fee bytes in
// the quote path are a routing-format artifact and a nominal default is fine
// for estimation.
package camelot

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

// QuoterABI is the path-encoded exact-input quote entry point. Exported for
// test fixtures.
const QuoterABI = `[
  {"inputs":[
    {"internalType":"bytes","name":"path","type":"bytes"},
    {"internalType":"uint256","name":"amountIn","type":"uint256"}],
   "name":"quoteExactInput",
   "outputs":[
    {"internalType":"uint256","name":"amountOut","type":"uint256"},
    {"internalType":"uint16[]","name":"fees","type":"uint16[]"}],
   "stateMutability":"nonpayable","type":"function"}
]`

// pathFeePlaceholder fills the 3 fee bytes of the encoded route. The pool's
// on-chain state overrides it when the swap actually runs.
const pathFeePlaceholder = uint32(500)

type Quoter struct {
	log  *zap.Logger
	ec   core.ContractCaller
	qabi abi.ABI
}

func NewQuoter(ec core.ContractCaller, log *zap.Logger) (*Quoter, error) {
	qabi, err := abi.JSON(strings.NewReader(QuoterABI))
	if err != nil {
		return nil, fmt.Errorf("parse camelot quoter abi: %w", err)
	}
	return &Quoter{log: log, ec: ec, qabi: qabi}, nil
}

// EncodePath builds the single-hop route blob: tokenIn ++ fee24 ++ tokenOut.
func EncodePath(tokenIn, tokenOut common.Address, fee uint32) []byte {
	path := make([]byte, 0, 20+3+20)
	path = append(path, tokenIn.Bytes()...)
	path = append(path, byte(fee>>16), byte(fee>>8), byte(fee))
	path = append(path, tokenOut.Bytes()...)
	return path
}

func (q *Quoter) QuoteOut(ctx context.Context, pool types.CandidatePool, tokenIn, tokenOut types.TokenMeta, amountIn *big.Int) (*big.Int, error) {
	if pool.Quoter == (common.Address{}) {
		return nil, fmt.Errorf("pool %s has no quoter address", pool.Address.Hex())
	}

	path := EncodePath(tokenIn.Address, tokenOut.Address, pathFeePlaceholder)
	input, err := q.qabi.Pack("quoteExactInput", path, amountIn)
	if err != nil {
		return nil, fmt.Errorf("pack quoteExactInput: %w", err)
	}

	quoter := pool.Quoter
	res, err := q.ec.CallContract(ctx, ethereum.CallMsg{To: &quoter, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call quoteExactInput: %w", err)
	}

	outs, err := q.qabi.Methods["quoteExactInput"].Outputs.Unpack(res)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("decode quoteExactInput: %w", err)
	}
	amountOut, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected amountOut type %T", outs[0])
	}
	return amountOut, nil
}
