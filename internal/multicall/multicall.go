package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Multicall3-style tryAggregate: per-call success flags, so one bad token
// read cannot poison a metadata batch.
const multicallABI = `[
{
    "inputs": [
        {"name": "requireSuccess", "type": "bool"},
        {
            "components": [
                {"name": "target", "type": "address"},
                {"name": "callData", "type": "bytes"}
            ],
            "name": "calls",
            "type": "tuple[]"
        }
    ],
    "name": "tryAggregate",
    "outputs": [
        {
            "components": [
                {"name": "success", "type": "bool"},
                {"name": "returnData", "type": "bytes"}
            ],
            "name": "returnData",
            "type": "tuple[]"
        }
    ],
    "stateMutability": "payable",
    "type": "function"
}
]`

type caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type IClient interface {
	TryAggregate(ctx context.Context, calls []Call) ([]Result, error)
}

type Client struct {
	c    caller
	addr common.Address
	abi  abi.ABI
}

func New(c caller, multicallAddr common.Address) (IClient, error) {
	parsedABI, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("bad abi: %w", err)
	}
	return &Client{c: c, addr: multicallAddr, abi: parsedABI}, nil
}

type Call struct {
	Target   common.Address
	CallData []byte
}

type Result struct {
	Success bool
	Data    []byte
}

func (c *Client) TryAggregate(ctx context.Context, calls []Call) ([]Result, error) {
	payload, err := c.abi.Pack("tryAggregate", false, calls)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}

	res, err := c.c.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call tryAggregate: %w", err)
	}

	var raw struct {
		ReturnData []struct {
			Success    bool
			ReturnData []byte
		}
	}
	if err := c.abi.UnpackIntoInterface(&raw, "tryAggregate", res); err != nil {
		return nil, fmt.Errorf("unpack tryAggregate: %w", err)
	}
	if len(raw.ReturnData) != len(calls) {
		return nil, fmt.Errorf("tryAggregate returned %d results for %d calls", len(raw.ReturnData), len(calls))
	}

	out := make([]Result, len(calls))
	for i, r := range raw.ReturnData {
		out[i] = Result{Success: r.Success && len(r.ReturnData) > 0, Data: r.ReturnData}
	}
	return out, nil
}
