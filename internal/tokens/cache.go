package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/multicall"
	"github.com/you/flash-arb/internal/types"
)

// ErrNotToken is returned when an address does not answer symbol()/decimals():
// a non-token contract, a reverted call, or junk data. Callers drop whatever
// depended on the lookup and move on.
var ErrNotToken = errors.New("not an erc20 token")

const erc20ABI = `[
  {"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// Cache resolves and memoizes on-chain token metadata. Token metadata is
// immutable for practical purposes, so entries never expire; the LRU bound
// only protects against unbounded growth on long-running processes.
type Cache struct {
	mc   multicall.IClient
	eabi abi.ABI
	log  *zap.Logger
	mem  *lru.Cache[common.Address, types.TokenMeta]
}

func NewCache(mc multicall.IClient, log *zap.Logger) (*Cache, error) {
	eabi, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	mem, err := lru.New[common.Address, types.TokenMeta](4096)
	if err != nil {
		return nil, err
	}
	return &Cache{mc: mc, eabi: eabi, log: log, mem: mem}, nil
}

// Resolve returns the token's metadata, reading symbol and decimals in one
// multicall batch on a miss.
func (c *Cache) Resolve(ctx context.Context, addr common.Address) (types.TokenMeta, error) {
	if meta, ok := c.mem.Get(addr); ok {
		return meta, nil
	}

	symData, err := c.eabi.Pack("symbol")
	if err != nil {
		return types.TokenMeta{}, fmt.Errorf("pack symbol: %w", err)
	}
	decData, err := c.eabi.Pack("decimals")
	if err != nil {
		return types.TokenMeta{}, fmt.Errorf("pack decimals: %w", err)
	}

	results, err := c.mc.TryAggregate(ctx, []multicall.Call{
		{Target: addr, CallData: symData},
		{Target: addr, CallData: decData},
	})
	if err != nil {
		return types.TokenMeta{}, fmt.Errorf("metadata multicall: %w", err)
	}
	if !results[0].Success || !results[1].Success {
		return types.TokenMeta{}, fmt.Errorf("%s: %w", addr.Hex(), ErrNotToken)
	}

	symOuts, err := c.eabi.Methods["symbol"].Outputs.Unpack(results[0].Data)
	if err != nil || len(symOuts) == 0 {
		return types.TokenMeta{}, fmt.Errorf("decode symbol for %s: %w", addr.Hex(), ErrNotToken)
	}
	symbol, ok := symOuts[0].(string)
	if !ok {
		return types.TokenMeta{}, fmt.Errorf("symbol type %T for %s: %w", symOuts[0], addr.Hex(), ErrNotToken)
	}

	decOuts, err := c.eabi.Methods["decimals"].Outputs.Unpack(results[1].Data)
	if err != nil || len(decOuts) == 0 {
		return types.TokenMeta{}, fmt.Errorf("decode decimals for %s: %w", addr.Hex(), ErrNotToken)
	}
	var decimals int
	switch v := decOuts[0].(type) {
	case uint8:
		decimals = int(v)
	default:
		return types.TokenMeta{}, fmt.Errorf("decimals type %T for %s: %w", decOuts[0], addr.Hex(), ErrNotToken)
	}

	meta := types.TokenMeta{Address: addr, Symbol: symbol, Decimals: decimals}
	c.mem.Add(addr, meta)
	c.log.Debug("token resolved",
		zap.String("addr", addr.Hex()),
		zap.String("symbol", symbol),
		zap.Int("decimals", decimals),
	)
	return meta, nil
}

// Len reports the number of memoized tokens, for diagnostics.
func (c *Cache) Len() int { return c.mem.Len() }
