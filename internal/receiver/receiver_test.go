package receiver

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/you/flash-arb/internal/dex/core"
)

func TestVenueCodesMatchQuoterKinds(t *testing.T) {
	assert.Equal(t, core.KindUniswapV3, VenueUniswapV3)
	assert.Equal(t, core.KindCamelotV3, VenueCamelotV3)
	assert.Equal(t, core.KindBalancerV2, VenueBalancerV2)

	assert.Equal(t, uint8(0), VenueUniswapV3)
	assert.Equal(t, uint8(1), VenueCamelotV3)
	assert.Equal(t, uint8(2), VenueBalancerV2)
}

func TestPackParamsRoundTrip(t *testing.T) {
	p := Params{
		BuyRouter:  common.HexToAddress("0x00000000000000000000000000000000000000d1"),
		BuyKind:    VenueUniswapV3,
		BuyPoolID:  PoolID(common.HexToAddress("0x00000000000000000000000000000000000000a1")),
		BuyFee:     big.NewInt(500),
		SellRouter: common.HexToAddress("0x00000000000000000000000000000000000000d2"),
		SellKind:   VenueBalancerV2,
		SellPoolID: [32]byte{0xde, 0xad},
		MidToken:   common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
		MinProfit:  big.NewInt(18_000_000),
	}

	out, err := PackParams(p)
	assert.NoError(t, err)
	// ten static fields, one word each
	assert.Len(t, out, 10*32)

	vals, err := paramsArgs.Unpack(out)
	assert.NoError(t, err)
	assert.Equal(t, p.BuyRouter, vals[0].(common.Address))
	assert.Equal(t, p.BuyKind, vals[1].(uint8))
	assert.Equal(t, p.BuyPoolID, vals[2].([32]byte))
	assert.Equal(t, int64(500), vals[3].(*big.Int).Int64())
	assert.Equal(t, p.SellRouter, vals[4].(common.Address))
	assert.Equal(t, p.SellKind, vals[5].(uint8))
	assert.Equal(t, p.SellPoolID, vals[6].([32]byte))
	assert.Equal(t, int64(0), vals[7].(*big.Int).Int64()) // nil fee packs as zero
	assert.Equal(t, p.MidToken, vals[8].(common.Address))
	assert.Equal(t, int64(18_000_000), vals[9].(*big.Int).Int64())
}

func TestPoolIDRightAlignsAddress(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	id := PoolID(addr)

	assert.Equal(t, [12]byte{}, [12]byte(id[:12]))
	assert.Equal(t, addr.Bytes(), id[12:])
}

func TestPackExecuteSelector(t *testing.T) {
	data, err := PackExecute(
		common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
		big.NewInt(1000e6),
		[]byte{0x01, 0x02},
	)
	assert.NoError(t, err)
	// 4-byte selector plus ABI-encoded args
	assert.Greater(t, len(data), 4)
	sig := crypto.Keccak256([]byte("executeArbitrage(address,uint256,bytes)"))
	assert.Equal(t, sig[:4], data[:4])
}
