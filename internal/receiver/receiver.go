// Package receiver is the interface boundary to the deployed flash-loan
// receiver contract. The engine never implements the contract's swap dispatch;
// it only has to agree with it bit-for-bit on two things: the venue type codes
// and the order of the execution parameter tuple. Both live here so the
// agreement is a single testable artifact instead of folklore.
package receiver

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Venue type codes as compiled into the receiver contract.
const (
	VenueUniswapV3  uint8 = 0
	VenueCamelotV3  uint8 = 1
	VenueBalancerV2 uint8 = 2
)

// ABI is the receiver's single entry point: it takes the flash loan for
// `asset`/`amount` from the lender and runs both swap legs per `params`.
const ABI = `[
  {"inputs":[
    {"internalType":"address","name":"asset","type":"address"},
    {"internalType":"uint256","name":"amount","type":"uint256"},
    {"internalType":"bytes","name":"params","type":"bytes"}],
   "name":"executeArbitrage","outputs":[],
   "stateMutability":"nonpayable","type":"function"}
]`

// Params is the fixed-order tuple the receiver decodes out of the opaque
// params bytes. Reordering any field silently misroutes funds inside the
// atomic transaction; it does not produce a clean failure.
type Params struct {
	BuyRouter  common.Address
	BuyKind    uint8
	BuyPoolID  [32]byte
	BuyFee     *big.Int
	SellRouter common.Address
	SellKind   uint8
	SellPoolID [32]byte
	SellFee    *big.Int
	MidToken   common.Address
	MinProfit  *big.Int
}

var paramsArgs = abi.Arguments{
	{Name: "buyRouter", Type: mustType("address")},
	{Name: "buyKind", Type: mustType("uint8")},
	{Name: "buyPoolId", Type: mustType("bytes32")},
	{Name: "buyFee", Type: mustType("uint24")},
	{Name: "sellRouter", Type: mustType("address")},
	{Name: "sellKind", Type: mustType("uint8")},
	{Name: "sellPoolId", Type: mustType("bytes32")},
	{Name: "sellFee", Type: mustType("uint24")},
	{Name: "midToken", Type: mustType("address")},
	{Name: "minProfit", Type: mustType("uint256")},
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// PackParams ABI-encodes the tuple in the order the contract decodes it.
func PackParams(p Params) ([]byte, error) {
	if p.BuyFee == nil {
		p.BuyFee = new(big.Int)
	}
	if p.SellFee == nil {
		p.SellFee = new(big.Int)
	}
	if p.MinProfit == nil {
		p.MinProfit = new(big.Int)
	}
	return paramsArgs.Pack(
		p.BuyRouter, p.BuyKind, p.BuyPoolID, p.BuyFee,
		p.SellRouter, p.SellKind, p.SellPoolID, p.SellFee,
		p.MidToken, p.MinProfit,
	)
}

// PoolID widens a pool address into the bytes32 identifier slot. Balancer
// pools carry a native bytes32 id and skip this helper.
func PoolID(addr common.Address) [32]byte {
	var id [32]byte
	copy(id[12:], addr.Bytes())
	return id
}

// PackExecute encodes the executeArbitrage calldata.
func PackExecute(asset common.Address, amount *big.Int, params []byte) ([]byte, error) {
	rabi, err := abi.JSON(strings.NewReader(ABI))
	if err != nil {
		return nil, fmt.Errorf("parse receiver abi: %w", err)
	}
	return rabi.Pack("executeArbitrage", asset, amount, params)
}
