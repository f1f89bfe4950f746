package types

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenMeta describes an ERC-20 asset. Symbol and decimals are read on-chain
// once and cached for the process lifetime.
type TokenMeta struct {
	Address  common.Address
	Symbol   string
	Decimals int
}

// CandidatePool is one liquidity venue for a token pair, produced by a
// registry refresh and consumed by the scanner.
type CandidatePool struct {
	Address common.Address
	Kind    uint8 // core.VenueKind, kept as the raw code the receiver expects

	// Venue routing handles. Router/Quoter are per-venue contract addresses;
	// FeeTier is meaningful for Uniswap V3 only; BalancerPoolID is the vault
	// pool id for Balancer pools and zero otherwise.
	Router         common.Address
	Quoter         common.Address
	FeeTier        uint32
	BalancerPoolID [32]byte

	Token0 TokenMeta
	Token1 TokenMeta

	TVLUSD   float64
	FlashUSD float64 // per-pool flash-loan notional, clamped to [floor, cap]
}

// Key returns the canonical pair key for the pool's two tokens.
func (p CandidatePool) Key() string {
	return PairKey(p.Token0.Address, p.Token1.Address)
}

// PairKey builds an order-independent identifier for a two-token market:
// the two addresses lowercased and joined lexicographically.
func PairKey(a, b common.Address) string {
	x := strings.ToLower(a.Hex())
	y := strings.ToLower(b.Hex())
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

// ArbOpportunity is a detected profitable spread. It is transient: consumed
// by the executor right away or discarded.
type ArbOpportunity struct {
	PairKey string

	LoanAsset  TokenMeta
	LoanAmount *big.Int // loan asset base units
	LoanUSD    float64

	BuyPool   CandidatePool
	SellPool  CandidatePool
	MidToken  TokenMeta // intermediate token bought on the buy leg
	MidAmount *big.Int

	GrossProfitUSD float64
	LendingFeeUSD  float64
	GasUSD         float64
	NetProfitUSD   float64

	NativeUSD  float64 // native-asset price used for gas costing at detection
	DetectedAt time.Time
}

// ArbResult is the outcome of a single execution attempt. A mined-but-reverted
// transaction yields Success=false with TxHash set; only submission or
// confirmation failures surface as errors.
type ArbResult struct {
	Success   bool
	TxHash    string
	ProfitUSD float64
	Err       string
}

// ProfitLogEntry is one realized-profit sample kept by the ledger.
type ProfitLogEntry struct {
	Ts        time.Time
	AmountUSD float64
}
