package executor

import (
	"context"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/ledger"
	"github.com/you/flash-arb/internal/types"
	"go.uber.org/zap"
)

type fakeBackend struct {
	sent          *gethtypes.Transaction
	receiptStatus uint64
	gasUsed       uint64
	effGasPrice   *big.Int
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(42161), nil }
func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}
func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1e8), nil
}
func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1e9), nil
}
func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{BaseFee: big.NewInt(1e9)}, nil
}
func (f *fakeBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	f.sent = tx
	return nil
}
func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	return &gethtypes.Receipt{
		Status:            f.receiptStatus,
		GasUsed:           f.gasUsed,
		EffectiveGasPrice: f.effGasPrice,
	}, nil
}
func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return common.LeftPadBytes(big.NewInt(123).Bytes(), 32), nil
}

func testOpportunity() *types.ArbOpportunity {
	usdc := types.TokenMeta{Address: common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), Symbol: "USDC", Decimals: 6}
	weth := types.TokenMeta{Address: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), Symbol: "WETH", Decimals: 18}
	return &types.ArbOpportunity{
		PairKey:    types.PairKey(usdc.Address, weth.Address),
		LoanAsset:  usdc,
		LoanAmount: big.NewInt(1000e6),
		LoanUSD:    1000,
		BuyPool: types.CandidatePool{
			Address: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
			Kind:    0,
			Router:  common.HexToAddress("0x00000000000000000000000000000000000000d1"),
			FeeTier: 500,
		},
		SellPool: types.CandidatePool{
			Address: common.HexToAddress("0x00000000000000000000000000000000000000b2"),
			Kind:    1,
			Router:  common.HexToAddress("0x00000000000000000000000000000000000000d2"),
		},
		MidToken:       weth,
		MidAmount:      big.NewInt(5e17),
		GrossProfitUSD: 25,
		LendingFeeUSD:  0.5,
		GasUSD:         2,
		NetProfitUSD:   22.5,
		NativeUSD:      2000,
	}
}

func dryConfig() *config.Config {
	cfg := &config.Config{DryRun: true}
	cfg.Chain.GasLimitFlash = 1_200_000
	return cfg
}

func liveConfig(t *testing.T) *config.Config {
	t.Helper()
	pk, err := crypto.GenerateKey()
	assert.NoError(t, err)

	cfg := &config.Config{}
	cfg.Chain.Receiver = "0x00000000000000000000000000000000000000cc"
	cfg.Chain.WalletPK = common.Bytes2Hex(crypto.FromECDSA(pk))
	cfg.Chain.GasLimitFlash = 1_200_000
	return cfg
}

func TestDryRunIsDeterministicAndOffline(t *testing.T) {
	book := ledger.New()
	e, err := New(dryConfig(), nil, book, zap.NewNop())
	assert.NoError(t, err)

	opp := testOpportunity()
	first, err := e.Execute(context.Background(), opp)
	assert.NoError(t, err)
	second, err := e.Execute(context.Background(), opp)
	assert.NoError(t, err)

	assert.True(t, first.Success)
	assert.Equal(t, "dry-run:"+opp.PairKey, first.TxHash)
	assert.Equal(t, first, second)
	assert.InDelta(t, 45.0, book.Last24h(), 1e-9)
}

func TestLiveModeRequiresReceiver(t *testing.T) {
	cfg := liveConfig(t)
	cfg.Chain.Receiver = ""
	_, err := New(cfg, &fakeBackend{}, ledger.New(), zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chain.receiver")
}

func TestLiveModeRequiresValidWalletKey(t *testing.T) {
	cfg := liveConfig(t)
	cfg.Chain.WalletPK = "not-a-key"
	_, err := New(cfg, &fakeBackend{}, ledger.New(), zap.NewNop())
	assert.Error(t, err)
}

func TestMinedRevertIsHandledFailure(t *testing.T) {
	be := &fakeBackend{receiptStatus: gethtypes.ReceiptStatusFailed, gasUsed: 400_000, effGasPrice: big.NewInt(1e9)}
	book := ledger.New()
	e, err := New(liveConfig(t), be, book, zap.NewNop())
	assert.NoError(t, err)

	res, err := e.Execute(context.Background(), testOpportunity())
	assert.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "spread closed", res.Err)
	assert.NotEmpty(t, res.TxHash)
	assert.NotNil(t, be.sent)
	// a revert burns gas but records no profit
	assert.InDelta(t, 0.0, book.Last24h(), 1e-9)
}

func TestRealizedProfitUsesActualGas(t *testing.T) {
	// 500k gas at 1 gwei is 0.0005 ETH, 1 USD at a 2000 native price,
	// half the 2 USD estimate baked into the opportunity
	be := &fakeBackend{
		receiptStatus: gethtypes.ReceiptStatusSuccessful,
		gasUsed:       500_000,
		effGasPrice:   big.NewInt(1e9),
	}
	book := ledger.New()
	e, err := New(liveConfig(t), be, book, zap.NewNop())
	assert.NoError(t, err)

	res, err := e.Execute(context.Background(), testOpportunity())
	assert.NoError(t, err)
	assert.True(t, res.Success)
	assert.InDelta(t, 23.5, res.ProfitUSD, 1e-9)
	assert.InDelta(t, 23.5, book.Last24h(), 1e-9)
}

func TestExecuteRejectsConcurrentCall(t *testing.T) {
	e, err := New(dryConfig(), nil, ledger.New(), zap.NewNop())
	assert.NoError(t, err)

	e.inFlight.Store(true)
	_, err = e.Execute(context.Background(), testOpportunity())
	assert.ErrorIs(t, err, ErrExecutionInFlight)

	e.inFlight.Store(false)
	_, err = e.Execute(context.Background(), testOpportunity())
	assert.NoError(t, err)
}

func TestEstimateGasUSDPrefersBaseFee(t *testing.T) {
	be := &fakeBackend{}
	cfg := dryConfig()
	cfg.Chain.GasLimitFlash = 1_000_000
	e, err := New(cfg, be, ledger.New(), zap.NewNop())
	assert.NoError(t, err)

	// (1 gwei base + 0.1 gwei tip) * 1M gas = 0.0011 ETH = 2.2 USD at 2000
	usd, err := e.EstimateGasUSD(context.Background(), 2000)
	assert.NoError(t, err)
	assert.InDelta(t, 2.2, usd, 1e-9)
}
