package executor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/ledger"
	"github.com/you/flash-arb/internal/metrics"
	"github.com/you/flash-arb/internal/receiver"
	"github.com/you/flash-arb/internal/tokens"
	"github.com/you/flash-arb/internal/types"
)

// ErrExecutionInFlight rejects a second Execute while one is pending. Two
// flash loans racing on the same loan asset would collide on nonce and
// ordering, so execution is strictly serialized here rather than trusting
// every caller to do it.
var ErrExecutionInFlight = errors.New("an execution is already in flight")

// minProfitFraction sets the receiver's on-chain profit floor below the
// estimate, tolerating quote drift between scan and confirmation.
const minProfitFraction = 0.8

const confirmTimeout = 2 * time.Minute

const balanceOfABI = `[
  {"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Backend is the slice of ethclient.Client the executor needs; tests swap in
// a canned implementation.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Executor struct {
	cfg    *config.Config
	log    *zap.Logger
	be     Backend
	book   *ledger.Ledger
	eabi   abi.ABI
	weth   string
	recv   common.Address
	pk     *ecdsa.PrivateKey
	sender common.Address

	inFlight atomic.Bool
}

// New builds the executor. In live mode the receiver address and signing key
// are required up front: a missing one is a configuration error, never a
// silent fallback to simulation.
func New(cfg *config.Config, be Backend, book *ledger.Ledger, log *zap.Logger) (*Executor, error) {
	eabi, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	e := &Executor{
		cfg:  cfg,
		log:  log,
		be:   be,
		book: book,
		eabi: eabi,
		weth: strings.ToLower(cfg.Lender.WETH),
	}
	if cfg.DryRun {
		return e, nil
	}

	if cfg.Chain.Receiver == "" {
		return nil, fmt.Errorf("live mode: chain.receiver is not configured")
	}
	e.recv = common.HexToAddress(cfg.Chain.Receiver)
	if e.recv == (common.Address{}) {
		return nil, fmt.Errorf("live mode: chain.receiver is not a valid address")
	}
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Chain.WalletPK, "0x"))
	if err != nil {
		return nil, fmt.Errorf("live mode: bad wallet key: %w", err)
	}
	e.pk = pk
	e.sender = crypto.PubkeyToAddress(pk.PublicKey)
	return e, nil
}

// Execute submits one borrow-swap-repay transaction for the opportunity and
// interprets the receipt. A mined revert is a handled failure (the spread
// closed and only gas was lost); submission and confirmation errors propagate.
func (e *Executor) Execute(ctx context.Context, opp *types.ArbOpportunity) (*types.ArbResult, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrExecutionInFlight
	}
	defer e.inFlight.Store(false)

	if e.cfg.DryRun {
		return e.executeDry(opp), nil
	}
	return e.executeLive(ctx, opp)
}

// executeDry never touches the network and always returns the same success
// shape for a given opportunity.
func (e *Executor) executeDry(opp *types.ArbOpportunity) *types.ArbResult {
	e.book.Record(opp.NetProfitUSD)
	metrics.Executions.WithLabelValues("dry").Inc()
	e.log.Info("dry-run execution",
		zap.String("pair", opp.PairKey),
		zap.Float64("net_usd", opp.NetProfitUSD),
	)
	return &types.ArbResult{
		Success:   true,
		TxHash:    "dry-run:" + opp.PairKey,
		ProfitUSD: opp.NetProfitUSD,
	}
}

func (e *Executor) executeLive(ctx context.Context, opp *types.ArbOpportunity) (*types.ArbResult, error) {
	unitUSD := e.assetUSD(opp.LoanAsset, opp.NativeUSD)
	minProfit := tokens.FromFloat(opp.NetProfitUSD*minProfitFraction/unitUSD, opp.LoanAsset.Decimals)

	params, err := receiver.PackParams(receiver.Params{
		BuyRouter:  opp.BuyPool.Router,
		BuyKind:    opp.BuyPool.Kind,
		BuyPoolID:  poolID(opp.BuyPool),
		BuyFee:     big.NewInt(int64(opp.BuyPool.FeeTier)),
		SellRouter: opp.SellPool.Router,
		SellKind:   opp.SellPool.Kind,
		SellPoolID: poolID(opp.SellPool),
		SellFee:    big.NewInt(int64(opp.SellPool.FeeTier)),
		MidToken:   opp.MidToken.Address,
		MinProfit:  minProfit,
	})
	if err != nil {
		return nil, fmt.Errorf("pack receiver params: %w", err)
	}
	input, err := receiver.PackExecute(opp.LoanAsset.Address, opp.LoanAmount, params)
	if err != nil {
		return nil, fmt.Errorf("pack executeArbitrage: %w", err)
	}

	signedTx, err := e.signTx(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	if err := e.be.SendTransaction(ctx, signedTx); err != nil {
		metrics.Executions.WithLabelValues("submit_error").Inc()
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	txHash := signedTx.Hash()
	e.log.Info("flash-loan tx submitted",
		zap.String("tx", txHash.Hex()),
		zap.String("pair", opp.PairKey),
		zap.String("loan", opp.LoanAsset.Symbol),
	)

	rcpt, err := e.waitMined(ctx, txHash)
	if err != nil {
		metrics.Executions.WithLabelValues("confirm_error").Inc()
		return nil, fmt.Errorf("confirm %s: %w", txHash.Hex(), err)
	}

	if rcpt.Status != gethtypes.ReceiptStatusSuccessful {
		metrics.Executions.WithLabelValues("reverted").Inc()
		e.log.Warn("flash-loan tx reverted", zap.String("tx", txHash.Hex()))
		return &types.ArbResult{
			Success: false,
			TxHash:  txHash.Hex(),
			Err:     "spread closed",
		}, nil
	}

	// Correct the estimate with what the transaction actually burned.
	realized := opp.NetProfitUSD
	if rcpt.EffectiveGasPrice != nil {
		spentWei := new(big.Int).Mul(rcpt.EffectiveGasPrice, new(big.Int).SetUint64(rcpt.GasUsed))
		actualGasUSD := tokens.ToFloat(spentWei, 18) * opp.NativeUSD
		realized = opp.NetProfitUSD + opp.GasUSD - actualGasUSD
	}

	e.book.Record(realized)
	metrics.Executions.WithLabelValues("success").Inc()
	e.log.Info("flash-loan executed",
		zap.String("tx", txHash.Hex()),
		zap.Float64("estimated_usd", opp.NetProfitUSD),
		zap.Float64("realized_usd", realized),
		zap.Uint64("gas_used", rcpt.GasUsed),
	)
	return &types.ArbResult{
		Success:   true,
		TxHash:    txHash.Hex(),
		ProfitUSD: realized,
	}, nil
}

func poolID(p types.CandidatePool) [32]byte {
	if p.BalancerPoolID != ([32]byte{}) {
		return p.BalancerPoolID
	}
	return receiver.PoolID(p.Address)
}

func (e *Executor) assetUSD(asset types.TokenMeta, nativeUSD float64) float64 {
	if strings.ToLower(asset.Address.Hex()) == e.weth && nativeUSD > 0 {
		return nativeUSD
	}
	return 1.0
}

func (e *Executor) signTx(ctx context.Context, input []byte) (*gethtypes.Transaction, error) {
	chainID, err := e.be.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	nonce, err := e.be.PendingNonceAt(ctx, e.sender)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	gasTipCap, err := e.be.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip cap: %w", err)
	}
	header, err := e.be.HeaderByNumber(ctx, nil)
	if err != nil || header.BaseFee == nil {
		return nil, fmt.Errorf("get header/base fee: %w", err)
	}
	gasFeeCap := new(big.Int).Add(
		new(big.Int).Mul(header.BaseFee, big.NewInt(2)),
		gasTipCap,
	)

	// the gas ceiling bounds the worst case: a revert path must not be able
	// to consume unbounded gas
	to := e.recv
	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       e.cfg.Chain.GasLimitFlash,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      input,
	})
	return gethtypes.SignTx(tx, gethtypes.NewLondonSigner(chainID), e.pk)
}

// waitMined polls for the receipt until one confirmation or timeout.
func (e *Executor) waitMined(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, confirmTimeout)
	defer cancel()

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		rcpt, err := e.be.TransactionReceipt(ctx, txHash)
		if err == nil && rcpt != nil {
			return rcpt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-tick.C:
		}
	}
}

// EstimateGasUSD prices one flash-loan transaction's gas at current network
// conditions, preferring EIP-1559 base fee + tip over the legacy suggestion.
func (e *Executor) EstimateGasUSD(ctx context.Context, nativeUSD float64) (float64, error) {
	header, err := e.be.HeaderByNumber(ctx, nil)
	if err != nil || header.BaseFee == nil {
		gp, err := e.be.SuggestGasPrice(ctx)
		if err != nil {
			return 0, fmt.Errorf("suggest gas price: %w", err)
		}
		gasWei := new(big.Int).Mul(gp, new(big.Int).SetUint64(e.cfg.Chain.GasLimitFlash))
		return tokens.ToFloat(gasWei, 18) * nativeUSD, nil
	}
	tip, err := e.be.SuggestGasTipCap(ctx)
	if err != nil {
		tip = big.NewInt(1e9) // 1 gwei fallback
	}
	eff := new(big.Int).Add(header.BaseFee, tip)
	gasWei := new(big.Int).Mul(eff, new(big.Int).SetUint64(e.cfg.Chain.GasLimitFlash))
	return tokens.ToFloat(gasWei, 18) * nativeUSD, nil
}

// Balance reads the current loan-asset balance of the profit-collecting
// account (the receiver contract in live mode).
func (e *Executor) Balance(ctx context.Context, asset common.Address) (*big.Int, error) {
	holder := e.recv
	if e.cfg.DryRun {
		return new(big.Int), nil
	}
	input, err := e.eabi.Pack("balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	res, err := e.be.CallContract(ctx, ethereum.CallMsg{To: &asset, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	outs, err := e.eabi.Methods["balanceOf"].Outputs.Unpack(res)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("decode balanceOf: %w", err)
	}
	bal, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balance type %T", outs[0])
	}
	return bal, nil
}
