package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"github.com/you/flash-arb/internal/config"
	"github.com/you/flash-arb/internal/dash"
	"github.com/you/flash-arb/internal/dex/balancer"
	"github.com/you/flash-arb/internal/dex/camelot"
	"github.com/you/flash-arb/internal/dex/core"
	"github.com/you/flash-arb/internal/dex/univ3"
	"github.com/you/flash-arb/internal/engine"
	"github.com/you/flash-arb/internal/executor"
	"github.com/you/flash-arb/internal/feed"
	"github.com/you/flash-arb/internal/ledger"
	"github.com/you/flash-arb/internal/metrics"
	"github.com/you/flash-arb/internal/multicall"
	"github.com/you/flash-arb/internal/registry"
	"github.com/you/flash-arb/internal/scanner"
	"github.com/you/flash-arb/internal/tokens"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	logger, err := engine.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("received signal, shutting down...")
		cancel()
	}()

	metrics.Serve(ctx, cfg.Metrics.ListenAddr, nil, logger)

	ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCHTTP)
	if err != nil {
		logger.Fatal("failed to dial RPC", zap.Error(err))
	}
	defer ec.Close()

	mc, err := multicall.New(ec, common.HexToAddress(cfg.Chain.Multicall))
	if err != nil {
		logger.Fatal("failed to init multicall client", zap.Error(err))
	}
	toks, err := tokens.NewCache(mc, logger)
	if err != nil {
		logger.Fatal("failed to init token cache", zap.Error(err))
	}

	pools := registry.New(cfg, ec, toks, logger)

	dispatch := core.NewDispatcher()
	uq, err := univ3.NewQuoter(ec, logger)
	if err != nil {
		logger.Fatal("failed to init uniswap quoter", zap.Error(err))
	}
	dispatch.Register(core.KindUniswapV3, uq)
	cq, err := camelot.NewQuoter(ec, logger)
	if err != nil {
		logger.Fatal("failed to init camelot quoter", zap.Error(err))
	}
	dispatch.Register(core.KindCamelotV3, cq)
	bq, err := balancer.NewQuoter(ec, common.HexToAddress(cfg.DEX.Balancer.Vault), logger)
	if err != nil {
		logger.Fatal("failed to init balancer quoter", zap.Error(err))
	}
	dispatch.Register(core.KindBalancerV2, bq)

	book := ledger.New()
	exec, err := executor.New(cfg, ec, book, logger)
	if err != nil {
		logger.Fatal("failed to init executor", zap.Error(err))
	}

	scan := scanner.New(cfg, pools, dispatch, exec, logger)
	pub := feed.NewPublisher(cfg)

	eng := engine.New(cfg, pools, scan, exec, book, pub, dispatch, toks, logger)

	if cfg.Dash.ListenAddr != "" {
		go dash.StartHTTP(ctx, eng.Dash(), eng, cfg.Dash.ListenAddr)
	}

	logger.Info("flash-arb started",
		zap.String("network", cfg.Chain.Network),
		zap.Bool("dry_run", cfg.DryRun),
		zap.Strings("venues", cfg.DEX.Venues),
	)

	eng.Run(ctx)
}
