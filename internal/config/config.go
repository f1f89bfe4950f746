package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ChainCfg struct {
	Network            string  `yaml:"network"`
	RPCHTTP            string  `yaml:"rpc_http"`
	WalletPK           string  `yaml:"wallet_pk"`
	Receiver           string  `yaml:"receiver"`  // deployed flash-loan receiver contract
	Multicall          string  `yaml:"multicall"` // Multicall3 for batched metadata reads
	MaxPriorityFeeGwei float64 `yaml:"max_priority_fee_gwei"`
	GasLimitFlash      uint64  `yaml:"gas_limit_flash"`
}

type IndexCfg struct {
	URL        string `yaml:"url"`
	TopN       int    `yaml:"top_n"`
	MinTVLUSD  float64 `yaml:"min_tvl_usd"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type UniV3Cfg struct {
	Factory  string   `yaml:"factory"`
	QuoterV2 string   `yaml:"quoter_v2"`
	Router   string   `yaml:"router"`
	FeeTiers []uint32 `yaml:"fee_tiers"`
}

type CamelotCfg struct {
	Factory string `yaml:"factory"`
	Quoter  string `yaml:"quoter"`
	Router  string `yaml:"router"`
}

type BalancerCfg struct {
	Vault string `yaml:"vault"`
}

type DEXCfg struct {
	Venues   []string    `yaml:"venues"`
	UniV3    UniV3Cfg    `yaml:"uniswap_v3"`
	Camelot  CamelotCfg  `yaml:"camelot_v3"`
	Balancer BalancerCfg `yaml:"balancer_v2"`
}

type LenderCfg struct {
	Pool   string   `yaml:"pool"`    // Aave v3 pool
	FeeBps int      `yaml:"fee_bps"` // flash-loan premium
	Assets []string `yaml:"assets"`  // borrowable reserves
	WETH   string   `yaml:"weth"`    // native-asset wrapper, priced at the scan-time native price
}

type RiskCfg struct {
	MinProfitUSD float64 `yaml:"min_profit_usd"`
	MaxFlashUSD  float64 `yaml:"max_flash_usd"`
	MinFlashUSD  float64 `yaml:"min_flash_usd"`
	MaxGasUSD    float64 `yaml:"max_gas_usd"`
}

type RedisCfg struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Stream   string `yaml:"stream"`
}

type TimingsCfg struct {
	ScanIntervalMs    int `yaml:"scan_interval_ms"`
	RefreshIntervalMs int `yaml:"refresh_interval_ms"`
}

type Config struct {
	DryRun  bool       `yaml:"dry_run"`
	Chain   ChainCfg   `yaml:"chain"`
	Index   IndexCfg   `yaml:"index"`
	DEX     DEXCfg     `yaml:"dex"`
	Lender  LenderCfg  `yaml:"lender"`
	Risk    RiskCfg    `yaml:"risk"`
	Redis   RedisCfg   `yaml:"redis"`
	Timings TimingsCfg `yaml:"timings"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
	Dash struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"dash"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// env wins for secrets
	if v := os.Getenv("FLASHARB_RPC_HTTP"); v != "" {
		c.Chain.RPCHTTP = v
	}
	if v := os.Getenv("FLASHARB_WALLET_PK"); v != "" {
		c.Chain.WalletPK = v
	}

	if c.Index.TopN == 0 {
		c.Index.TopN = 25
	}
	if c.Index.MinTVLUSD == 0 {
		c.Index.MinTVLUSD = 100_000
	}
	if c.Index.TTLSeconds == 0 {
		c.Index.TTLSeconds = 600
	}
	if c.Lender.FeeBps == 0 {
		c.Lender.FeeBps = 5
	}
	if c.Risk.MaxFlashUSD == 0 {
		c.Risk.MaxFlashUSD = 50_000
	}
	if c.Risk.MinFlashUSD == 0 {
		c.Risk.MinFlashUSD = 1_000
	}
	if c.Chain.GasLimitFlash == 0 {
		c.Chain.GasLimitFlash = 1_200_000
	}
	if len(c.DEX.UniV3.FeeTiers) == 0 {
		c.DEX.UniV3.FeeTiers = []uint32{100, 500, 3000, 10000}
	}
	if len(c.DEX.Venues) == 0 {
		c.DEX.Venues = []string{"uniswap_v3", "camelot_v3", "balancer_v2"}
	}
	if c.Timings.ScanIntervalMs == 0 {
		c.Timings.ScanIntervalMs = 3000
	}
	if c.Timings.RefreshIntervalMs == 0 {
		c.Timings.RefreshIntervalMs = 60_000
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = "arb:opps"
	}

	if !c.DryRun {
		if c.Chain.Receiver == "" {
			return nil, fmt.Errorf("live mode requires chain.receiver")
		}
		if c.Chain.WalletPK == "" {
			return nil, fmt.Errorf("live mode requires chain.wallet_pk (or FLASHARB_WALLET_PK)")
		}
	}
	return &c, nil
}

func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Timings.ScanIntervalMs) * time.Millisecond
}
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Timings.RefreshIntervalMs) * time.Millisecond
}
func (c *Config) IndexTTL() time.Duration {
	return time.Duration(c.Index.TTLSeconds) * time.Second
}
