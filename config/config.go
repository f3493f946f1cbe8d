package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/basket/internal/domain"
)

const (
	defaultRPCEndpoint   = "https://mainnet.helius-rpc.com/?api-key=${HELIUS_API_KEY}"
	defaultPythURL       = "https://hermes.pyth.network"
	defaultJupiterURL    = "https://quote-api.jup.ag/v6"
	defaultJitoURL       = "https://mainnet.block-engine.jito.wtf/api/v1/bundles"
	defaultReserveTarget = "StAshdD7TkoNrWqsrbPTwRjCdqaCfMgfVCwKpvaGhuC"

	defaultCheckInterval = 60 * time.Second
	defaultSettleDelay   = 10 * time.Second
	defaultHTTPTimeout   = 30 * time.Second
	defaultSlippageBps   = 100
	defaultMaxBundleSize = 5
	defaultTipLamports   = 100_000
	defaultJupiterRPS    = 1
	defaultJupiterBurst  = 2
)

var defaultTipAccounts = []string{
	"juLesoSmdTcRtzjCzYzRoHrnF8GhVu6KCV7uxq7nJGp",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
}

// Error invalid configuration. The process cannot start with it.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid config field %q: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fieldErr(field string, format string, args ...any) error {
	return &Error{Field: field, Err: errors.Errorf(format, args...)}
}

type Config struct {
	Assets domain.AssetTable

	RPCEndpoint string
	PythURL     string
	JupiterURL  string
	JitoURL     string

	RebalanceThreshold decimal.Decimal
	DustThreshold      decimal.Decimal
	ReserveThreshold   decimal.Decimal
	ReserveAmount      decimal.Decimal

	CheckInterval time.Duration
	SettleDelay   time.Duration
	HTTPTimeout   time.Duration

	SlippageBps    int
	MaxBundleSize  int
	TipLamports    uint64
	TipAccounts    []solana.PublicKey
	ReserveAccount solana.PublicKey

	JupiterRPS   float64
	JupiterBurst int

	MetricsAddr string
	SnapshotDir string
}

type AssetTmp struct {
	Symbol      string `yaml:"symbol"`
	Mint        string `yaml:"mint"`
	Decimals    int32  `yaml:"decimals"`
	Allocation  string `yaml:"allocation"`
	PriceFeedID string `yaml:"price_feed_id,omitempty"`
}

type ConfigTmp struct {
	Assets      []AssetTmp `yaml:"assets"`
	StableAsset string     `yaml:"stable_asset"`
	NativeAsset string     `yaml:"native_asset"`

	RPCEndpoint string `yaml:"rpc_endpoint,omitempty"`
	PythURL     string `yaml:"pyth_url,omitempty"`
	JupiterURL  string `yaml:"jupiter_url,omitempty"`
	JitoURL     string `yaml:"jito_url,omitempty"`

	RebalanceThresholdStr string `yaml:"rebalance_threshold,omitempty"`
	DustThresholdStr      string `yaml:"dust_threshold,omitempty"`
	ReserveThresholdStr   string `yaml:"reserve_threshold,omitempty"`
	ReserveAmountStr      string `yaml:"reserve_amount,omitempty"`

	CheckInterval time.Duration `yaml:"check_interval,omitempty"`
	SettleDelay   time.Duration `yaml:"settle_delay,omitempty"`
	HTTPTimeout   time.Duration `yaml:"http_timeout,omitempty"`

	SlippageBps    int      `yaml:"slippage_bps,omitempty"`
	MaxBundleSize  int      `yaml:"max_bundle_size,omitempty"`
	TipLamports    uint64   `yaml:"tip_lamports,omitempty"`
	TipAccounts    []string `yaml:"tip_accounts,omitempty"`
	ReserveAccount string   `yaml:"reserve_account,omitempty"`

	JupiterRPS   float64 `yaml:"jupiter_rps,omitempty"`
	JupiterBurst int     `yaml:"jupiter_burst,omitempty"`

	MetricsAddr string `yaml:"metrics_addr,omitempty"`
	SnapshotDir string `yaml:"snapshot_dir,omitempty"`
}

// Get reads the config file given by --config, or the built-in basket when no file is given.
func Get() (Config, error) {
	config := flag.String("config", "", "path to yaml config")
	flag.Parse()
	if *config != "" {
		return getYaml(*config)
	}

	return Default()
}

// Default the USDC/SOL/JUP/JTO/WIF basket with the stock thresholds.
func Default() (Config, error) {
	return build(defaultTmp())
}

func defaultTmp() ConfigTmp {
	return ConfigTmp{
		Assets: []AssetTmp{
			{Symbol: "USDC", Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6, Allocation: "0.3"},
			{Symbol: "JTO", Mint: "jtojtomepa8beP8AuQc6eXt5FriJwfFMwQx2v2f9mCL", Decimals: 9, Allocation: "0.2",
				PriceFeedID: "b43660a5f790c69354b0729a5ef9d50d68f1df92107540210b9cccba1f947cc2"},
			{Symbol: "WIF", Mint: "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm", Decimals: 6, Allocation: "0",
				PriceFeedID: "4ca4beeca86f0d164160323817a4e42b10010a724c2217c6ee41b54cd4cc61fc"},
			{Symbol: "SOL", Mint: "So11111111111111111111111111111111111111112", Decimals: 9, Allocation: "0.3",
				PriceFeedID: "ef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"},
			{Symbol: "JUP", Mint: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6, Allocation: "0.2",
				PriceFeedID: "0a0408d619e9380abad35060f9192039ed5042fa6f82301d0e48bb52be830996"},
		},
		StableAsset: "USDC",
		NativeAsset: "SOL",
	}
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var c ConfigTmp
	if err := yaml.Unmarshal(f, &c); err != nil {
		return Config{}, err
	}

	// the stock basket is used when the file only tunes parameters
	if len(c.Assets) == 0 {
		d := defaultTmp()
		c.Assets, c.StableAsset, c.NativeAsset = d.Assets, d.StableAsset, d.NativeAsset
	}

	return build(c)
}

func build(c ConfigTmp) (Config, error) {
	assets := make([]domain.Asset, 0, len(c.Assets))
	for _, a := range c.Assets {
		allocation, err := decimal.NewFromString(a.Allocation)
		if err != nil {
			return Config{}, fieldErr("assets."+a.Symbol+".allocation", "must be a decimal, got %q", a.Allocation)
		}
		if _, err := solana.PublicKeyFromBase58(a.Mint); err != nil {
			return Config{}, fieldErr("assets."+a.Symbol+".mint", "invalid base58 public key %q", a.Mint)
		}
		assets = append(assets, domain.Asset{
			Symbol:      a.Symbol,
			Mint:        a.Mint,
			Decimals:    a.Decimals,
			Allocation:  allocation,
			PriceFeedID: a.PriceFeedID,
		})
	}

	table, err := domain.NewAssetTable(assets, c.StableAsset, c.NativeAsset)
	if err != nil {
		return Config{}, &Error{Field: "assets", Err: err}
	}

	conf := Config{
		Assets:        table,
		RPCEndpoint:   os.ExpandEnv(orDefault(c.RPCEndpoint, defaultRPCEndpoint)),
		PythURL:       orDefault(c.PythURL, defaultPythURL),
		JupiterURL:    orDefault(c.JupiterURL, defaultJupiterURL),
		JitoURL:       orDefault(c.JitoURL, defaultJitoURL),
		CheckInterval: durationOrDefault(c.CheckInterval, defaultCheckInterval),
		SettleDelay:   durationOrDefault(c.SettleDelay, defaultSettleDelay),
		HTTPTimeout:   durationOrDefault(c.HTTPTimeout, defaultHTTPTimeout),
		SlippageBps:   c.SlippageBps,
		MaxBundleSize: c.MaxBundleSize,
		TipLamports:   c.TipLamports,
		JupiterRPS:    c.JupiterRPS,
		JupiterBurst:  c.JupiterBurst,
		MetricsAddr:   c.MetricsAddr,
		SnapshotDir:   c.SnapshotDir,
	}

	if conf.SlippageBps == 0 {
		conf.SlippageBps = defaultSlippageBps
	}
	if conf.MaxBundleSize == 0 {
		conf.MaxBundleSize = defaultMaxBundleSize
	}
	if conf.TipLamports == 0 {
		conf.TipLamports = defaultTipLamports
	}
	if conf.JupiterRPS == 0 {
		conf.JupiterRPS = defaultJupiterRPS
	}
	if conf.JupiterBurst == 0 {
		conf.JupiterBurst = defaultJupiterBurst
	}

	decimals := []struct {
		field string
		raw   string
		def   string
		dst   *decimal.Decimal
	}{
		{"rebalance_threshold", c.RebalanceThresholdStr, "0.0042", &conf.RebalanceThreshold},
		{"dust_threshold", c.DustThresholdStr, "0.042", &conf.DustThreshold},
		{"reserve_threshold", c.ReserveThresholdStr, "1", &conf.ReserveThreshold},
		{"reserve_amount", c.ReserveAmountStr, "0.1", &conf.ReserveAmount},
	}
	for _, d := range decimals {
		v, err := decimal.NewFromString(orDefault(d.raw, d.def))
		if err != nil {
			return Config{}, fieldErr(d.field, "must be a decimal, got %q", d.raw)
		}
		if v.IsNegative() {
			return Config{}, fieldErr(d.field, "must not be negative, got %s", v)
		}
		*d.dst = v
	}

	tips := c.TipAccounts
	if len(tips) == 0 {
		tips = defaultTipAccounts
	}
	for _, t := range tips {
		pk, err := solana.PublicKeyFromBase58(t)
		if err != nil {
			return Config{}, fieldErr("tip_accounts", "invalid base58 public key %q", t)
		}
		conf.TipAccounts = append(conf.TipAccounts, pk)
	}

	reserve := orDefault(c.ReserveAccount, defaultReserveTarget)
	conf.ReserveAccount, err = solana.PublicKeyFromBase58(reserve)
	if err != nil {
		return Config{}, fieldErr("reserve_account", "invalid base58 public key %q", reserve)
	}

	if conf.SlippageBps < 0 || conf.SlippageBps > 10_000 {
		return Config{}, fieldErr("slippage_bps", "must be within [0, 10000], got %d", conf.SlippageBps)
	}
	if conf.MaxBundleSize < 2 {
		return Config{}, fieldErr("max_bundle_size", "must leave room for a swap and the auxiliary transaction, got %d", conf.MaxBundleSize)
	}
	if conf.RPCEndpoint == "" {
		return Config{}, fieldErr("rpc_endpoint", "must not be empty")
	}

	return conf, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOrDefault(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
