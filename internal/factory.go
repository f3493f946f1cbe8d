package internal

import (
	"io"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/basket/config"
	"github.com/vadiminshakov/basket/internal/clients"
	"github.com/vadiminshakov/basket/internal/domain"
	"github.com/vadiminshakov/basket/internal/metrics"
	"github.com/vadiminshakov/basket/internal/services/bundle"
	"github.com/vadiminshakov/basket/internal/services/marketdata"
	"github.com/vadiminshakov/basket/internal/services/swap"
	"github.com/vadiminshakov/basket/internal/signer"
	"github.com/vadiminshakov/basket/internal/storage/portfoliosnapshots"
)

// NewBotFromConfig wires the public API clients into a rebalance bot for the wallet of s.
// The returned closer releases the snapshot journal and must be called after Run returns.
func NewBotFromConfig(l *zap.Logger, conf config.Config, s signer.Signer, m *metrics.Metrics,
	trigger <-chan struct{}) (*RebalanceBot, io.Closer, error) {
	helius := clients.NewHeliusClient(conf.RPCEndpoint, conf.HTTPTimeout)
	pyth := clients.NewPythClient(conf.PythURL, conf.HTTPTimeout)
	jupiter := clients.NewJupiterClient(conf.JupiterURL, conf.HTTPTimeout,
		clients.WithJupiterRateLimit(conf.JupiterRPS, conf.JupiterBurst))
	jito := clients.NewJitoClient(conf.JitoURL, conf.HTTPTimeout)
	chain := clients.NewSolanaClient(conf.RPCEndpoint)

	stable := conf.Assets.StableAsset()
	stableMint, err := solana.PublicKeyFromBase58(stable.Mint)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "stable asset %s mint", stable.Symbol)
	}

	bundler := bundle.NewBundler(l.Named("bundle"), bundle.Config{
		TipAccounts:    conf.TipAccounts,
		TipLamports:    conf.TipLamports,
		ReserveAccount: conf.ReserveAccount,
		StableMint:     stableMint,
		StableDecimals: stable.Decimals,
		MaxSize:        conf.MaxBundleSize,
	}, chain, jito)

	deps := Deps{
		Signer:  s,
		Market:  marketdata.NewClient(conf.Assets, helius, pyth),
		Swaps:   swap.NewBuilder(l.Named("swap"), conf.Assets, jupiter, chain, conf.SlippageBps),
		Bundler: bundler,
		Trigger: trigger,
	}
	if m != nil {
		deps.Metrics = m
	}

	closer := io.Closer(nopCloser{})
	if conf.SnapshotDir != "" {
		store, err := portfoliosnapshots.NewWALStore(conf.SnapshotDir)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open snapshot journal")
		}
		deps.Snapshots = store
		closer = store
		logLastSettled(l, store)
	}

	bot, err := NewRebalanceBot(l, conf, deps)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}

	return bot, closer, nil
}

// logLastSettled reports the newest post-settlement snapshot left by an earlier run.
func logLastSettled(l *zap.Logger, store *portfoliosnapshots.WALStore) {
	last, err := store.Last(domain.PhasePost)
	if err != nil {
		l.Warn("failed to read snapshot journal", zap.Error(err))
		return
	}
	if last == nil {
		return
	}

	l.Info("last settled portfolio from journal",
		zap.String("cycle_id", last.CycleID),
		zap.Time("ts", last.Timestamp),
		zap.String("value", last.TotalValue))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
