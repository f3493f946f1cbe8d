// Command basket keeps a Solana wallet at its target allocation by periodically
// rebalancing it through Jupiter swaps submitted as one Jito bundle.
//
// Usage:
//
//	basket --config config.yaml
//	basket (uses the built-in USDC/SOL/JUP/JTO/WIF basket)
//
// Environment variables (also read from .env):
//
//	SOLANA_PRIVATE_KEY   base58 secret key of the wallet (required)
//	HELIUS_API_KEY       substituted into the default RPC endpoint
//	DISCORD_WEBHOOK_URL  optional, log lines are mirrored to this channel
//
// Send SIGUSR1 to run a rebalance cycle immediately.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vadiminshakov/basket/config"
	"github.com/vadiminshakov/basket/internal"
	"github.com/vadiminshakov/basket/internal/clients"
	"github.com/vadiminshakov/basket/internal/metrics"
	"github.com/vadiminshakov/basket/internal/notify"
	"github.com/vadiminshakov/basket/internal/signer"
	"github.com/vadiminshakov/basket/pkg/retrier"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	base, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}

	conf, err := config.Get()
	if err != nil {
		base.Fatal("invalid configuration", zap.Error(err))
	}

	var sink notify.Notifier = notify.Nop{}
	var webhook *notify.Webhook
	if url := os.Getenv("DISCORD_WEBHOOK_URL"); url != "" {
		webhook = notify.NewWebhook(base.Named("notify"), clients.NewDiscordWebhook(url, conf.HTTPTimeout),
			retrier.New(
				retrier.WithMaxRetries(3),
				retrier.WithInitialInterval(time.Second),
				retrier.WithOnRetry(func(attempt int, err error) {
					base.Debug("retrying notification", zap.Int("attempt", attempt), zap.Error(err))
				}),
			), 0)
		sink = webhook
	}

	logger := zap.New(zapcore.NewTee(base.Core(), notify.NewCore(sink, zapcore.InfoLevel)))
	defer logger.Sync()

	keypair, err := signer.FromBase58(os.Getenv("SOLANA_PRIVATE_KEY"))
	if err != nil {
		logger.Fatal("invalid SOLANA_PRIVATE_KEY", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if conf.MetricsAddr != "" {
		go serveMetrics(ctx, logger, conf.MetricsAddr, m)
	}

	trigger := make(chan struct{}, 1)
	go forwardSignal(ctx, syscall.SIGUSR1, trigger)

	bot, closer, err := internal.NewBotFromConfig(logger, conf, keypair, m, trigger)
	if err != nil {
		logger.Fatal("failed to create rebalance bot", zap.Error(err))
	}

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("rebalance bot stopped", zap.Error(err))
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close snapshot journal", zap.Error(err))
	}
	if webhook != nil {
		webhook.Close()
	}
}

func serveMetrics(ctx context.Context, l *zap.Logger, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	l.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("metrics server failed", zap.Error(err))
	}
}

// forwardSignal turns sig into non-blocking sends on trigger.
func forwardSignal(ctx context.Context, sig os.Signal, trigger chan<- struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			select {
			case trigger <- struct{}{}:
			default:
			}
		}
	}
}
