package internal

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/basket/config"
	"github.com/vadiminshakov/basket/internal/domain"
	"github.com/vadiminshakov/basket/internal/metrics"
	"github.com/vadiminshakov/basket/internal/services/allocation"
	"github.com/vadiminshakov/basket/internal/services/bundle"
	"github.com/vadiminshakov/basket/internal/services/marketdata"
	"github.com/vadiminshakov/basket/internal/services/swap"
	"github.com/vadiminshakov/basket/internal/signer"
)

type marketData interface {
	FetchBalances(ctx context.Context, owner string) (domain.Balances, error)
	FetchPrices(ctx context.Context) (domain.Prices, error)
}

type swapBuilder interface {
	Build(ctx context.Context, s signer.Signer, leg domain.Leg) (*solana.Transaction, error)
}

type settlement interface {
	BuildAuxiliary(ctx context.Context, s signer.Signer, reserve *decimal.Decimal) (*solana.Transaction, error)
	Assemble(swaps []*solana.Transaction, aux *solana.Transaction) []*solana.Transaction
	Submit(ctx context.Context, units []*solana.Transaction) (string, error)
	MaxSize() int
}

type snapshotStore interface {
	Save(snapshot domain.PortfolioSnapshot) error
}

type cycleMetrics interface {
	CycleStarted()
	CycleFailed(kind string)
	BundleSubmitted()
	SwapsDropped(n int)
	ObservePortfolio(total decimal.Decimal, allocations map[string]decimal.Decimal)
}

// Deps collaborators of the rebalance bot. Snapshots, Metrics and Trigger are optional.
type Deps struct {
	Signer    signer.Signer
	Market    marketData
	Swaps     swapBuilder
	Bundler   settlement
	Snapshots snapshotStore
	Metrics   cycleMetrics
	// Trigger runs a cycle right away when the bot is idle.
	Trigger <-chan struct{}
}

// cycleState survives between cycles for the lifetime of Run.
type cycleState struct {
	// lastEventValue portfolio value at the last settled or accepted decision point.
	lastEventValue *decimal.Decimal
}

// RebalanceBot periodically measures the wallet and rebalances it toward the target allocation.
type RebalanceBot struct {
	conf config.Config
	deps Deps
	l    *zap.Logger
	now  func() time.Time
}

// NewRebalanceBot creates a bot for the wallet of deps.Signer.
func NewRebalanceBot(l *zap.Logger, conf config.Config, deps Deps) (*RebalanceBot, error) {
	if deps.Signer == nil || deps.Market == nil || deps.Swaps == nil || deps.Bundler == nil {
		return nil, errors.New("signer, market data, swap builder and bundler are required")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if conf.CheckInterval <= 0 {
		return nil, errors.Errorf("check interval must be positive, got %s", conf.CheckInterval)
	}

	return &RebalanceBot{
		conf: conf,
		deps: deps,
		l:    l.With(zap.String("wallet", deps.Signer.PublicKey().String())),
		now:  time.Now,
	}, nil
}

// Run executes cycles until ctx is done. The first cycle starts immediately and the
// next one is scheduled only after the previous one has finished.
func (b *RebalanceBot) Run(ctx context.Context) error {
	state := &cycleState{}

	timer := time.NewTimer(0)
	defer timer.Stop()

	b.l.Info("starting rebalance loop",
		zap.Strings("assets", b.conf.Assets.Symbols()),
		zap.Duration("check_interval", b.conf.CheckInterval))

	for {
		select {
		case <-ctx.Done():
			b.l.Info("context done, stopping rebalance loop")
			return ctx.Err()
		case <-timer.C:
		case <-b.deps.Trigger:
			b.l.Info("rebalance triggered manually")
			timer.Stop()
		}

		b.runOnce(ctx, state)
		if ctx.Err() != nil {
			b.l.Info("context done, stopping rebalance loop")
			return ctx.Err()
		}

		timer.Reset(b.conf.CheckInterval)
	}
}

func (b *RebalanceBot) runOnce(ctx context.Context, state *cycleState) {
	cycleID := uuid.NewString()
	l := b.l.With(zap.String("cycle_id", cycleID))

	err := b.RunCycle(ctx, l, cycleID, state)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		l.Info("cycle interrupted by shutdown", zap.Error(err))
		return
	}

	kind := failureKind(err)
	b.deps.Metrics.CycleFailed(kind)
	l.Error("rebalance cycle failed", zap.String("kind", kind), zap.Error(err))
}

// RunCycle performs one measure-decide-act pass. Any failure aborts the pass
// before anything is submitted, except a failure to re-measure after settlement.
func (b *RebalanceBot) RunCycle(ctx context.Context, l *zap.Logger, cycleID string, state *cycleState) error {
	b.deps.Metrics.CycleStarted()
	table := b.conf.Assets

	balances, prices, total, err := b.observe(ctx, l, cycleID, domain.PhasePre)
	if err != nil {
		return err
	}

	if allocation.NeedsRebalance(table, balances, prices, total, b.conf.RebalanceThreshold) {
		plan := allocation.Plan(table, balances, prices, total)
		legs := allocation.Legs(table, plan, prices, b.conf.DustThreshold)
		if len(legs) > 0 {
			return b.rebalance(ctx, l, cycleID, state, legs, total)
		}
		l.Info("allocation deviates but every leg is below the dust filter")
	}

	return b.reserveOnly(ctx, l, state, total)
}

func (b *RebalanceBot) rebalance(ctx context.Context, l *zap.Logger, cycleID string, state *cycleState,
	legs []domain.Leg, total decimal.Decimal) error {
	l.Info("rebalancing portfolio\n" + allocation.FormatLegs(legs))

	swaps := make([]*solana.Transaction, 0, len(legs))
	for _, leg := range legs {
		tx, err := b.deps.Swaps.Build(ctx, b.deps.Signer, leg)
		if err != nil {
			return err
		}
		swaps = append(swaps, tx)
	}

	if dropped := len(swaps) - (b.deps.Bundler.MaxSize() - 1); dropped > 0 {
		b.deps.Metrics.SwapsDropped(dropped)
	}

	var reserve *decimal.Decimal
	if amount, ok := allocation.Reserve(state.lastEventValue, total, b.conf.ReserveThreshold, b.conf.ReserveAmount); ok {
		reserve = &amount
		l.Info("portfolio value moved since last event, adding reserve transfer",
			zap.String("last_event_value", state.lastEventValue.StringFixed(2)),
			zap.String("value", total.StringFixed(2)),
			zap.String("reserve", amount.String()))
	}

	aux, err := b.deps.Bundler.BuildAuxiliary(ctx, b.deps.Signer, reserve)
	if err != nil {
		return err
	}

	id, err := b.deps.Bundler.Submit(ctx, b.deps.Bundler.Assemble(swaps, aux))
	if err != nil {
		return err
	}
	b.deps.Metrics.BundleSubmitted()
	l.Info("bundle submitted", zap.String("bundle_id", id))

	// an accepted bundle moves the reference point even if the re-measure fails
	accepted := total
	state.lastEventValue = &accepted

	if err := sleep(ctx, b.conf.SettleDelay); err != nil {
		return err
	}

	_, _, settled, err := b.observe(ctx, l, cycleID, domain.PhasePost)
	if err != nil {
		return errors.Wrap(err, "re-measure after settlement")
	}

	state.lastEventValue = &settled
	return nil
}

func (b *RebalanceBot) reserveOnly(ctx context.Context, l *zap.Logger, state *cycleState, total decimal.Decimal) error {
	amount, ok := allocation.Reserve(state.lastEventValue, total, b.conf.ReserveThreshold, b.conf.ReserveAmount)
	if !ok {
		if state.lastEventValue == nil {
			state.lastEventValue = &total
			l.Info("recorded baseline portfolio value", zap.String("value", total.StringFixed(2)))
		}
		l.Debug("portfolio is balanced, nothing to do")
		return nil
	}

	l.Info("portfolio value moved since last event, sending reserve transfer",
		zap.String("last_event_value", state.lastEventValue.StringFixed(2)),
		zap.String("value", total.StringFixed(2)),
		zap.String("reserve", amount.String()))

	aux, err := b.deps.Bundler.BuildAuxiliary(ctx, b.deps.Signer, &amount)
	if err != nil {
		return err
	}

	id, err := b.deps.Bundler.Submit(ctx, b.deps.Bundler.Assemble(nil, aux))
	if err != nil {
		return err
	}
	b.deps.Metrics.BundleSubmitted()
	l.Info("reserve bundle submitted", zap.String("bundle_id", id))

	state.lastEventValue = &total
	return nil
}

// observe fetches holdings and prices, reports them and journals a snapshot.
func (b *RebalanceBot) observe(ctx context.Context, l *zap.Logger, cycleID, phase string) (domain.Balances, domain.Prices, decimal.Decimal, error) {
	table := b.conf.Assets
	owner := b.deps.Signer.PublicKey().String()

	balances, err := b.deps.Market.FetchBalances(ctx, owner)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}
	prices, err := b.deps.Market.FetchPrices(ctx)
	if err != nil {
		return nil, nil, decimal.Zero, err
	}

	total := allocation.Valuation(table, balances, prices)
	allocations := allocation.Allocations(table, balances, prices, total)
	b.deps.Metrics.ObservePortfolio(total, allocations)

	l.Info("portfolio ("+phase+")\n"+allocation.FormatPortfolio(table, balances, prices, total),
		zap.String("value", total.StringFixed(2)))

	if b.deps.Snapshots != nil {
		snapshot := b.snapshot(cycleID, phase, owner, balances, prices, total, allocations)
		if err := b.deps.Snapshots.Save(snapshot); err != nil {
			l.Warn("failed to journal portfolio snapshot", zap.Error(err))
		}
	}

	return balances, prices, total, nil
}

func (b *RebalanceBot) snapshot(cycleID, phase, owner string, balances domain.Balances, prices domain.Prices,
	total decimal.Decimal, allocations map[string]decimal.Decimal) domain.PortfolioSnapshot {
	assets := make([]domain.AssetSnapshot, 0, len(b.conf.Assets.Assets))
	for _, a := range b.conf.Assets.Assets {
		balance := balances[a.Symbol]
		price := prices[a.Symbol]
		assets = append(assets, domain.AssetSnapshot{
			Symbol:     a.Symbol,
			Balance:    balance.String(),
			Price:      price.String(),
			Value:      balance.Mul(price).String(),
			Allocation: allocations[a.Symbol].String(),
			Target:     a.Allocation.String(),
		})
	}

	return domain.PortfolioSnapshot{
		Timestamp:  b.now().UTC(),
		CycleID:    cycleID,
		Phase:      phase,
		Owner:      owner,
		TotalValue: total.String(),
		Assets:     assets,
	}
}

func failureKind(err error) string {
	var (
		fetchErr  *marketdata.FetchError
		swapErr   *swap.BuildError
		auxErr    *bundle.BuildError
		submitErr *bundle.SubmissionError
	)

	switch {
	case errors.As(err, &fetchErr):
		return metrics.FailureFetch
	case errors.As(err, &swapErr), errors.As(err, &auxErr):
		return metrics.FailureBuild
	case errors.As(err, &submitErr):
		return metrics.FailureSubmit
	default:
		return metrics.FailureOther
	}
}

// sleep waits for d unless ctx is done first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopMetrics struct{}

func (nopMetrics) CycleStarted() {}
func (nopMetrics) CycleFailed(string) {}
func (nopMetrics) BundleSubmitted() {}
func (nopMetrics) SwapsDropped(int) {}
func (nopMetrics) ObservePortfolio(decimal.Decimal, map[string]decimal.Decimal) {}
